// Package cli implements the edtube command line client.
package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edtube/platform/internal/apiclient"
	"github.com/edtube/platform/pkg/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

const (
	envPrefix     = "EDTUBE"
	defaultAPIURL = "http://localhost:8000"
)

// ErrNoUser is returned by commands that act for a user when none is set.
var ErrNoUser = errors.New("no user configured, pass --user or set EDTUBE_USER")

// app carries the state shared by all commands.
type app struct {
	v          *viper.Viper
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	httpClient *http.Client
	log        *logger.Logger
}

// Option customizes the root command.
type Option func(*app)

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *app) {
		a.in, a.out, a.errOut = in, out, errOut
	}
}

// WithHTTPClient sets the HTTP client used for backend calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *app) { a.httpClient = hc }
}

// NewRootCommand builds the edtube command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{
		v:          viper.New(),
		in:         os.Stdin,
		out:        os.Stdout,
		errOut:     os.Stderr,
		httpClient: &http.Client{},
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	root := &cobra.Command{
		Use:   "edtube",
		Short: "EdTube study client",
		Long: `edtube processes YouTube videos into study conversations, lets you chat
about them and fetches quizzes, flashcards and notes from the backend.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	// Disable completion command
	root.CompletionOptions.DisableDefaultCmd = true

	// Global flags
	pf := root.PersistentFlags()
	pf.BoolP("verbose", "v", false, "enable verbose output")
	pf.StringP("config", "c", "", "config file path (default is $HOME/.edtube.yaml)")
	pf.String("api-url", defaultAPIURL, "backend base URL")
	pf.StringP("user", "u", "", "user id to act for")
	pf.String("token", "", "bearer token for authenticated calls")
	_ = a.v.BindPFlags(pf)

	root.AddCommand(
		newVideoCmd(a),
		newConversationsCmd(a),
		newHistoryCmd(a),
		newChatCmd(a),
		newQuizCmd(a),
		newFlashcardsCmd(a),
		newNotesCmd(a),
		newFeedbackCmd(a),
		newTokenCmd(a),
		newLoginCmd(a),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init loads the config file and environment once flags are parsed.
// Precedence is flags, then EDTUBE_* variables, then the file, then defaults.
func (a *app) init() error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if path := a.v.GetString("config"); path != "" {
		a.v.SetConfigFile(path)
	} else {
		a.v.SetConfigName(".edtube")
		a.v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home)
		}
		a.v.AddConfigPath(".")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config %s: %w", filepath.Base(a.v.ConfigFileUsed()), err)
		}
	}

	level := "warn"
	if a.v.GetBool("verbose") {
		level = "debug"
	}
	log, err := logger.NewConsole(level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.log = log
	return nil
}

func (a *app) client() *apiclient.Client {
	return apiclient.New(a.v.GetString("api-url"),
		apiclient.WithHTTPClient(a.httpClient),
		apiclient.WithTokenSource(apiclient.StaticToken(a.v.GetString("token"))),
		apiclient.WithLogger(a.log),
	)
}

func (a *app) user() (string, error) {
	u := strings.TrimSpace(a.v.GetString("user"))
	if u == "" {
		return "", ErrNoUser
	}
	return u, nil
}
