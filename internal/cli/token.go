package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/edtube/platform/internal/middleware"
)

func newTokenCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Development token helpers",
	}

	var secret, email string
	var ttl time.Duration
	mint := &cobra.Command{
		Use:   "mint",
		Short: "Mint an HS256 token accepted by the development backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("no signing secret, pass --secret or set JWT_SECRET")
			}
			tok, err := middleware.IssueToken(secret, userID, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, tok)
			return nil
		},
	}
	mint.Flags().StringVar(&secret, "secret", "", "HMAC secret of the backend (default $JWT_SECRET)")
	mint.Flags().StringVar(&email, "email", "", "email claim")
	mint.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	cmd.AddCommand(mint)
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Read a token without echoing it and print the export line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(a.errOut, "Paste token: ")
			tok, err := a.readSecret()
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			if tok == "" {
				return errors.New("token cannot be empty")
			}

			claims := jwt.RegisteredClaims{}
			if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
				return fmt.Errorf("not a JWT: %w", err)
			}
			if claims.ExpiresAt != nil {
				if claims.ExpiresAt.Before(time.Now()) {
					return fmt.Errorf("token expired %s", humanize.Time(claims.ExpiresAt.Time))
				}
				fmt.Fprintf(a.errOut, "token for %q expires %s\n", claims.Subject, humanize.Time(claims.ExpiresAt.Time))
			}

			fmt.Fprintf(a.out, "export %s_TOKEN=%s\n", envPrefix, tok)
			if claims.Subject != "" {
				fmt.Fprintf(a.out, "export %s_USER=%s\n", envPrefix, claims.Subject)
			}
			return nil
		},
	}
}

// readSecret reads a line without echo when stdin is a terminal.
func (a *app) readSecret() (string, error) {
	if f, ok := a.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
