package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/edtube/platform/internal/apiclient"
	"github.com/edtube/platform/internal/codec"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/session"
)

func newConversationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"ls"},
		Short:   "List your conversations, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			convs, err := a.client().ListConversations(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(convs) == 0 {
				fmt.Fprintln(a.out, "no conversations yet, process a video first")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tUPDATED")
			for _, c := range convs {
				updated := "-"
				if !c.UpdatedAt.IsZero() {
					updated = humanize.Time(c.UpdatedAt.Time)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.DisplayTitle(), updated)
			}
			return tw.Flush()
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Print the stored messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			sess := session.New(a.client(), userID, a.log)
			defer sess.Close()

			if err := openConversation(cmd.Context(), sess, args[0]); err != nil {
				return err
			}
			for i := 1; i < pages && sess.Store().State().HasNextPage; i++ {
				if _, err := sess.LoadOlder(cmd.Context()); err != nil {
					return err
				}
			}

			view := sess.View()
			printMessages(a.out, view)
			if sess.Store().State().HasNextPage {
				fmt.Fprintln(a.out, "(more messages available, use --pages)")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

// openConversation makes id the active conversation of sess.
func openConversation(ctx context.Context, sess *session.Session, id string) error {
	return sess.Use(ctx, &model.Conversation{ID: id, UserID: sess.UserID()})
}

// latestConversation returns the most recently updated conversation.
func latestConversation(ctx context.Context, client *apiclient.Client, userID string) (*model.Conversation, error) {
	convs, err := client.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, fmt.Errorf("no conversations for %s, process a video first", userID)
	}
	return &convs[0], nil
}

func printMessages(w io.Writer, msgs []model.Message) {
	if len(msgs) == 1 && msgs[0].ID == codec.EmptyStateID {
		fmt.Fprintln(w, "(no messages yet)")
		return
	}
	for _, m := range msgs {
		printMessage(w, m)
	}
}

func printMessage(w io.Writer, m model.Message) {
	label := "you"
	if m.Role != model.RoleUser {
		label = "assistant"
	}
	line := fmt.Sprintf("[%s] %s", label, m.Text())
	if ts, ok := m.Metadata["timestamp"].(string); ok && ts != "" && m.Role != model.RoleUser {
		line += " (" + ts + ")"
	}
	fmt.Fprintln(w, line)
}
