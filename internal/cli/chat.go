package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/session"
)

const chatHelp = "commands: /retry resend the last question, /more load older messages, /quit exit"

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [conversation-id]",
		Short: "Chat about a video; defaults to your most recent conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			userID, err := a.user()
			if err != nil {
				return err
			}
			client := a.client()

			conv := &model.Conversation{UserID: userID}
			if len(args) == 1 {
				conv.ID = args[0]
			} else if conv, err = latestConversation(ctx, client, userID); err != nil {
				return err
			}

			sess := session.New(client, userID, a.log)
			defer sess.Close()
			if err := sess.Use(ctx, conv); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "chatting in %s\n%s\n", conv.DisplayTitle(), chatHelp)
			printMessages(a.out, sess.View())
			return a.repl(ctx, sess)
		},
	}
}

func (a *app) repl(ctx context.Context, sess *session.Session) error {
	scanner := bufio.NewScanner(a.in)
	for {
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(a.out, chatHelp)
			continue
		case "/more":
			if !sess.Store().State().HasNextPage {
				fmt.Fprintln(a.out, "no older messages")
				continue
			}
			res, err := sess.LoadOlder(ctx)
			if err != nil {
				fmt.Fprintf(a.out, "error: %v\n", err)
				continue
			}
			fmt.Fprintf(a.out, "loaded %d older messages\n", len(res.Messages))
			continue
		}

		before := len(sess.Store().Messages())
		if line == "/retry" {
			if sess.Store().State().TurnError == nil {
				fmt.Fprintln(a.out, "nothing to retry")
				continue
			}
			if err := sess.Retry(ctx); err != nil {
				return err
			}
		} else if err := sess.Send(ctx, line); err != nil {
			return err
		}

		msgs := sess.Store().Messages()
		for _, m := range msgs[min(before, len(msgs)):] {
			if m.Role != model.RoleUser {
				printMessage(a.out, m)
			}
		}
		if turnErr := sess.Store().State().TurnError; turnErr != nil {
			fmt.Fprintf(a.out, "error: %v (type /retry to try again)\n", turnErr)
		}
	}
}
