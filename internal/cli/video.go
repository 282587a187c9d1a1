package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edtube/platform/internal/apiclient"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/study"
)

const progressWidth = 30

func newVideoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "video <url>",
		Short: "Process a YouTube video into a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			client := a.client()
			videoURL := args[0]

			res, err := client.ProcessVideo(cmd.Context(), videoURL, userID, func(ev model.StreamEvent) {
				renderEvent(a.out, ev)
			})
			if err != nil {
				fmt.Fprintln(a.out)
				return err
			}
			fmt.Fprintln(a.out)

			conv, err := findConversation(cmd.Context(), client, userID, res.ConversationID, videoURL)
			if err != nil {
				return err
			}
			if len(conv.Concepts) > 0 {
				fmt.Fprintln(a.out, "topics:")
				if err := study.RenderTopics(a.out, conv.Concepts); err != nil && !errors.Is(err, study.ErrNoContent) {
					return err
				}
			}
			fmt.Fprintf(a.out, "conversation: %s\n", conv.ID)
			return nil
		},
	}
}

// renderEvent redraws the progress line for progress events and prints
// the other events on their own line.
func renderEvent(w io.Writer, ev model.StreamEvent) {
	switch {
	case ev.IsConversationInfo():
		fmt.Fprintf(w, "%s (%s)\n", ev.Message, ev.Status)
	case ev.IsError():
		fmt.Fprintf(w, "\nerror: %s\n", ev.Message)
	default:
		fmt.Fprintf(w, "\r%s %3.0f%% %-40s", progressBar(ev.Progress), ev.Progress, ev.Message)
	}
}

func progressBar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * progressWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", progressWidth-filled) + "]"
}

// findConversation looks the processed conversation up by the id the
// stream announced, falling back to the video URL when it announced none.
func findConversation(ctx context.Context, client *apiclient.Client, userID, id, videoURL string) (*model.Conversation, error) {
	convs, err := client.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i, c := range convs {
		if (id != "" && c.ID == id) || (id == "" && c.VideoURL == videoURL) {
			return &convs[i], nil
		}
	}
	if id != "" {
		return &model.Conversation{ID: id, UserID: userID, VideoURL: videoURL}, nil
	}
	return nil, fmt.Errorf("no conversation found for %s", videoURL)
}
