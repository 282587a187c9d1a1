package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/study"
)

func newQuizCmd(a *app) *cobra.Command {
	var interactive, revise bool
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate a quiz for your latest video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := a.client()

			quiz, err := client.CreateQuiz(ctx)
			if err != nil {
				return err
			}
			if err := study.RenderQuiz(a.out, quiz.Questions); err != nil {
				if errors.Is(err, study.ErrNoContent) {
					fmt.Fprintln(a.out, "the quiz has no questions")
					return nil
				}
				return err
			}
			if !interactive {
				return nil
			}

			answers, err := a.readAnswers(len(quiz.Questions))
			if err != nil {
				return err
			}
			wrong := study.Grade(quiz.Questions, answers)
			fmt.Fprintln(a.out, study.Score(len(quiz.Questions), len(wrong)))
			if len(wrong) == 0 || !revise {
				return nil
			}

			doc, err := client.RevisionDoc(ctx, wrong)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out)
			fmt.Fprint(a.out, doc.MarkdownContent)

			remedial, err := client.LearnFromMistakes(ctx, wrong)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Practice questions:")
			if err := study.RenderQuiz(a.out, remedial.Questions); err != nil && !errors.Is(err, study.ErrNoContent) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "answer the questions and get a score")
	cmd.Flags().BoolVar(&revise, "revise", false, "with --interactive, fetch revision material for wrong answers")
	return cmd
}

// readAnswers reads one answer line per question.
func (a *app) readAnswers(n int) ([]string, error) {
	scanner := bufio.NewScanner(a.in)
	answers := make([]string, 0, n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(a.out, "answer %d: ", i+1)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, err
			}
			break
		}
		answers = append(answers, strings.TrimSpace(scanner.Text()))
	}
	fmt.Fprintln(a.out)
	return answers, nil
}

func newFlashcardsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flashcards",
		Short: "Print flashcards for your latest video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deck, err := a.client().Flashcards(cmd.Context())
			if err != nil {
				return err
			}
			if err := study.RenderFlashcards(a.out, deck.Cards); err != nil {
				if errors.Is(err, study.ErrNoContent) {
					fmt.Fprintln(a.out, "no flashcards available")
					return nil
				}
				return err
			}
			return nil
		},
	}
}

func newNotesCmd(a *app) *cobra.Command {
	var out, conversationID string
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Download the important notes PDF of a conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := a.client()

			if conversationID == "" {
				userID, err := a.user()
				if err != nil {
					return err
				}
				conv, err := latestConversation(ctx, client, userID)
				if err != nil {
					return err
				}
				conversationID = conv.ID
			}

			pdf, err := client.ImportantNotes(ctx, conversationID)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return fmt.Errorf("write notes: %w", err)
			}
			fmt.Fprintf(a.out, "wrote %s to %s\n", humanize.Bytes(uint64(len(pdf))), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "important_notes.pdf", "output file")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "conversation id (default: most recent)")
	return cmd
}

func newFeedbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <text>",
		Short: "Tell the assistant how to adapt its answers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := a.user()
			if err != nil {
				return err
			}
			resp, err := a.client().SubmitFeedback(cmd.Context(), model.FeedbackRequest{
				UserID:       userID,
				FeedbackText: strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, resp.Message)
			return nil
		},
	}
}
