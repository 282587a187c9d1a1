// Package study renders quizzes, flashcards and topic lists as plain text
// and grades quiz answers.
package study

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/edtube/platform/internal/model"
)

// ErrNoContent is returned when there is nothing to render.
var ErrNoContent = errors.New("no content")

// OptionLabel returns the letter shown for option i. Past Z the label is
// the 1-based option number.
func OptionLabel(i int) string {
	if i >= 0 && i < 26 {
		return string(rune('A' + i))
	}
	return strconv.Itoa(i + 1)
}

// RenderQuiz writes numbered questions with lettered options.
func RenderQuiz(w io.Writer, questions []model.QuizQuestion) error {
	if len(questions) == 0 {
		return ErrNoContent
	}

	bw := bufio.NewWriter(w)
	for i, q := range questions {
		fmt.Fprintf(bw, "%d. %s", i+1, q.Question)
		if q.Timestamp != "" {
			fmt.Fprintf(bw, " [%s]", q.Timestamp)
		}
		bw.WriteString("\n")
		for j, opt := range q.Options {
			fmt.Fprintf(bw, "   %s) %s\n", OptionLabel(j), opt)
		}
		if i < len(questions)-1 {
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

// RenderFlashcards writes each card front and back.
func RenderFlashcards(w io.Writer, cards []model.Flashcard) error {
	if len(cards) == 0 {
		return ErrNoContent
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n\n", pluralCards(len(cards)))
	for i, c := range cards {
		fmt.Fprintf(bw, "[%d] %s\n    %s\n", i+1, c.Front, c.Back)
	}
	return bw.Flush()
}

// RenderTopics writes a bulleted list of topics.
func RenderTopics(w io.Writer, topics []string) error {
	var kept []string
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return ErrNoContent
	}

	bw := bufio.NewWriter(w)
	for _, t := range kept {
		fmt.Fprintf(bw, "- %s\n", t)
	}
	return bw.Flush()
}

// Grade compares answers with the correct options. An answer is either the
// option text or its letter. Unanswered questions count as wrong.
func Grade(questions []model.QuizQuestion, answers []string) []model.WrongQuestion {
	var wrong []model.WrongQuestion
	for i, q := range questions {
		var given string
		if i < len(answers) {
			given = resolveAnswer(q, answers[i])
		}
		if !strings.EqualFold(given, strings.TrimSpace(q.CorrectOption)) {
			wrong = append(wrong, model.WrongQuestion{
				Question:      q.Question,
				CorrectOption: q.CorrectOption,
				Timestamp:     q.Timestamp,
			})
		}
	}
	return wrong
}

// Score formats a result line such as "3 of 5 correct (60%)".
func Score(total, wrong int) string {
	if total == 0 {
		return "no questions"
	}
	right := total - wrong
	return fmt.Sprintf("%s of %s correct (%d%%)", humanize.Comma(int64(right)), humanize.Comma(int64(total)), right*100/total)
}

func resolveAnswer(q model.QuizQuestion, answer string) string {
	answer = strings.TrimSpace(answer)
	for j, opt := range q.Options {
		if strings.EqualFold(answer, OptionLabel(j)) {
			return strings.TrimSpace(opt)
		}
	}
	return answer
}

func pluralCards(n int) string {
	return humanize.Comma(int64(n)) + " " + english.PluralWord(n, "card", "")
}
