package study

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtube/platform/internal/model"
)

var quiz = []model.QuizQuestion{
	{Question: "What is 2+2?", Options: []string{"3", "4", "5"}, CorrectOption: "4", Timestamp: "00:01:10"},
	{Question: "Capital of France?", Options: []string{"Paris", "Rome"}, CorrectOption: "Paris"},
}

func TestRenderQuiz(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderQuiz(&buf, quiz))

	want := "1. What is 2+2? [00:01:10]\n   A) 3\n   B) 4\n   C) 5\n\n2. Capital of France?\n   A) Paris\n   B) Rome\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderQuiz_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderQuiz(&buf, nil), ErrNoContent)
	assert.Zero(t, buf.Len())
}

func TestRenderFlashcards(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderFlashcards(&buf, []model.Flashcard{{Front: "Entropy", Back: "Disorder"}}))
	assert.Equal(t, "1 card\n\n[1] Entropy\n    Disorder\n", buf.String())

	buf.Reset()
	assert.ErrorIs(t, RenderFlashcards(&buf, nil), ErrNoContent)
	assert.Zero(t, buf.Len())
}

func TestRenderTopics(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderTopics(&buf, []string{" ", ""}), ErrNoContent)
	assert.Zero(t, buf.Len())

	require.NoError(t, RenderTopics(&buf, []string{"Vectors", " Matrices "}))
	assert.Equal(t, "- Vectors\n- Matrices\n", buf.String())
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		wrong   int
	}{
		{"all right by text", []string{"4", "paris"}, 0},
		{"all right by letter", []string{"b", "A"}, 0},
		{"one wrong", []string{"C", "Paris"}, 1},
		{"unanswered", []string{"4"}, 1},
		{"none", nil, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Grade(quiz, tt.answers), tt.wrong)
		})
	}
}

func TestGrade_CarriesTimestamp(t *testing.T) {
	wrong := Grade(quiz, []string{"A", "Paris"})
	require.Len(t, wrong, 1)
	assert.Equal(t, model.WrongQuestion{Question: "What is 2+2?", CorrectOption: "4", Timestamp: "00:01:10"}, wrong[0])
}

func TestScore(t *testing.T) {
	assert.Equal(t, "3 of 5 correct (60%)", Score(5, 2))
	assert.Equal(t, "no questions", Score(0, 0))
}

func TestOptionLabel(t *testing.T) {
	assert.Equal(t, "A", OptionLabel(0))
	assert.Equal(t, "Z", OptionLabel(25))
	assert.Equal(t, "27", OptionLabel(26))
	assert.Equal(t, "0", OptionLabel(-1))
}

func TestGrade_ManyOptions(t *testing.T) {
	opts := make([]string, 28)
	for i := range opts {
		opts[i] = fmt.Sprintf("option %d", i+1)
	}
	q := []model.QuizQuestion{
		{Question: "q1", Options: opts, CorrectOption: "option 28"},
		{Question: "q2", Options: opts, CorrectOption: "option 2"},
	}
	assert.Empty(t, Grade(q, []string{"28", "b"}))
	assert.Len(t, Grade(q, []string{"[", "B"}), 1)
}
