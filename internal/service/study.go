package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/llm"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
)

// ErrNoVideo is returned by study operations before any video was processed.
var ErrNoVideo = errors.New("no video loaded, please load a video first")

const (
	quizLength     = 5
	optionsPerQuiz = 4
	notesConcepts  = 8
)

var distractors = []string{
	"Unrelated background music",
	"Channel announcements",
	"Sponsor segment",
	"Closing credits",
}

// StudyService builds quizzes, revision material and notes from the
// concepts extracted for a user's videos.
type StudyService struct {
	conversations *ConversationService
	llm           llm.Client
	logger        *logger.Logger
}

// NewStudyService creates a new study service.
func NewStudyService(conversations *ConversationService, client llm.Client, log *logger.Logger) *StudyService {
	if client == nil {
		client = llm.NewOfflineClient()
	}
	return &StudyService{
		conversations: conversations,
		llm:           client,
		logger:        logger.OrNop(log).Named("study"),
	}
}

// Quiz generates multiple choice questions about the user's latest video.
func (s *StudyService) Quiz(ctx context.Context, userID string) ([]model.QuizQuestion, error) {
	concepts, err := s.latestConcepts(ctx, userID)
	if err != nil {
		return nil, err
	}

	prompt := "Create 5 multiple-choice questions that test understanding of these concepts: " +
		strings.Join(concepts, "; ") + "\n" + quizInstructions
	if qs := s.generateQuiz(ctx, prompt); len(qs) > 0 {
		return qs, nil
	}
	return cannedQuiz(concepts, "Which topic does the video cover at %s?"), nil
}

// Remedial generates new questions around the concepts behind mistakes.
// With no mistakes it falls back to a regular quiz.
func (s *StudyService) Remedial(ctx context.Context, userID string, mistakes []model.WrongQuestion) ([]model.QuizQuestion, error) {
	if len(mistakes) == 0 {
		return s.Quiz(ctx, userID)
	}

	var b strings.Builder
	b.WriteString("The user struggled with the following questions. Create 5 NEW multiple-choice questions testing the same concepts.\n")
	concepts := make([]string, 0, len(mistakes))
	for _, m := range mistakes {
		fmt.Fprintf(&b, "- Question: %s\n  Correct Answer: %s\n", m.Question, m.CorrectOption)
		if m.CorrectOption != "" {
			concepts = append(concepts, m.CorrectOption)
		}
	}
	b.WriteString(quizInstructions)

	if qs := s.generateQuiz(ctx, b.String()); len(qs) > 0 {
		return qs, nil
	}
	if len(concepts) == 0 {
		return s.Quiz(ctx, userID)
	}
	return cannedQuiz(concepts, "Which concept is explained around %s?"), nil
}

// Revision renders a markdown document explaining each mistake.
func (s *StudyService) Revision(ctx context.Context, mistakes []model.WrongQuestion) string {
	var b strings.Builder
	b.WriteString("# Revision Document\n\n")

	for i, m := range mistakes {
		query := fmt.Sprintf("Explain the concept behind this question: '%s'. The correct answer is '%s'. Provide a concise explanation.",
			m.Question, m.CorrectOption)

		answer, position := "Could not generate explanation.", "00:00:00"
		resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
			Messages: []llm.ChatMessage{{Role: string(model.RoleUser), Content: query}},
		})
		if err != nil {
			s.logger.Warn("revision explanation failed", zap.Int("mistake", i+1), zap.Error(err))
		} else {
			answer, position = resp.Content, VideoPosition(m.Question)
		}

		fmt.Fprintf(&b, "## %d. Question: %s\n\n", i+1, m.Question)
		fmt.Fprintf(&b, "**Correct Option:** %s\n", m.CorrectOption)
		fmt.Fprintf(&b, "**Your Timestamp:** %s\n\n", m.Timestamp)
		b.WriteString("### Concept & Explanation\n")
		fmt.Fprintf(&b, "%s\n\n", answer)
		fmt.Fprintf(&b, "**Watch from:** %s\n\n", position)
		b.WriteString("---\n\n")
	}
	return b.String()
}

// Flashcards builds one card per concept of the user's latest video.
func (s *StudyService) Flashcards(ctx context.Context, userID string) ([]model.Flashcard, error) {
	concepts, err := s.latestConcepts(ctx, userID)
	if err != nil {
		return nil, err
	}
	cards := make([]model.Flashcard, 0, len(concepts))
	for _, c := range concepts {
		cards = append(cards, model.Flashcard{
			Front: c,
			Back:  fmt.Sprintf("Covered around %s. Explain %s in your own words, then rewatch that part to check.", VideoPosition(c), c),
		})
	}
	return cards, nil
}

// ImportantNotes renders the concepts of a conversation as a PDF. An empty
// conversationID selects the user's latest video.
func (s *StudyService) ImportantNotes(ctx context.Context, userID, conversationID string) ([]byte, error) {
	var concepts []string
	if conversationID != "" {
		conv, err := s.conversations.Get(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		concepts = conv.Concepts
	} else {
		var err error
		concepts, err = s.latestConcepts(ctx, userID)
		if err != nil && !errors.Is(err, ErrNoVideo) {
			return nil, err
		}
	}

	doc := newPDFDocument("Important Topics & Notes")
	if len(concepts) == 0 {
		doc.Paragraph("No concepts were extracted. Please load a video first.")
		return doc.Bytes(), nil
	}
	if len(concepts) > notesConcepts {
		concepts = concepts[:notesConcepts]
	}

	for _, c := range concepts {
		explanation := "Review this part of the video."
		resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
			Messages:  []llm.ChatMessage{{Role: string(model.RoleUser), Content: "Explain " + c + " in 2-3 sentences."}},
			MaxTokens: 256,
		})
		if err == nil && strings.TrimSpace(resp.Content) != "" {
			explanation = strings.TrimSpace(resp.Content)
		} else if err != nil {
			s.logger.Warn("notes explanation failed", zap.String("concept", c), zap.Error(err))
		}

		doc.Heading(c)
		doc.Paragraph("Timestamp: " + VideoPosition(c))
		doc.Paragraph("Explanation: " + explanation)
		doc.Blank()
	}
	return doc.Bytes(), nil
}

func (s *StudyService) latestConcepts(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		userID = anonymousUser
	}
	for _, conv := range s.conversations.ListByUser(ctx, userID) {
		if len(conv.Concepts) > 0 {
			return conv.Concepts, nil
		}
	}
	return nil, ErrNoVideo
}

const quizInstructions = `Return the output strictly as a JSON array of objects. Each object must have the following fields:
- "question": The question string.
- "options": An array of 4 string options.
- "correct_option": The string text of the correct option (must be one of the options).
- "timestamp": The timestamp string (HH:MM:SS) where this topic is discussed.
Do not include any markdown formatting, just the raw JSON string.`

// generateQuiz asks the model for a quiz. Any reply that does not decode
// into well formed questions yields nil.
func (s *StudyService) generateQuiz(ctx context.Context, prompt string) []model.QuizQuestion {
	resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
		System:   "You are a helpful education assistant.",
		Messages: []llm.ChatMessage{{Role: string(model.RoleUser), Content: prompt}},
	})
	if err != nil {
		s.logger.Warn("quiz generation failed", zap.Error(err))
		return nil
	}
	qs, err := parseQuiz(resp.Content)
	if err != nil {
		s.logger.Debug("quiz reply not usable", zap.String("provider", s.llm.Name()), zap.Error(err))
		return nil
	}
	return qs
}

// parseQuiz decodes a JSON array of questions, or an object wrapping one.
func parseQuiz(content string) ([]model.QuizQuestion, error) {
	raw := []byte(stripFences(content))

	var qs []model.QuizQuestion
	if err := json.Unmarshal(raw, &qs); err != nil {
		var wrapped map[string]json.RawMessage
		if werr := json.Unmarshal(raw, &wrapped); werr != nil {
			return nil, fmt.Errorf("decode quiz: %w", err)
		}
		for _, key := range []string{"questions", "quiz"} {
			if v, ok := wrapped[key]; ok {
				if err := json.Unmarshal(v, &qs); err != nil {
					return nil, fmt.Errorf("decode quiz %q: %w", key, err)
				}
				break
			}
		}
	}

	if len(qs) == 0 {
		return nil, errors.New("quiz has no questions")
	}
	for i, q := range qs {
		if q.Question == "" || len(q.Options) < 2 || !slices.Contains(q.Options, q.CorrectOption) {
			return nil, fmt.Errorf("question %d is malformed", i+1)
		}
	}
	return qs, nil
}

// cannedQuiz builds questions whose answer is a concept and whose wrong
// options come from the other concepts.
func cannedQuiz(concepts []string, format string) []model.QuizQuestion {
	n := min(len(concepts), quizLength)
	qs := make([]model.QuizQuestion, 0, n)
	for i := 0; i < n; i++ {
		correct := concepts[i]
		options := []string{correct}
		for j := 1; len(options) < optionsPerQuiz && j < len(concepts); j++ {
			options = append(options, concepts[(i+j)%len(concepts)])
		}
		for _, d := range distractors {
			if len(options) == optionsPerQuiz {
				break
			}
			if !slices.Contains(options, d) {
				options = append(options, d)
			}
		}
		// rotate so the answer is not always first
		shift := i % len(options)
		rotated := make([]string, 0, len(options))
		rotated = append(rotated, options[shift:]...)
		rotated = append(rotated, options[:shift]...)

		position := VideoPosition(correct)
		qs = append(qs, model.QuizQuestion{
			Question:      fmt.Sprintf(format, position),
			Options:       rotated,
			CorrectOption: correct,
			Timestamp:     position,
		})
	}
	return qs
}
