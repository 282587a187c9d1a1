package model

// QuizQuestion is a multiple choice question tied to a video position.
type QuizQuestion struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"min=2,dive,required"`
	CorrectOption string   `json:"correct_option" validate:"required"`
	Timestamp     string   `json:"timestamp,omitempty"`
}

// QuizResponse wraps a generated quiz.
type QuizResponse struct {
	Questions []QuizQuestion `json:"questions" validate:"dive"`
}

// WrongQuestion is a question the learner answered incorrectly.
type WrongQuestion struct {
	Question      string `json:"question" validate:"required"`
	CorrectOption string `json:"correct_option"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// MistakesRequest carries wrong answers to the remedial endpoints.
type MistakesRequest struct {
	Mistakes []WrongQuestion `json:"mistakes" validate:"dive"`
}

// RevisionResponse is a markdown revision document.
type RevisionResponse struct {
	MarkdownContent string `json:"markdown_content"`
}

// Flashcard is a two sided study card.
type Flashcard struct {
	Front string `json:"front" validate:"required"`
	Back  string `json:"back"`
}

// FlashcardsResponse wraps a generated deck.
type FlashcardsResponse struct {
	Cards []Flashcard `json:"cards" validate:"dive"`
}
