package handler

import (
	"net/http"

	"github.com/edtube/platform/internal/middleware"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/pkg/logger"
)

// StudyHandler handles quiz, revision and notes endpoints.
type StudyHandler struct {
	service *service.StudyService
	logger  *logger.Logger
}

// NewStudyHandler creates a new study handler.
func NewStudyHandler(svc *service.StudyService, log *logger.Logger) *StudyHandler {
	return &StudyHandler{
		service: svc,
		logger:  logger.OrNop(log),
	}
}

// CreateQuiz handles POST /api/create_quiz
func (h *StudyHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	qs, err := h.service.Quiz(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to generate quiz")
		return
	}
	writeJSON(w, http.StatusOK, &model.QuizResponse{Questions: qs})
}

// LearnFromMistakes handles POST /api/learn_from_mistakes
func (h *StudyHandler) LearnFromMistakes(w http.ResponseWriter, r *http.Request) {
	var req model.MistakesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	qs, err := h.service.Remedial(r.Context(), middleware.GetUserID(r.Context()), req.Mistakes)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to generate remedial quiz")
		return
	}
	writeJSON(w, http.StatusOK, &model.QuizResponse{Questions: qs})
}

// RevisionDoc handles POST /api/revision_doc
func (h *StudyHandler) RevisionDoc(w http.ResponseWriter, r *http.Request) {
	var req model.MistakesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, &model.RevisionResponse{
		MarkdownContent: h.service.Revision(r.Context(), req.Mistakes),
	})
}

// Flashcards handles GET /flashcards/
func (h *StudyHandler) Flashcards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.Flashcards(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to generate flashcards")
		return
	}
	writeJSON(w, http.StatusOK, &model.FlashcardsResponse{Cards: cards})
}

// ImportantNotes handles GET /api/important_notes?conversation_id=ID
func (h *StudyHandler) ImportantNotes(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")

	pdf, err := h.service.ImportantNotes(r.Context(), middleware.GetUserID(r.Context()), conversationID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to generate notes")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="important_notes.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
