package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edtube/platform/internal/middleware"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messageService *service.MessageService
	logger         *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(msgSvc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: msgSvc,
		logger:         logger.OrNop(log),
	}
}

// List handles GET /api/messages/{id}?page=N&limit=M
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")

	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := intParam(r, "limit", service.DefaultPageLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.messageService.List(r.Context(), conversationID, page, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get messages")
		return
	}

	writeJSON(w, http.StatusOK, recs)
}

// Create handles POST /messages
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.MessageCreate
	req.UserID = middleware.GetUserID(r.Context())
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.messageService.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to store message")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &paramError{name: name, value: v}
	}
	return n, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + " parameter: " + strconv.Quote(e.value)
}
