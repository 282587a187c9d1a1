// Package handler provides HTTP handlers for the development backend.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edtube/platform/internal/middleware"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  logger.OrNop(log),
	}
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ConversationCreate
	req.UserID = middleware.GetUserID(ctx)
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.Create(ctx, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// ListByUser handles GET /api/conversations/{user_id}
func (h *ConversationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	if caller := middleware.GetUserID(ctx); caller != "" && caller != userID {
		writeError(w, http.StatusForbidden, "cannot list another user's conversations")
		return
	}

	writeJSON(w, http.StatusOK, h.service.ListByUser(ctx, userID))
}
