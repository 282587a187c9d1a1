package handler

import (
	"net/http"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/service"
)

// FeedbackHandler handles POST /api/feedback.
type FeedbackHandler struct {
	service *service.FeedbackService
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(svc *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: svc}
}

// Submit handles POST /api/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req model.FeedbackRequest
	req.UserID = requestUser(r, "")
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.service.Process(r.Context(), &req))
}
