package handler

import (
	"net/http"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/pkg/logger"
)

// QueryHandler handles question answering.
type QueryHandler struct {
	service *service.QueryService
	logger  *logger.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(svc *service.QueryService, log *logger.Logger) *QueryHandler {
	return &QueryHandler{
		service: svc,
		logger:  logger.OrNop(log),
	}
}

// Query handles POST /api/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req model.QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = requestUser(r, req.UserID)

	resp, err := h.service.Answer(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to process query")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
