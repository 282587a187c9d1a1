package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/pkg/logger"
	"github.com/edtube/platform/pkg/metrics"
)

// VideoHandler streams video processing progress as NDJSON.
type VideoHandler struct {
	service *service.VideoService
	logger  *logger.Logger
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(svc *service.VideoService, log *logger.Logger) *VideoHandler {
	return &VideoHandler{
		service: svc,
		logger:  logger.OrNop(log),
	}
}

// Process handles POST /api/video
func (h *VideoHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.VideoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := requestUser(r, req.UserID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementVideoStreams()
	defer metrics.DecrementVideoStreams()

	enc := json.NewEncoder(w)
	started := false
	emit := func(ev model.StreamEvent) error {
		if !started {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := enc.Encode(ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.service.Process(ctx, userID, req.URL, emit)
	switch {
	case err == nil:
	case !started:
		writeServiceError(w, h.logger, err, "failed to start video processing")
	case ctx.Err() != nil:
		h.logger.Info("video stream client disconnected", zap.String("url", req.URL))
	default:
		h.logger.Error("video processing failed", zap.String("url", req.URL), zap.Error(err))
		emit(model.StreamEvent{Status: model.StreamStatusError, Message: "Unexpected error: " + err.Error()})
	}
}
