package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/middleware"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON reads the request body into v and checks its validate tags.
// An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return middleware.Validate(v)
}

// writeServiceError maps service errors to status codes. Unknown errors
// are logged and reported as 500 with msg.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrNoVideo):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error(msg, zap.Error(err))
		writeError(w, http.StatusInternalServerError, msg)
	}
}

// requestUser returns the user a request acts for: the explicit id when
// given, else the authenticated subject.
func requestUser(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return middleware.GetUserID(r.Context())
}
