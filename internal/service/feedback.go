package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
)

// preferenceMarkers flag feedback that states a lasting preference.
var preferenceMarkers = []string{
	"prefer", "please", "always", "never", "i like", "i don't like", "i dont like",
	"too long", "too short", "more examples", "simpler", "in detail",
}

// FeedbackService keeps user preferences stated as feedback.
type FeedbackService struct {
	logger *logger.Logger

	mu       sync.RWMutex
	memories map[string][]string
}

// NewFeedbackService creates a new feedback service.
func NewFeedbackService(log *logger.Logger) *FeedbackService {
	return &FeedbackService{
		logger:   logger.OrNop(log).Named("feedback"),
		memories: make(map[string][]string),
	}
}

// Process stores feedback that reads as a preference and acknowledges the
// rest.
func (s *FeedbackService) Process(ctx context.Context, req *model.FeedbackRequest) *model.FeedbackResponse {
	text := strings.TrimSpace(req.FeedbackText)
	if !worthRemembering(text) {
		s.logger.Debug("feedback not stored", zap.String("user_id", req.UserID))
		return &model.FeedbackResponse{Stored: false, Message: "Feedback acknowledged but not stored as a preference."}
	}

	s.mu.Lock()
	existing := s.memories[req.UserID]
	duplicate := false
	for _, m := range existing {
		if strings.EqualFold(m, text) {
			duplicate = true
			break
		}
	}
	if !duplicate {
		s.memories[req.UserID] = append(existing, text)
	}
	s.mu.Unlock()

	s.logger.Info("preference stored", zap.String("user_id", req.UserID))
	return &model.FeedbackResponse{Stored: true, Message: "Memory stored: " + text}
}

// Memories returns the stored preferences of userID.
func (s *FeedbackService) Memories(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.memories[userID]...)
}

func worthRemembering(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range preferenceMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
