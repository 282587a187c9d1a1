// Package service provides business logic for the development backend.
package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
	"github.com/edtube/platform/pkg/metrics"
)

var (
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// ConversationService handles conversation operations.
type ConversationService struct {
	logger *logger.Logger

	// In-memory storage; the dev backend does not persist conversations
	conversations map[string]*model.Conversation
	mu            sync.RWMutex
}

// NewConversationService creates a new conversation service.
func NewConversationService(log *logger.Logger) *ConversationService {
	return &ConversationService{
		logger:        logger.OrNop(log).Named("conversations"),
		conversations: make(map[string]*model.Conversation),
	}
}

// Create creates a new conversation.
func (s *ConversationService) Create(ctx context.Context, req *model.ConversationCreate) (*model.Conversation, error) {
	now := model.Now()

	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    req.UserID,
		VideoURL:  req.VideoURL,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", conv.UserID),
		zap.String("video_url", conv.VideoURL),
	)

	out := *conv
	return &out, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.conversations[conversationID]
	if !exists {
		return nil, ErrNotFound
	}
	out := *conv
	return &out, nil
}

// ListByUser returns the conversations of userID, most recently updated
// first.
func (s *ConversationService) ListByUser(ctx context.Context, userID string) []model.Conversation {
	s.mu.RLock()
	convs := make([]model.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			convs = append(convs, *conv)
		}
	}
	s.mu.RUnlock()

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt.Time)
	})
	return convs
}

// FindByVideoURL returns the conversation userID has for videoURL.
func (s *ConversationService) FindByVideoURL(ctx context.Context, userID, videoURL string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conv := range s.conversations {
		if conv.UserID == userID && conv.VideoURL == videoURL {
			out := *conv
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Touch marks a conversation as updated now.
func (s *ConversationService) Touch(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists {
		return ErrNotFound
	}
	// keep ordering stable for updates within the same clock tick
	now := time.Now().UTC()
	if !now.After(conv.UpdatedAt.Time) {
		now = conv.UpdatedAt.Add(time.Microsecond)
	}
	conv.UpdatedAt = model.Time{Time: now}
	return nil
}

// SetConcepts records the concepts extracted while processing the video.
func (s *ConversationService) SetConcepts(ctx context.Context, conversationID string, concepts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists {
		return ErrNotFound
	}
	conv.Concepts = append([]string(nil), concepts...)
	return nil
}
