package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
	"github.com/edtube/platform/pkg/metrics"
)

const (
	// DefaultPageLimit is the page size used when none is requested.
	DefaultPageLimit = 50
	// MaxPageLimit bounds the requested page size.
	MaxPageLimit = 100

	// recordTimeLayout matches the zone-less ISO form the backend emits.
	recordTimeLayout = "2006-01-02T15:04:05.000000"
)

// MessageRepository stores message records in insertion order.
type MessageRepository interface {
	Append(ctx context.Context, rec *model.MessageRecord) error
	List(ctx context.Context, conversationID string, skip, limit int) ([]model.MessageRecord, error)
	Count(ctx context.Context, conversationID string) (int, error)
}

// MemoryRepository is an in-memory MessageRepository.
type MemoryRepository struct {
	mu       sync.RWMutex
	messages map[string][]model.MessageRecord
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{messages: make(map[string][]model.MessageRecord)}
}

// Append implements MessageRepository.
func (r *MemoryRepository) Append(ctx context.Context, rec *model.MessageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[rec.ConversationID] = append(r.messages[rec.ConversationID], *rec)
	return nil
}

// List implements MessageRepository.
func (r *MemoryRepository) List(ctx context.Context, conversationID string, skip, limit int) ([]model.MessageRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[conversationID]
	if skip >= len(all) {
		return []model.MessageRecord{}, nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]model.MessageRecord(nil), all[skip:end]...), nil
}

// Count implements MessageRepository.
func (r *MemoryRepository) Count(ctx context.Context, conversationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages[conversationID]), nil
}

// MessageService handles message operations.
type MessageService struct {
	repo          MessageRepository
	conversations *ConversationService
	logger        *logger.Logger
}

// NewMessageService creates a new message service.
func NewMessageService(repo MessageRepository, conversations *ConversationService, log *logger.Logger) *MessageService {
	return &MessageService{
		repo:          repo,
		conversations: conversations,
		logger:        logger.OrNop(log).Named("messages"),
	}
}

// Create stores a message in an existing conversation.
func (s *MessageService) Create(ctx context.Context, req *model.MessageCreate) (*model.MessageRecord, error) {
	if _, err := s.conversations.Get(ctx, req.ConversationID); err != nil {
		return nil, err
	}

	rec := &model.MessageRecord{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		Content:        req.Content,
		MessageType:    req.MessageType,
		Timestamp:      time.Now().UTC().Format(recordTimeLayout),
		Metadata:       req.Metadata,
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]any{}
	}

	if err := s.repo.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	if err := s.conversations.Touch(ctx, rec.ConversationID); err != nil {
		s.logger.Warn("failed to touch conversation", zap.String("conversation_id", rec.ConversationID), zap.Error(err))
	}

	metrics.MessagesTotal.WithLabelValues(rec.MessageType).Inc()
	s.logger.Debug("message stored",
		zap.String("conversation_id", rec.ConversationID),
		zap.String("message_id", rec.ID),
		zap.String("message_type", rec.MessageType),
	)
	return rec, nil
}

// List returns one page of a conversation. Page 1 is the newest window,
// higher pages reach further back; records within a page are ascending.
func (s *MessageService) List(ctx context.Context, conversationID string, page, limit int) ([]model.MessageRecord, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", ErrInvalidInput)
	}
	if limit < 1 || limit > MaxPageLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxPageLimit)
	}

	total, err := s.repo.Count(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	end := total - (page-1)*limit
	if end <= 0 {
		return []model.MessageRecord{}, nil
	}
	start := max(end-limit, 0)

	recs, err := s.repo.List(ctx, conversationID, start, end-start)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return recs, nil
}

// Recent returns up to n of the latest messages of a conversation.
func (s *MessageService) Recent(ctx context.Context, conversationID string, n int) ([]model.MessageRecord, error) {
	total, err := s.repo.Count(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if total == 0 || n <= 0 {
		return nil, nil
	}
	start := max(total-n, 0)
	return s.repo.List(ctx, conversationID, start, total-start)
}
