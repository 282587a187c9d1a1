// Package session bundles the conversation store and chat controller of one
// signed-in user. A Session is created at sign-in and closed at logout.
package session

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edtube/platform/internal/chat"
	"github.com/edtube/platform/internal/codec"
	"github.com/edtube/platform/internal/conversation"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
)

// Backend is what a session needs from the API client.
type Backend interface {
	chat.Backend
	conversation.MessageFetcher
}

// Session is the per-user chat context.
type Session struct {
	store  *conversation.Store
	chat   *chat.Controller
	userID string
	log    *logger.Logger
}

// New creates a session for userID.
func New(backend Backend, userID string, log *logger.Logger) *Session {
	log = logger.OrNop(log).With(zap.String("user_id", userID))
	store := conversation.NewStore(backend, log)
	return &Session{
		store:  store,
		chat:   chat.NewController(store, backend, userID, log),
		userID: userID,
		log:    log,
	}
}

// UserID returns the session owner.
func (s *Session) UserID() string { return s.userID }

// Store exposes the underlying conversation store.
func (s *Session) Store() *conversation.Store { return s.store }

// Use makes conv the active conversation and loads its latest page.
func (s *Session) Use(ctx context.Context, conv *model.Conversation) error {
	return s.store.SetActiveConversation(ctx, conv)
}

// Send submits text as a user turn. Blank input is ignored.
func (s *Session) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.chat.Submit(ctx, model.Message{
		ID:      uuid.NewString(),
		Role:    model.RoleUser,
		Content: model.Text(text),
	})
}

// Submit passes msg to the controller unchanged.
func (s *Session) Submit(ctx context.Context, msg model.Message) error {
	return s.chat.Submit(ctx, msg)
}

// Retry resubmits the last user message after a failed turn.
func (s *Session) Retry(ctx context.Context) error {
	return s.chat.Retry(ctx)
}

// LoadOlder loads the next older page of the active conversation.
func (s *Session) LoadOlder(ctx context.Context) (conversation.PageResult, error) {
	return s.store.LoadOlder(ctx)
}

// Subscribe registers a state listener.
func (s *Session) Subscribe(l conversation.Listener) func() {
	return s.store.Subscribe(l)
}

// View returns the delivered sequence prepared for rendering.
func (s *Session) View() []model.Message {
	return codec.SanitizeAll(s.store.Messages())
}

// Close tears the session down.
func (s *Session) Close() {
	s.store.Close()
	s.log.Debug("session closed")
}
