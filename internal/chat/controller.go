// Package chat turns submitted messages into store updates and backend
// calls, one turn at a time.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/edtube/platform/internal/codec"
	"github.com/edtube/platform/internal/conversation"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
	"github.com/edtube/platform/pkg/metrics"
	"github.com/edtube/platform/pkg/tracing"
)

var (
	// ErrNoActiveConversation is returned by Submit when no conversation is
	// selected.
	ErrNoActiveConversation = errors.New("no active conversation to save message to")

	// ErrDuplicateSubmission marks a submission dropped because another
	// turn was in flight. It is logged, never returned.
	ErrDuplicateSubmission = errors.New("turn already in progress")
)

// Backend is the subset of the backend API the controller calls.
type Backend interface {
	SendQuery(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error)
	SaveMessage(ctx context.Context, msg model.MessageCreate) (model.MessageRecord, error)
}

// Controller runs chat turns against a conversation store.
type Controller struct {
	store   *conversation.Store
	backend Backend
	userID  string
	log     *logger.Logger
	tracer  trace.Tracer
}

// NewController creates a controller. userID is used when the active
// conversation does not carry one.
func NewController(store *conversation.Store, backend Backend, userID string, log *logger.Logger) *Controller {
	return &Controller{
		store:   store,
		backend: backend,
		userID:  userID,
		log:     logger.OrNop(log).Named("chat"),
		tracer:  tracing.Tracer(),
	}
}

// Submit runs one turn. A submission made while another turn is in flight
// is dropped and nil is returned. Backend failures are recorded on the
// store as the turn error and are not returned.
func (c *Controller) Submit(ctx context.Context, msg model.Message) error {
	role := roleLabel(msg.Role)

	if !c.store.TryAcquire() {
		c.log.Debug("dropping submission",
			zap.String("message_id", msg.ID),
			zap.Error(ErrDuplicateSubmission),
		)
		metrics.RecordTurn(role, "duplicate", 0)
		return nil
	}
	defer c.store.Release()

	conv := c.store.Active()
	if conv == nil {
		return ErrNoActiveConversation
	}

	userID := conv.UserID
	if userID == "" {
		userID = c.userID
	}

	ctx, span := c.tracer.Start(ctx, "chat.Submit", trace.WithAttributes(
		attribute.String("conversation.id", conv.ID),
		attribute.String("message.role", role),
	))
	defer span.End()

	start := time.Now()
	var err error
	if msg.Role == model.RoleUser {
		err = c.userTurn(ctx, conv.ID, userID, msg)
	} else {
		err = c.assistantTurn(ctx, conv.ID, userID, msg)
	}
	elapsed := time.Since(start).Seconds()

	if err != nil {
		c.store.SetResponding(false)
		c.store.SetTurnError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordTurn(role, "failed", elapsed)
		c.log.Warn("chat turn failed",
			zap.String("conversation_id", conv.ID),
			zap.String("role", role),
			zap.Error(err),
		)
		return nil
	}

	metrics.RecordTurn(role, "ok", elapsed)
	return nil
}

func (c *Controller) userTurn(ctx context.Context, conversationID, userID string, msg model.Message) error {
	text := msg.Text()

	local := codec.ToUIMessage(model.MessageRecord{
		ID:          msg.ID,
		MessageType: string(model.RoleUser),
		Content:     text,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:    msg.Metadata,
	})

	c.store.SetResponding(true)
	c.store.SetTurnError(nil)
	c.store.Append(local)

	resp, err := c.backend.SendQuery(ctx, model.QueryRequest{
		Query:          text,
		ConversationID: conversationID,
		UserID:         userID,
	})
	if err != nil {
		return fmt.Errorf("send query: %w", err)
	}

	c.store.Append(codec.ToUIMessage(model.MessageRecord{
		ID:          "ai-" + uuid.NewString(),
		MessageType: string(model.RoleAssistant),
		Content:     resp.Answer,
		Timestamp:   resp.Timestamp,
		Metadata:    map[string]any{"timestamp": resp.Timestamp},
	}))
	c.store.SetResponding(false)
	return nil
}

func (c *Controller) assistantTurn(ctx context.Context, conversationID, userID string, msg model.Message) error {
	payload, err := codec.ToBackendMessage(&msg, conversationID, userID)
	if err != nil {
		return err
	}
	// any non-user role is persisted as assistant
	payload.MessageType = string(model.RoleAssistant)
	if _, err := c.backend.SaveMessage(ctx, payload); err != nil {
		return fmt.Errorf("save message: %w", err)
	}

	c.store.Append(codec.ToUIMessage(model.MessageRecord{
		ID:          msg.ID,
		MessageType: string(model.RoleAssistant),
		Content:     payload.Content,
		Timestamp:   time.Now().UTC().Format(time.RFC3339Nano),
		Metadata:    msg.Metadata,
	}))
	return nil
}

// Retry resubmits the most recent user message after a failed turn. It
// does nothing when no failure is recorded or there is no user message.
func (c *Controller) Retry(ctx context.Context) error {
	state := c.store.State()
	if state.TurnError == nil {
		return nil
	}

	var last *model.Message
	for i := len(state.Messages) - 1; i >= 0; i-- {
		if state.Messages[i].Role == model.RoleUser {
			last = &state.Messages[i]
			break
		}
	}
	if last == nil {
		return nil
	}

	c.store.SetTurnError(nil)
	n := c.store.IncRetry()
	metrics.ChatRetriesTotal.Inc()
	c.log.Info("retrying last user message",
		zap.String("message_id", last.ID),
		zap.Int("retry_count", n),
	)

	return c.Submit(ctx, model.Message{
		ID:       "retry-" + uuid.NewString(),
		Role:     model.RoleUser,
		Content:  model.Text(last.Text()),
		Metadata: map[string]any{},
	})
}

func roleLabel(r model.Role) string {
	if r == model.RoleUser {
		return string(model.RoleUser)
	}
	return string(model.RoleAssistant)
}
