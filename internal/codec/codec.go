// Package codec converts between the backend message record shape and the
// normalized message shape used by the chat layer.
package codec

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/edtube/platform/internal/model"
)

// EmptyStateID is the id of the placeholder returned by SanitizeAll for an
// empty sequence.
const EmptyStateID = "empty-state"

// ErrInvalidInput is returned when a conversion is given no message.
var ErrInvalidInput = errors.New("codec: invalid input")

// ToUIMessage maps a backend record to a normalized message. Missing fields
// fall back to defaults; it never fails.
func ToUIMessage(rec model.MessageRecord) model.Message {
	role := model.RoleAssistant
	if rec.MessageType == string(model.RoleUser) {
		role = model.RoleUser
	}

	createdAt, ok := model.ParseTime(rec.Timestamp)
	if !ok {
		createdAt = time.Now().UTC()
	}

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	return model.Message{
		ID:        id,
		Role:      role,
		Content:   model.Text(rec.Content),
		CreatedAt: createdAt,
		Metadata:  copyMetadata(rec.Metadata),
		Status:    model.StatusComplete,
	}
}

// ToBackendMessage builds the persist payload for msg.
func ToBackendMessage(msg *model.Message, conversationID, userID string) (model.MessageCreate, error) {
	if msg == nil {
		return model.MessageCreate{}, ErrInvalidInput
	}
	return model.MessageCreate{
		ConversationID: conversationID,
		UserID:         userID,
		Content:        msg.Text(),
		MessageType:    string(msg.Role),
		Metadata:       copyMetadata(msg.Metadata),
	}, nil
}

// Sanitize returns msg with every renderer invariant restored. Applying it
// twice yields the same message.
func Sanitize(msg model.Message) model.Message {
	out := msg

	if out.Role != model.RoleUser && out.Role != model.RoleAssistant {
		out.Role = model.RoleAssistant
	}

	parts := make([]model.Part, 0, len(msg.Content))
	for _, p := range msg.Content {
		if p != nil {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = model.Text("")
	}
	out.Content = parts

	if out.Status == "" {
		out.Status = model.StatusComplete
	}
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	return out
}

// SanitizeAll sanitizes every message. An empty input yields a single
// placeholder assistant message so renderers always have a last message.
func SanitizeAll(msgs []model.Message) []model.Message {
	if len(msgs) == 0 {
		return []model.Message{Sanitize(model.Message{ID: EmptyStateID, Role: model.RoleAssistant})}
	}
	out := make([]model.Message, len(msgs))
	for i, m := range msgs {
		out[i] = Sanitize(m)
	}
	return out
}

func copyMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
