package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the delivery status of a normalized message.
type Status string

const (
	StatusComplete Status = "complete"
)

// Part is one piece of message content. TextPart is the only variant.
type Part interface {
	isPart()
}

// TextPart is a plain text content part.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// Text builds a single-part content slice.
func Text(s string) []Part {
	return []Part{TextPart{Text: s}}
}

// Message is the normalized shape consumed by renderers and the chat
// controller.
type Message struct {
	ID        string
	Role      Role
	Content   []Part
	CreatedAt time.Time
	Metadata  map[string]any
	Status    Status
}

// Text concatenates the message's text parts in order.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Content {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// MessageRecord is a message as stored by the backend.
type MessageRecord struct {
	ID             string         `json:"_id"`
	ConversationID string         `json:"conversation_id"`
	UserID         string         `json:"user_id"`
	Content        string         `json:"content"`
	MessageType    string         `json:"message_type"`
	Timestamp      string         `json:"timestamp,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts the identifier under either "_id" or "id".
func (r *MessageRecord) UnmarshalJSON(data []byte) error {
	type alias MessageRecord
	aux := struct {
		*alias
		PlainID string `json:"id"`
	}{alias: (*alias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = aux.PlainID
	}
	return nil
}

// MessageCreate is the payload used to persist a message.
type MessageCreate struct {
	ConversationID string         `json:"conversation_id" validate:"required"`
	UserID         string         `json:"user_id" validate:"required"`
	Content        string         `json:"content"`
	MessageType    string         `json:"message_type" validate:"required,oneof=user assistant"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// QueryRequest asks the backend to answer a question in a conversation.
type QueryRequest struct {
	Query          string `json:"query" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
	UserID         string `json:"user_id,omitempty"`
}

// QueryResponse is the backend's answer.
type QueryResponse struct {
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp,omitempty"`
}

// FeedbackRequest submits free-form feedback.
type FeedbackRequest struct {
	UserID       string `json:"user_id" validate:"required"`
	FeedbackText string `json:"feedback_text" validate:"required,max=4000"`
}

// FeedbackResponse reports whether the feedback was kept.
type FeedbackResponse struct {
	Stored  bool   `json:"stored"`
	Message string `json:"message"`
}
