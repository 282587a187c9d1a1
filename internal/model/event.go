package model

// Stream event types and statuses emitted by the video processing endpoint.
const (
	EventTypeConversationInfo = "conversation_info"

	StreamStatusProgress             = "progress"
	StreamStatusCompleted            = "completed"
	StreamStatusError                = "error"
	StreamStatusNewConversation      = "new_conversation"
	StreamStatusExistingConversation = "existing_conversation"
)

// StreamEvent is one NDJSON line of a video processing response.
type StreamEvent struct {
	Type           string  `json:"type,omitempty"`
	Status         string  `json:"status,omitempty"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Progress       float64 `json:"progress,omitempty"`
	Message        string  `json:"message,omitempty"`
}

// IsConversationInfo reports whether the event announces the conversation.
func (e StreamEvent) IsConversationInfo() bool {
	return e.Type == EventTypeConversationInfo
}

// IsError reports whether the event aborts the stream.
func (e StreamEvent) IsError() bool {
	return e.Status == StreamStatusError
}
