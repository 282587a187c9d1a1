package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/edtube/platform/internal/model"
)

const (
	// DefaultStreamName is the stream holding conversation messages.
	DefaultStreamName = "EDTUBE_MESSAGES"

	// SubjectPrefix is the prefix for all message subjects.
	SubjectPrefix = "edtube.msg"
)

// MessageStore persists message records in a JetStream stream, one
// subject per conversation.
type MessageStore struct {
	client *Client
	stream string
}

// NewMessageStore creates a message store on stream.
func NewMessageStore(client *Client, stream string) *MessageStore {
	if stream == "" {
		stream = DefaultStreamName
	}
	return &MessageStore{client: client, stream: stream}
}

// EnsureStream ensures the message stream exists with proper configuration.
func (m *MessageStore) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, m.stream); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        m.stream,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "EdTube conversation messages",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// MessageSubject returns the subject for a message in a conversation.
func MessageSubject(conversationID, messageType string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectPrefix, subjectToken(conversationID), subjectToken(messageType))
}

// ConversationFilter returns the filter subject for all messages in a conversation.
func ConversationFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, subjectToken(conversationID))
}

// subjectToken makes s safe to use as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// Append publishes rec.
func (m *MessageStore) Append(ctx context.Context, rec *model.MessageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, MessageSubject(rec.ConversationID, rec.MessageType), data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Count returns the number of stored messages of a conversation.
func (m *MessageStore) Count(ctx context.Context, conversationID string) (int, error) {
	stream, err := m.client.JetStream().Stream(ctx, m.stream)
	if err != nil {
		return 0, fmt.Errorf("failed to get stream: %w", err)
	}
	info, err := stream.Info(ctx, jetstream.WithSubjectFilter(ConversationFilter(conversationID)))
	if err != nil {
		return 0, fmt.Errorf("failed to get stream info: %w", err)
	}
	return countSubjects(info.State.Subjects), nil
}

func countSubjects(subjects map[string]uint64) int {
	var n uint64
	for _, c := range subjects {
		n += c
	}
	return int(n)
}

// List returns up to limit messages of a conversation in publish order,
// skipping the first skip.
func (m *MessageStore) List(ctx context.Context, conversationID string, skip, limit int) ([]model.MessageRecord, error) {
	consumer, err := m.client.JetStream().CreateConsumer(ctx, m.stream, jetstream.ConsumerConfig{
		FilterSubject:     ConversationFilter(conversationID),
		AckPolicy:         jetstream.AckNonePolicy,
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		InactiveThreshold: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	pending := int(consumer.CachedInfo().NumPending)
	if pending <= skip || limit <= 0 {
		return []model.MessageRecord{}, nil
	}
	want := skip + limit
	if want > pending {
		want = pending
	}

	out := make([]model.MessageRecord, 0, want-skip)
	seen := 0
	for seen < want {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := consumer.Fetch(want-seen, jetstream.FetchMaxWait(2*time.Second))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch messages: %w", err)
		}

		received := 0
		for msg := range batch.Messages() {
			received++
			seen++
			if seen <= skip {
				continue
			}
			var rec model.MessageRecord
			if err := json.Unmarshal(msg.Data(), &rec); err != nil {
				continue
			}
			out = append(out, rec)
		}

		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("batch error: %w", err)
		}
		if received == 0 {
			break
		}
	}

	return out, nil
}
