package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_UnmarshalAcceptsBothIDKeys(t *testing.T) {
	var a, b Conversation
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"c1","user_id":"u"}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c2","user_id":"u"}`), &b))

	assert.Equal(t, "c1", a.ID)
	assert.Equal(t, "c2", b.ID)
	assert.Equal(t, "u", b.UserID)
}

func TestConversation_MarshalEmitsUnderscoreID(t *testing.T) {
	data, err := json.Marshal(Conversation{ID: "c1", UserID: "u"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"_id":"c1"`)
}

func TestMessageRecord_UnmarshalPlainID(t *testing.T) {
	var r MessageRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id":"m1","content":"hi","message_type":"user"}`), &r))
	assert.Equal(t, "m1", r.ID)
	assert.Equal(t, "hi", r.Content)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"2024-03-01T10:00:00.123456", time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC), true},
		{"2024-03-01T10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), true},
		{"00:03:12", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestTime_UnmarshalTolerant(t *testing.T) {
	var c Conversation
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"c","created_at":"2024-01-02T03:04:05.5","updated_at":null}`), &c))
	assert.Equal(t, 2024, c.CreatedAt.Year())
	assert.True(t, c.UpdatedAt.IsZero())
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Intro", (&Conversation{Title: "Intro"}).DisplayTitle())
	assert.Equal(t, "Video: abc123", (&Conversation{VideoURL: "https://www.youtube.com/watch?v=abc123&t=4"}).DisplayTitle())
	assert.Equal(t, "Video: xyz", (&Conversation{VideoURL: "https://youtu.be/xyz?t=1"}).DisplayTitle())
	assert.Equal(t, "Video", (&Conversation{}).DisplayTitle())
}

func TestMessage_TextConcatenatesParts(t *testing.T) {
	m := Message{Content: []Part{TextPart{Text: "a"}, TextPart{Text: "b"}}}
	assert.Equal(t, "ab", m.Text())
}
