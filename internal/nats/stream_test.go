package nats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageSubject(t *testing.T) {
	assert.Equal(t, "edtube.msg.c1.user", MessageSubject("c1", "user"))
	assert.Equal(t, "edtube.msg.a_b_c.assistant", MessageSubject("a.b*c", "assistant"))
	assert.Equal(t, "edtube.msg._._", MessageSubject("", ""))
}

func TestConversationFilter(t *testing.T) {
	assert.Equal(t, "edtube.msg.c1.>", ConversationFilter("c1"))
	assert.Equal(t, "edtube.msg.x_y.>", ConversationFilter("x>y"))
}

func TestNewMessageStore_DefaultStream(t *testing.T) {
	assert.Equal(t, DefaultStreamName, NewMessageStore(nil, "").stream)
	assert.Equal(t, "CUSTOM", NewMessageStore(nil, "CUSTOM").stream)
}

func TestCountSubjects(t *testing.T) {
	assert.Zero(t, countSubjects(nil))
	assert.Equal(t, 5, countSubjects(map[string]uint64{
		"edtube.msg.c1.user":      2,
		"edtube.msg.c1.assistant": 3,
	}))
}
