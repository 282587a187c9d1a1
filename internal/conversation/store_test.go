package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtube/platform/internal/model"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]map[int][]model.MessageRecord
	err   error
	calls []string
}

func (f *fakeFetcher) ListMessages(_ context.Context, id string, page, limit int) ([]model.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("%s:%d:%d", id, page, limit))
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[id][page], nil
}

func records(prefix string, n int) []model.MessageRecord {
	out := make([]model.MessageRecord, n)
	for i := range out {
		out[i] = model.MessageRecord{
			ID:          fmt.Sprintf("%s%d", prefix, i),
			Content:     fmt.Sprintf("msg %d", i),
			MessageType: "user",
		}
	}
	return out
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestLoadPage_FiltersRecordsWithoutID(t *testing.T) {
	f := &fakeFetcher{pages: map[string]map[int][]model.MessageRecord{
		"c": {1: {{ID: "a", Content: "x"}, {Content: "orphan"}, {ID: "b", Content: "y"}}},
	}}
	s := NewStore(f, nil)

	res, err := s.LoadPage(context.Background(), "c", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(res.Messages))
	assert.Equal(t, []string{"a", "b"}, ids(s.Messages()))
	assert.Equal(t, []string{"c:1:50"}, f.calls)
}

func TestLoadPage_HasNextPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]map[int][]model.MessageRecord{
		"full":  {1: records("f", PageSize)},
		"short": {1: records("s", PageSize-1)},
	}}
	s := NewStore(f, nil)

	res, err := s.LoadPage(context.Background(), "full", 1)
	require.NoError(t, err)
	assert.True(t, res.HasNextPage)
	assert.True(t, s.State().HasNextPage)

	res, err = s.LoadPage(context.Background(), "short", 1)
	require.NoError(t, err)
	assert.False(t, res.HasNextPage)
	assert.False(t, s.State().HasNextPage)
}

func TestLoadPage_OlderPagesArePrepended(t *testing.T) {
	f := &fakeFetcher{pages: map[string]map[int][]model.MessageRecord{
		"c": {
			1: {{ID: "new1"}, {ID: "new2"}},
			2: {{ID: "old1"}, {ID: "old2"}},
		},
	}}
	s := NewStore(f, nil)

	_, err := s.LoadPage(context.Background(), "c", 1)
	require.NoError(t, err)
	_, err = s.LoadPage(context.Background(), "c", 2)
	require.NoError(t, err)

	state := s.State()
	assert.Equal(t, []string{"old1", "old2", "new1", "new2"}, ids(state.Messages))
	assert.Equal(t, 2, state.CurrentPage)
}

func TestLoadPage_ErrorRecorded(t *testing.T) {
	boom := errors.New("offline")
	f := &fakeFetcher{err: boom}
	s := NewStore(f, nil)

	_, err := s.LoadPage(context.Background(), "c", 1)
	require.ErrorIs(t, err, boom)

	state := s.State()
	assert.ErrorIs(t, state.LoadError, boom)
	assert.False(t, state.IsLoading)
	assert.Len(t, f.calls, 1)
}

func TestSetActiveConversation_LoadsFirstPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]map[int][]model.MessageRecord{
		"A": {1: records("a", 3)},
	}}
	s := NewStore(f, nil)

	require.NoError(t, s.SetActiveConversation(context.Background(), &model.Conversation{ID: "A", UserID: "u"}))
	state := s.State()
	require.NotNil(t, state.Conversation)
	assert.Equal(t, "A", state.Conversation.ID)
	assert.Len(t, state.Messages, 3)
	assert.Equal(t, 1, state.CurrentPage)
}

func TestSetActiveConversation_NilClears(t *testing.T) {
	f := &fakeFetcher{pages: map[string]map[int][]model.MessageRecord{
		"A": {1: records("a", PageSize), 2: records("b", 3)},
	}}
	s := NewStore(f, nil)
	ctx := context.Background()

	require.NoError(t, s.SetActiveConversation(ctx, &model.Conversation{ID: "A"}))
	_, err := s.LoadOlder(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, s.State().CurrentPage)

	require.NoError(t, s.SetActiveConversation(ctx, nil))
	state := s.State()
	assert.Nil(t, state.Conversation)
	assert.Empty(t, state.Messages)
	assert.Equal(t, 1, state.CurrentPage)
	assert.False(t, state.HasNextPage)
	assert.Len(t, f.calls, 2)
}

func TestLoadOlder_NoNextPageIsNoop(t *testing.T) {
	f := &fakeFetcher{pages: map[string]map[int][]model.MessageRecord{
		"A": {1: records("a", 2)},
	}}
	s := NewStore(f, nil)
	ctx := context.Background()

	res, err := s.LoadOlder(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Messages)

	require.NoError(t, s.SetActiveConversation(ctx, &model.Conversation{ID: "A"}))
	_, err = s.LoadOlder(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A:1:50"}, f.calls)
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	s := NewStore(&fakeFetcher{}, nil)

	var got [][]string
	cancel := s.Subscribe(func(snap Snapshot) {
		got = append(got, ids(snap.Messages))
	})

	s.Append(model.Message{ID: "1", Role: model.RoleUser, Content: model.Text("hi")})
	s.Append(model.Message{ID: "2", Role: model.RoleAssistant, Content: model.Text("hello")})
	cancel()
	s.Append(model.Message{ID: "3"})

	assert.Equal(t, [][]string{{"1"}, {"1", "2"}}, got)
	assert.Len(t, s.Messages(), 3)
}

func TestAppend_Sanitizes(t *testing.T) {
	s := NewStore(&fakeFetcher{}, nil)
	s.Append(model.Message{Role: "system"})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].ID)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.Len(t, msgs[0].Content, 1)
}

func TestGuard(t *testing.T) {
	s := NewStore(&fakeFetcher{}, nil)

	assert.True(t, s.TryAcquire())
	assert.False(t, s.TryAcquire())
	s.Release()
	assert.True(t, s.TryAcquire())
}

func TestTurnFlags(t *testing.T) {
	s := NewStore(&fakeFetcher{}, nil)
	boom := errors.New("boom")

	s.SetResponding(true)
	s.SetTurnError(boom)
	assert.Equal(t, 1, s.IncRetry())
	assert.Equal(t, 2, s.IncRetry())

	state := s.State()
	assert.True(t, state.AIResponding)
	assert.ErrorIs(t, state.TurnError, boom)
	assert.Equal(t, 2, state.RetryCount)
}

func TestClose_ResetsState(t *testing.T) {
	f := &fakeFetcher{pages: map[string]map[int][]model.MessageRecord{"A": {1: records("a", 2)}}}
	s := NewStore(f, nil)
	ctx := context.Background()

	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })
	require.NoError(t, s.SetActiveConversation(ctx, &model.Conversation{ID: "A"}))
	require.True(t, s.TryAcquire())
	before := calls

	s.Close()
	s.Append(model.Message{ID: "x"})

	assert.Equal(t, before, calls)
	assert.Nil(t, s.Active())
	assert.Len(t, s.Messages(), 1)
	assert.True(t, s.TryAcquire())
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := NewStore(&fakeFetcher{}, nil)
	s.Append(model.Message{ID: "1"})

	snap := s.State()
	snap.Messages[0].ID = "mutated"
	assert.Equal(t, "1", s.Messages()[0].ID)
}
