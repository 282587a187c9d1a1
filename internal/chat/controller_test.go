package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtube/platform/internal/conversation"
	"github.com/edtube/platform/internal/model"
)

type emptyFetcher struct{}

func (emptyFetcher) ListMessages(context.Context, string, int, int) ([]model.MessageRecord, error) {
	return nil, nil
}

type fakeBackend struct {
	mu       sync.Mutex
	queries  []model.QueryRequest
	saved    []model.MessageCreate
	queryErr error
	saveErr  error
	answer   string

	// when set, SendQuery signals entered and waits for release
	entered chan struct{}
	release chan struct{}

	// observed store length at save time
	store     *conversation.Store
	lenAtSave int
}

func (f *fakeBackend) SendQuery(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, req)
	err := f.queryErr
	f.mu.Unlock()

	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	if err != nil {
		return model.QueryResponse{}, err
	}
	return model.QueryResponse{Answer: f.answer, Timestamp: "00:03:12"}, nil
}

func (f *fakeBackend) SaveMessage(ctx context.Context, msg model.MessageCreate) (model.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, msg)
	if f.store != nil {
		f.lenAtSave = len(f.store.Messages())
	}
	if f.saveErr != nil {
		return model.MessageRecord{}, f.saveErr
	}
	return model.MessageRecord{ID: "saved", Content: msg.Content, MessageType: msg.MessageType}, nil
}

func setup(t *testing.T, backend *fakeBackend) (*Controller, *conversation.Store) {
	t.Helper()
	store := conversation.NewStore(emptyFetcher{}, nil)
	require.NoError(t, store.SetActiveConversation(context.Background(), &model.Conversation{ID: "c1", UserID: "u1"}))
	return NewController(store, backend, "fallback", nil), store
}

func userMsg(text string) model.Message {
	return model.Message{ID: "local-1", Role: model.RoleUser, Content: model.Text(text)}
}

func TestSubmit_UserTurn(t *testing.T) {
	backend := &fakeBackend{answer: "Entropy measures disorder."}
	ctrl, store := setup(t, backend)

	require.NoError(t, ctrl.Submit(context.Background(), userMsg("what is entropy?")))

	msgs := store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "local-1", msgs[0].ID)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "what is entropy?", msgs[0].Text())

	assert.True(t, strings.HasPrefix(msgs[1].ID, "ai-"))
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Entropy measures disorder.", msgs[1].Text())
	assert.Equal(t, "00:03:12", msgs[1].Metadata["timestamp"])

	require.Len(t, backend.queries, 1)
	assert.Equal(t, model.QueryRequest{Query: "what is entropy?", ConversationID: "c1", UserID: "u1"}, backend.queries[0])

	state := store.State()
	assert.False(t, state.AIResponding)
	assert.NoError(t, state.TurnError)
	assert.True(t, store.TryAcquire(), "guard released")
}

func TestSubmit_UserTurnFailure(t *testing.T) {
	boom := errors.New("backend down")
	backend := &fakeBackend{queryErr: boom}
	ctrl, store := setup(t, backend)

	err := ctrl.Submit(context.Background(), userMsg("hello"))
	require.NoError(t, err)

	state := store.State()
	require.Len(t, state.Messages, 1)
	assert.Equal(t, model.RoleUser, state.Messages[0].Role)
	assert.ErrorIs(t, state.TurnError, boom)
	assert.False(t, state.AIResponding)
	assert.True(t, store.TryAcquire(), "guard released")
}

func TestSubmit_DuplicateDropped(t *testing.T) {
	backend := &fakeBackend{
		answer:  "ok",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	ctrl, store := setup(t, backend)

	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(context.Background(), userMsg("first")) }()
	<-backend.entered

	before := len(store.Messages())
	err := ctrl.Submit(context.Background(), userMsg("second"))
	assert.NoError(t, err)
	assert.Equal(t, before, len(store.Messages()))

	close(backend.release)
	require.NoError(t, <-done)

	assert.Len(t, backend.queries, 1)
	assert.Len(t, store.Messages(), 2)
}

func TestSubmit_NoActiveConversation(t *testing.T) {
	store := conversation.NewStore(emptyFetcher{}, nil)
	backend := &fakeBackend{}
	ctrl := NewController(store, backend, "u", nil)

	err := ctrl.Submit(context.Background(), userMsg("hi"))
	assert.ErrorIs(t, err, ErrNoActiveConversation)
	assert.Empty(t, backend.queries)
	assert.True(t, store.TryAcquire(), "guard released")
}

func TestSubmit_AssistantTurnPersistsFirst(t *testing.T) {
	backend := &fakeBackend{}
	ctrl, store := setup(t, backend)
	backend.store = store

	msg := model.Message{
		ID:       "a1",
		Role:     model.RoleAssistant,
		Content:  model.Text("restored answer"),
		Metadata: map[string]any{"timestamp": "00:01:00"},
	}
	require.NoError(t, ctrl.Submit(context.Background(), msg))

	require.Len(t, backend.saved, 1)
	assert.Equal(t, model.MessageCreate{
		ConversationID: "c1",
		UserID:         "u1",
		Content:        "restored answer",
		MessageType:    "assistant",
		Metadata:       map[string]any{"timestamp": "00:01:00"},
	}, backend.saved[0])
	assert.Equal(t, 0, backend.lenAtSave)

	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "a1", msgs[0].ID)
	assert.Empty(t, backend.queries)
}

func TestSubmit_AssistantTurnFailure(t *testing.T) {
	boom := errors.New("save failed")
	backend := &fakeBackend{saveErr: boom}
	ctrl, store := setup(t, backend)

	require.NoError(t, ctrl.Submit(context.Background(), model.Message{Role: model.RoleAssistant, Content: model.Text("x")}))

	state := store.State()
	assert.Empty(t, state.Messages)
	assert.ErrorIs(t, state.TurnError, boom)
}

func TestSubmit_FallbackUserID(t *testing.T) {
	store := conversation.NewStore(emptyFetcher{}, nil)
	require.NoError(t, store.SetActiveConversation(context.Background(), &model.Conversation{ID: "c"}))
	backend := &fakeBackend{answer: "a"}
	ctrl := NewController(store, backend, "session-user", nil)

	require.NoError(t, ctrl.Submit(context.Background(), userMsg("q")))
	require.Len(t, backend.queries, 1)
	assert.Equal(t, "session-user", backend.queries[0].UserID)
}

func TestRetry_ResubmitsLastUserMessage(t *testing.T) {
	backend := &fakeBackend{queryErr: errors.New("timeout")}
	ctrl, store := setup(t, backend)
	ctx := context.Background()

	require.NoError(t, ctrl.Submit(ctx, userMsg("explain gradients")))
	require.Error(t, store.State().TurnError)

	backend.mu.Lock()
	backend.queryErr = nil
	backend.answer = "Gradients point uphill."
	backend.mu.Unlock()

	require.NoError(t, ctrl.Retry(ctx))

	state := store.State()
	assert.NoError(t, state.TurnError)
	assert.Equal(t, 1, state.RetryCount)
	require.Len(t, state.Messages, 3)
	assert.True(t, strings.HasPrefix(state.Messages[1].ID, "retry-"))
	assert.Equal(t, "explain gradients", state.Messages[1].Text())
	assert.Equal(t, "Gradients point uphill.", state.Messages[2].Text())
	require.Len(t, backend.queries, 2)
	assert.Equal(t, "explain gradients", backend.queries[1].Query)
}

func TestRetry_ResubmitsWithEmptyMetadata(t *testing.T) {
	backend := &fakeBackend{queryErr: errors.New("timeout")}
	ctrl, store := setup(t, backend)
	ctx := context.Background()

	msg := userMsg("explain gradients")
	msg.Metadata = map[string]any{"source": "keyboard"}
	require.NoError(t, ctrl.Submit(ctx, msg))

	backend.mu.Lock()
	backend.queryErr = nil
	backend.answer = "ok"
	backend.mu.Unlock()
	require.NoError(t, ctrl.Retry(ctx))

	msgs := store.State().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "keyboard", msgs[0].Metadata["source"])
	assert.NotNil(t, msgs[1].Metadata)
	assert.Empty(t, msgs[1].Metadata)
}

func TestRetry_NoUserMessage(t *testing.T) {
	backend := &fakeBackend{saveErr: errors.New("nope")}
	ctrl, store := setup(t, backend)
	ctx := context.Background()

	require.NoError(t, ctrl.Submit(ctx, model.Message{Role: model.RoleAssistant, Content: model.Text("x")}))
	require.Error(t, store.State().TurnError)

	require.NoError(t, ctrl.Retry(ctx))
	assert.Empty(t, backend.queries)
	assert.Equal(t, 0, store.State().RetryCount)
}

func TestRetry_WithoutErrorIsNoop(t *testing.T) {
	backend := &fakeBackend{answer: "a"}
	ctrl, store := setup(t, backend)
	ctx := context.Background()

	require.NoError(t, ctrl.Submit(ctx, userMsg("q")))
	require.NoError(t, ctrl.Retry(ctx))

	assert.Len(t, backend.queries, 1)
	assert.Equal(t, 0, store.State().RetryCount)
}
