package handler_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtube/platform/internal/apiclient"
	"github.com/edtube/platform/internal/handler"
	"github.com/edtube/platform/internal/ingest"
	"github.com/edtube/platform/internal/llm"
	"github.com/edtube/platform/internal/middleware"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/internal/session"
	"github.com/edtube/platform/pkg/logger"
)

const (
	testSecret = "test-secret"
	testVideo  = "https://www.youtube.com/watch?v=abc123"
)

type testServer struct {
	*httptest.Server
	convs *service.ConversationService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Nop()
	client := llm.NewOfflineClient()

	convs := service.NewConversationService(log)
	messages := service.NewMessageService(service.NewMemoryRepository(), convs, log)
	feedback := service.NewFeedbackService(log)

	r := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         testSecret,
		AllowedOrigins:    []string{"*"},
		RateLimitRequests: 10000,
		RateLimitWindow:   time.Minute,
	}, handler.Services{
		Conversations: convs,
		Messages:      messages,
		Query:         service.NewQueryService(convs, messages, feedback, client, log),
		Video:         service.NewVideoService(convs, client, 0, log),
		Study:         service.NewStudyService(convs, client, log),
		Feedback:      feedback,
	}, nil, log)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, convs: convs}
}

func (s *testServer) client(t *testing.T, userID string) *apiclient.Client {
	t.Helper()
	token := ""
	if userID != "" {
		var err error
		token, err = middleware.IssueToken(testSecret, userID, userID+"@example.com", time.Hour)
		require.NoError(t, err)
	}
	return apiclient.New(s.URL, apiclient.WithTokenSource(apiclient.StaticToken(token)))
}

func (s *testServer) processVideo(t *testing.T, c *apiclient.Client, userID string) ingest.Result {
	t.Helper()
	res, err := c.ProcessVideo(context.Background(), testVideo, userID, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.ConversationID)
	return res
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var ne *apiclient.NetworkError
	require.True(t, errors.As(err, &ne), "want NetworkError, got %v", err)
	return ne.StatusCode
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	anon := srv.client(t, "")

	_, err := anon.SendQuery(context.Background(), model.QueryRequest{Query: "q", ConversationID: "c"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apiclient.ErrNetworkFailure)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	bad := apiclient.New(srv.URL, apiclient.WithTokenSource(apiclient.StaticToken("not-a-jwt")))
	_, err = bad.ListConversations(context.Background(), "u1")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}

func TestVideoStream_NewThenExisting(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "u1")

	var events []model.StreamEvent
	res, err := c.ProcessVideo(context.Background(), testVideo, "u1", func(ev model.StreamEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, model.StreamStatusNewConversation, res.ConversationStatus)
	assert.Equal(t, 8, res.Events)
	require.Len(t, events, 8)
	assert.Equal(t, float64(100), events[7].Progress)

	again := srv.processVideo(t, c, "u1")
	assert.Equal(t, model.StreamStatusExistingConversation, again.ConversationStatus)
	assert.Equal(t, res.ConversationID, again.ConversationID)

	convs, err := c.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, testVideo, convs[0].VideoURL)
	assert.NotEmpty(t, convs[0].Concepts)
}

func TestVideoStream_InvalidURL(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "")

	var events []model.StreamEvent
	_, err := c.ProcessVideo(context.Background(), "https://vimeo.com/1", "u1", func(ev model.StreamEvent) {
		events = append(events, ev)
	})
	var se *ingest.StreamError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Contains(t, se.Message, "YouTube")
	require.Len(t, events, 1)
	assert.True(t, events[0].IsError())
}

func TestVideoStream_ContentType(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/video", "application/json", strings.NewReader(`{"url":"`+testVideo+`"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	assert.Len(t, lines, 8)
	assert.Contains(t, lines[0], `"type":"conversation_info"`)

	assert.Len(t, srv.convs.ListByUser(context.Background(), "anonymous"), 1)
}

func TestVideoStream_MissingURL(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/video", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatSession_EndToEnd(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "u1")
	ctx := context.Background()

	srv.processVideo(t, c, "u1")
	convs, err := c.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, convs, 1)

	sess := session.New(c, "u1", logger.Nop())
	defer sess.Close()
	require.NoError(t, sess.Use(ctx, &convs[0]))
	assert.Empty(t, sess.Store().Messages())

	require.NoError(t, sess.Send(ctx, "What is recursion?"))
	view := sess.View()
	require.Len(t, view, 2)
	assert.Equal(t, model.RoleUser, view[0].Role)
	assert.Equal(t, model.RoleAssistant, view[1].Role)
	assert.Contains(t, view[1].Text(), "What is recursion?")
	assert.Nil(t, sess.Store().State().TurnError)

	// a fresh session sees the persisted turns
	other := session.New(c, "u1", logger.Nop())
	defer other.Close()
	require.NoError(t, other.Use(ctx, &convs[0]))
	reloaded := other.View()
	require.Len(t, reloaded, 2)
	assert.Equal(t, "What is recursion?", reloaded[0].Text())
	assert.NotEmpty(t, reloaded[1].Metadata["timestamp"])
	assert.False(t, other.Store().State().HasNextPage)
}

func TestChatSession_FailureThenRetry(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "u1")
	ctx := context.Background()

	sess := session.New(c, "u1", logger.Nop())
	defer sess.Close()
	require.NoError(t, sess.Use(ctx, &model.Conversation{ID: "missing", UserID: "u1"}))

	require.NoError(t, sess.Send(ctx, "hello"))
	state := sess.Store().State()
	require.Error(t, state.TurnError)
	assert.ErrorIs(t, state.TurnError, apiclient.ErrNetworkFailure)
	assert.False(t, state.AIResponding)

	require.NoError(t, sess.Retry(ctx))
	assert.Equal(t, 1, sess.Store().State().RetryCount)
}

func TestMessages_Paging(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "u1")
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, model.ConversationCreate{UserID: "u1", VideoURL: testVideo, Title: "Recursion"})
	require.NoError(t, err)
	require.NotEmpty(t, conv.ID)
	assert.Equal(t, "Recursion", conv.Title)

	for i := 0; i < 51; i++ {
		_, err := c.SaveMessage(ctx, model.MessageCreate{
			ConversationID: conv.ID,
			UserID:         "u1",
			Content:        fmt.Sprintf("m%02d", i),
			MessageType:    "assistant",
		})
		require.NoError(t, err)
	}

	first, err := c.ListMessages(ctx, conv.ID, 1, 50)
	require.NoError(t, err)
	require.Len(t, first, 50)
	assert.Equal(t, "m01", first[0].Content)
	assert.Equal(t, "m50", first[49].Content)
	assert.Equal(t, conv.ID, first[0].ConversationID)

	second, err := c.ListMessages(ctx, conv.ID, 2, 50)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "m00", second[0].Content)

	sess := session.New(c, "u1", logger.Nop())
	defer sess.Close()
	require.NoError(t, sess.Use(ctx, &conv))
	require.Len(t, sess.Store().Messages(), 50)
	assert.True(t, sess.Store().State().HasNextPage)

	_, err = sess.LoadOlder(ctx)
	require.NoError(t, err)
	msgs := sess.Store().Messages()
	require.Len(t, msgs, 51)
	for i, m := range msgs {
		assert.Equal(t, fmt.Sprintf("m%02d", i), m.Text())
	}
	assert.Equal(t, 2, sess.Store().State().CurrentPage)

	_, err = c.ListMessages(ctx, conv.ID, 0, 50)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	_, err = c.ListMessages(ctx, conv.ID, 1, 101)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
}

func TestMessages_InvalidPayload(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "u1")

	_, err := c.SaveMessage(context.Background(), model.MessageCreate{ConversationID: "c", Content: "x", MessageType: "robot"})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = c.SaveMessage(context.Background(), model.MessageCreate{ConversationID: "missing", UserID: "u1", Content: "x", MessageType: "user"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestConversations_OtherUserForbidden(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.client(t, "u1").ListConversations(context.Background(), "u2")
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestQuery_UnknownConversation(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.client(t, "u1").SendQuery(context.Background(), model.QueryRequest{Query: "q", ConversationID: "missing"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestStudy_Endpoints(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "u1")
	ctx := context.Background()

	_, err := c.CreateQuiz(ctx)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	res := srv.processVideo(t, c, "u1")

	quiz, err := c.CreateQuiz(ctx)
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 5)
	for _, q := range quiz.Questions {
		assert.Contains(t, q.Options, q.CorrectOption)
	}

	mistakes := []model.WrongQuestion{{
		Question:      quiz.Questions[0].Question,
		CorrectOption: quiz.Questions[0].CorrectOption,
		Timestamp:     quiz.Questions[0].Timestamp,
	}}
	remedial, err := c.LearnFromMistakes(ctx, mistakes)
	require.NoError(t, err)
	assert.NotEmpty(t, remedial.Questions)

	doc, err := c.RevisionDoc(ctx, mistakes)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.MarkdownContent, "# Revision Document"))
	assert.Contains(t, doc.MarkdownContent, "## 1. Question: "+mistakes[0].Question)

	cards, err := c.Flashcards(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, cards.Cards)

	pdf, err := c.ImportantNotes(ctx, res.ConversationID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	_, err = c.ImportantNotes(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestFeedback(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t, "")

	resp, err := c.SubmitFeedback(context.Background(), model.FeedbackRequest{UserID: "u1", FeedbackText: "I prefer shorter answers"})
	require.NoError(t, err)
	assert.True(t, resp.Stored)

	resp, err = c.SubmitFeedback(context.Background(), model.FeedbackRequest{UserID: "u1", FeedbackText: "ok"})
	require.NoError(t, err)
	assert.False(t, resp.Stored)
}
