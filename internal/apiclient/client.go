// Package apiclient is a thin client for the EdTube backend REST and NDJSON
// endpoints.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/edtube/platform/internal/ingest"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
	"github.com/edtube/platform/pkg/tracing"
)

// ErrNetworkFailure matches every transport failure and non-2xx response.
var ErrNetworkFailure = errors.New("network failure")

// NetworkError describes a failed request.
type NetworkError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is reports true for ErrNetworkFailure.
func (e *NetworkError) Is(target error) bool { return target == ErrNetworkFailure }

// TokenSource supplies the bearer token for authenticated calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token. The empty token sends no header.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// maxErrorBody bounds the response excerpt kept on a NetworkError.
const maxErrorBody = 512

// Client talks to one backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        *logger.Logger
	validate   *validator.Validate
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets the bearer token source.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     StaticToken(""),
		validate:   validator.New(),
		tracer:     tracing.Tracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log).Named("apiclient")
	return c
}

// ProcessVideo starts processing url and consumes the progress stream,
// forwarding each event to onEvent.
func (c *Client) ProcessVideo(ctx context.Context, videoURL, userID string, onEvent func(model.StreamEvent)) (ingest.Result, error) {
	ctx, span := c.tracer.Start(ctx, "apiclient ProcessVideo", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	resp, err := c.do(ctx, http.MethodPost, "/api/video", nil, model.VideoRequest{URL: videoURL, UserID: userID}, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ingest.Result{}, err
	}
	defer resp.Body.Close()

	res, err := ingest.Read(ctx, resp.Body, onEvent, c.log)
	span.SetAttributes(
		attribute.String("edtube.conversation_id", res.ConversationID),
		attribute.Int("edtube.stream_events", res.Events),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// SendQuery asks a question in a conversation.
func (c *Client) SendQuery(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error) {
	var out model.QueryResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/query", nil, req, true, &out)
	return out, err
}

// ListConversations returns the conversations of userID. Entries without
// an identifier are skipped.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	var raw []model.Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(userID), nil, nil, true, &raw); err != nil {
		return nil, err
	}

	out := raw[:0]
	for _, conv := range raw {
		if err := c.validate.Struct(conv); err != nil {
			c.log.Warn("skipping invalid conversation", zap.String("conversation_id", conv.ID), zap.Error(err))
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

// ListMessages returns one page of stored messages in ascending order.
// Records are not filtered here; the store drops those without an id.
func (c *Client) ListMessages(ctx context.Context, conversationID string, page, limit int) ([]model.MessageRecord, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out []model.MessageRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(conversationID), q, nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation creates a conversation.
func (c *Client) CreateConversation(ctx context.Context, req model.ConversationCreate) (model.Conversation, error) {
	if err := c.validate.Struct(req); err != nil {
		return model.Conversation{}, fmt.Errorf("invalid conversation: %w", err)
	}
	var out model.Conversation
	err := c.doJSON(ctx, http.MethodPost, "/api/conversations", nil, req, true, &out)
	return out, err
}

// SaveMessage persists a message.
func (c *Client) SaveMessage(ctx context.Context, msg model.MessageCreate) (model.MessageRecord, error) {
	var out model.MessageRecord
	err := c.doJSON(ctx, http.MethodPost, "/messages", nil, msg, true, &out)
	return out, err
}

// SubmitFeedback sends free-form feedback.
func (c *Client) SubmitFeedback(ctx context.Context, req model.FeedbackRequest) (model.FeedbackResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return model.FeedbackResponse{}, fmt.Errorf("invalid feedback: %w", err)
	}
	var out model.FeedbackResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/feedback", nil, req, false, &out)
	return out, err
}

// CreateQuiz generates a quiz for the loaded video.
func (c *Client) CreateQuiz(ctx context.Context) (model.QuizResponse, error) {
	var out model.QuizResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/create_quiz", nil, struct{}{}, true, &out)
	return out, err
}

// LearnFromMistakes generates a remedial quiz from wrong answers.
func (c *Client) LearnFromMistakes(ctx context.Context, mistakes []model.WrongQuestion) (model.QuizResponse, error) {
	var out model.QuizResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/learn_from_mistakes", nil, model.MistakesRequest{Mistakes: mistakes}, true, &out)
	return out, err
}

// RevisionDoc generates a markdown revision document from wrong answers.
func (c *Client) RevisionDoc(ctx context.Context, mistakes []model.WrongQuestion) (model.RevisionResponse, error) {
	var out model.RevisionResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/revision_doc", nil, model.MistakesRequest{Mistakes: mistakes}, true, &out)
	return out, err
}

// Flashcards fetches the flashcard deck.
func (c *Client) Flashcards(ctx context.Context) (model.FlashcardsResponse, error) {
	var out model.FlashcardsResponse
	err := c.doJSON(ctx, http.MethodGet, "/flashcards/", nil, nil, true, &out)
	return out, err
}

// ImportantNotes downloads the important notes PDF of a conversation.
func (c *Client) ImportantNotes(ctx context.Context, conversationID string) ([]byte, error) {
	q := url.Values{}
	q.Set("conversation_id", conversationID)

	resp, err := c.do(ctx, http.MethodGet, "/api/important_notes", q, nil, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: http.MethodGet, Path: "/api/important_notes", Err: err}
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, auth bool, out any) error {
	resp, err := c.do(ctx, method, path, query, body, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// do sends a request and returns the response when the status is 2xx.
// The caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, auth bool) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, "apiclient "+method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	fail := func(ne *NetworkError) (*http.Response, error) {
		span.RecordError(ne)
		span.SetStatus(codes.Error, ne.Error())
		return nil, ne
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(&NetworkError{Method: method, Path: path, Err: err})
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.log.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return fail(&NetworkError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(excerpt)),
		})
	}
	return resp, nil
}
