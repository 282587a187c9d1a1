// Package llm provides the answer-generation clients used by the
// development backend.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/edtube/platform/pkg/metrics"
)

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderOffline   Provider = "offline"
)

const defaultMaxTokens = 1024

// ErrEmptyConversation is returned when a request has no messages.
var ErrEmptyConversation = errors.New("llm: request has no messages")

// NewClient creates a new LLM client based on provider. An empty key for
// a remote provider is an error.
func NewClient(provider Provider, apiKey, model string) (Client, error) {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey, model)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, model)
	default:
		return NewOfflineClient(), nil
	}
}

// Instrument wraps c so every call is recorded in the LLM metrics.
func Instrument(c Client) Client {
	return &instrumented{next: c}
}

type instrumented struct {
	next Client
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	resp, err := i.next.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordLLM(i.next.Name(), "error", elapsed, 0, 0)
		return nil, err
	}
	metrics.RecordLLM(i.next.Name(), "ok", elapsed, resp.TokensIn, resp.TokensOut)
	return resp, nil
}

func maxTokensOr(n int) int {
	if n == 0 {
		return defaultMaxTokens
	}
	return n
}
