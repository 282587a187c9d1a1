package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// OfflineClient answers without calling a provider. It is the default when
// no API key is configured.
type OfflineClient struct{}

// NewOfflineClient creates an offline client.
func NewOfflineClient() *OfflineClient {
	return &OfflineClient{}
}

// Name returns the provider name.
func (c *OfflineClient) Name() string {
	return string(ProviderOffline)
}

// Complete returns a canned answer built from the last user message.
func (c *OfflineClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, ErrEmptyConversation
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	question := strings.TrimSpace(req.Messages[len(req.Messages)-1].Content)
	answer := fmt.Sprintf("The video covers %q in the section around the highlighted timestamp. "+
		"Review that part and try explaining it in your own words.", question)

	return &CompletionResponse{
		Content:    answer,
		Model:      "offline",
		TokensIn:   len(strings.Fields(question)),
		TokensOut:  len(strings.Fields(answer)),
		StopReason: "end_turn",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
