package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/llm"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
)

// historyTurns is how many stored messages are given to the model as context.
const historyTurns = 10

// QueryService answers questions about a conversation's video.
type QueryService struct {
	conversations *ConversationService
	messages      *MessageService
	feedback      *FeedbackService
	llm           llm.Client
	logger        *logger.Logger
}

// NewQueryService creates a new query service.
func NewQueryService(conversations *ConversationService, messages *MessageService, feedback *FeedbackService, client llm.Client, log *logger.Logger) *QueryService {
	if client == nil {
		client = llm.NewOfflineClient()
	}
	return &QueryService{
		conversations: conversations,
		messages:      messages,
		feedback:      feedback,
		llm:           client,
		logger:        logger.OrNop(log).Named("query"),
	}
}

// Answer stores the question, generates an answer and stores it with the
// video position it refers to.
func (s *QueryService) Answer(ctx context.Context, req *model.QueryRequest) (*model.QueryResponse, error) {
	conv, err := s.conversations.Get(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	userID := req.UserID
	if userID == "" {
		userID = conv.UserID
	}

	history, err := s.messages.Recent(ctx, conv.ID, historyTurns)
	if err != nil {
		return nil, err
	}

	if _, err := s.messages.Create(ctx, &model.MessageCreate{
		ConversationID: conv.ID,
		UserID:         userID,
		Content:        req.Query,
		MessageType:    string(model.RoleUser),
	}); err != nil {
		return nil, err
	}

	resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
		System:   s.systemPrompt(conv, userID, history),
		Messages: []llm.ChatMessage{{Role: string(model.RoleUser), Content: req.Query}},
	})
	if err != nil {
		s.logger.Error("answer generation failed",
			zap.String("conversation_id", conv.ID),
			zap.String("provider", s.llm.Name()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to process query: %w", err)
	}

	position := VideoPosition(req.Query)
	if _, err := s.messages.Create(ctx, &model.MessageCreate{
		ConversationID: conv.ID,
		UserID:         userID,
		Content:        resp.Content,
		MessageType:    string(model.RoleAssistant),
		Metadata:       map[string]any{"timestamp": position},
	}); err != nil {
		return nil, err
	}

	return &model.QueryResponse{Answer: resp.Content, Timestamp: position}, nil
}

func (s *QueryService) systemPrompt(conv *model.Conversation, userID string, history []model.MessageRecord) string {
	var b strings.Builder
	b.WriteString("You are a study assistant answering questions about one video")
	if conv.VideoURL != "" {
		fmt.Fprintf(&b, " (%s)", conv.VideoURL)
	}
	b.WriteString(". Answer concisely and point to the part of the video that covers the answer.\n")

	if s.feedback != nil {
		if prefs := s.feedback.Memories(userID); len(prefs) > 0 {
			b.WriteString("\nKnown user preferences:\n")
			for _, p := range prefs {
				fmt.Fprintf(&b, "- %s\n", p)
			}
		}
	}

	if len(history) > 0 {
		b.WriteString("\nEarlier in this conversation:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.MessageType, m.Content)
		}
	}
	return b.String()
}

// VideoPosition maps text to a stable HH:MM:SS position within the first
// hour of the video.
func VideoPosition(text string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(text))))
	return formatPosition(int(h.Sum32() % 3600))
}
