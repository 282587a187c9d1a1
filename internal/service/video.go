package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/llm"
	"github.com/edtube/platform/internal/middleware"
	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
)

const (
	anonymousUser = "anonymous"

	// segmentsPerVideo and batchSize shape the simulated transcript.
	segmentsPerVideo = 12
	batchSize        = 4
)

// EmitFunc delivers one stream event to the caller. A non-nil error
// aborts processing.
type EmitFunc func(model.StreamEvent) error

// VideoService processes videos into conversations and reports progress
// as stream events.
type VideoService struct {
	conversations *ConversationService
	llm           llm.Client
	stepDelay     time.Duration
	logger        *logger.Logger
}

// NewVideoService creates a new video service. stepDelay is slept between
// progress stages.
func NewVideoService(conversations *ConversationService, client llm.Client, stepDelay time.Duration, log *logger.Logger) *VideoService {
	if client == nil {
		client = llm.NewOfflineClient()
	}
	return &VideoService{
		conversations: conversations,
		llm:           client,
		stepDelay:     stepDelay,
		logger:        logger.OrNop(log).Named("video"),
	}
}

// Process resolves the conversation for (userID, videoURL), emits its
// conversation_info event and then the processing stages. Validation and
// extraction failures are reported as error events, not returned.
func (s *VideoService) Process(ctx context.Context, userID, videoURL string, emit EmitFunc) error {
	if userID == "" {
		userID = anonymousUser
	}
	videoURL = strings.TrimSpace(videoURL)

	if videoURL == "" {
		return emit(errorEvent("Invalid URL: URL must be a non-empty string"))
	}
	if !middleware.IsYouTubeURL(videoURL) {
		return emit(errorEvent("Invalid URL: Must be a YouTube URL"))
	}

	conv, status, err := s.resolve(ctx, userID, videoURL)
	if err != nil {
		return err
	}
	info := model.StreamEvent{
		Type:           model.EventTypeConversationInfo,
		ConversationID: conv.ID,
		Status:         status,
		Message:        "Created new conversation, processing video",
	}
	if status == model.StreamStatusExistingConversation {
		info.Message = "Using existing conversation, reprocessing video for fresh data"
	}
	if err := emit(info); err != nil {
		return err
	}

	log := s.logger.With(zap.String("conversation_id", conv.ID), zap.String("video_url", videoURL))

	if err := s.step(ctx, emit, 10, "Loading transcript..."); err != nil {
		return err
	}
	segments := transcript(model.VideoID(videoURL))

	if err := s.step(ctx, emit, 20, "Splitting documents..."); err != nil {
		return err
	}

	numBatches := (len(segments) + batchSize - 1) / batchSize
	seen := make(map[string]struct{})
	var concepts []string
	for i := 0; i < numBatches; i++ {
		end := min((i+1)*batchSize, len(segments))
		for _, c := range s.extractConcepts(ctx, segments[i*batchSize:end]) {
			key := strings.ToLower(c)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			concepts = append(concepts, c)
		}

		progress := 20 + int(float64(i+1)/float64(numBatches)*70)
		if err := s.step(ctx, emit, progress, fmt.Sprintf("Processing batch %d/%d", i+1, numBatches)); err != nil {
			return err
		}
	}

	if err := s.step(ctx, emit, 95, "Indexing vector store..."); err != nil {
		return err
	}
	if err := s.conversations.SetConcepts(ctx, conv.ID, concepts); err != nil {
		log.Error("failed to store concepts", zap.Error(err))
		return emit(errorEvent(fmt.Sprintf("Failed to add documents to vector store: %v", err)))
	}

	log.Info("video processed", zap.Int("concepts", len(concepts)), zap.Int("batches", numBatches))
	return emit(model.StreamEvent{
		Status:   model.StreamStatusCompleted,
		Message:  "Video processed successfully",
		Progress: 100,
	})
}

func (s *VideoService) resolve(ctx context.Context, userID, videoURL string) (*model.Conversation, string, error) {
	conv, err := s.conversations.FindByVideoURL(ctx, userID, videoURL)
	if err == nil {
		return conv, model.StreamStatusExistingConversation, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}
	conv, err = s.conversations.Create(ctx, &model.ConversationCreate{UserID: userID, VideoURL: videoURL})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start video processing: %w", err)
	}
	return conv, model.StreamStatusNewConversation, nil
}

func (s *VideoService) step(ctx context.Context, emit EmitFunc, progress int, message string) error {
	if s.stepDelay > 0 {
		t := time.NewTimer(s.stepDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	return emit(model.StreamEvent{
		Status:   model.StreamStatusProgress,
		Message:  message,
		Progress: float64(progress),
	})
}

// extractConcepts asks the model for the topics of a batch. Replies that
// are not a JSON array fall back to the segment titles.
func (s *VideoService) extractConcepts(ctx context.Context, batch []segment) []string {
	var text strings.Builder
	for _, seg := range batch {
		text.WriteString(seg.Text)
		text.WriteString("\n\n")
	}

	resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
		System: "Extract the main concepts or topics discussed in the following text. " +
			"Return a JSON array of concept strings (max 5-10 words each). Return ONLY the JSON array, no other text.",
		Messages: []llm.ChatMessage{{Role: string(model.RoleUser), Content: text.String()}},
	})
	if err == nil {
		var concepts []string
		if jerr := json.Unmarshal([]byte(stripFences(resp.Content)), &concepts); jerr == nil && len(concepts) > 0 {
			return concepts
		}
	} else {
		s.logger.Warn("concept extraction failed", zap.Error(err))
	}

	titles := make([]string, 0, len(batch))
	for _, seg := range batch {
		titles = append(titles, seg.Title)
	}
	return titles
}

type segment struct {
	Title string
	Text  string
}

var segmentTopics = []string{
	"Introduction and goals",
	"Core definitions",
	"Historical context",
	"First worked example",
	"Common misconceptions",
	"Key formula",
	"Second worked example",
	"Edge cases",
	"Real world applications",
	"Comparison with alternatives",
	"Practice problem walkthrough",
	"Summary and next steps",
}

// transcript produces the segments of a video. The development backend
// has no transcript source, so segments are synthesized from the video ID.
func transcript(videoID string) []segment {
	segs := make([]segment, segmentsPerVideo)
	for i := range segs {
		title := segmentTopics[i%len(segmentTopics)]
		segs[i] = segment{
			Title: title,
			Text:  fmt.Sprintf("[%s] Video %s, part %d: %s.", formatPosition(i*300), videoID, i+1, title),
		}
	}
	return segs
}

func formatPosition(secs int) string {
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

func errorEvent(message string) model.StreamEvent {
	return model.StreamEvent{Status: model.StreamStatusError, Message: message}
}

// stripFences removes a markdown code fence around a model reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
