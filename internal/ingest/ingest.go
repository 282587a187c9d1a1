// Package ingest reads the newline-delimited JSON progress stream returned
// by the video processing endpoint.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/model"
	"github.com/edtube/platform/pkg/logger"
	"github.com/edtube/platform/pkg/metrics"
)

// StreamError is returned when the server reports a processing failure
// inside the stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	if e.Message == "" {
		return "stream error"
	}
	return "stream error: " + e.Message
}

// Result holds what was learned from a completed stream. Both fields may
// be empty when the server never announced the conversation.
type Result struct {
	ConversationID     string
	ConversationStatus string
	Completed          bool
	Events             int
}

// Read consumes r until EOF, forwarding every parsed event to onEvent.
// Malformed and blank lines are skipped. The first conversation_info event
// is latched into the result. An error event stops ingestion and is
// returned as a *StreamError.
func Read(ctx context.Context, r io.Reader, onEvent func(model.StreamEvent), log *logger.Logger) (Result, error) {
	log = logger.OrNop(log).Named("ingest")
	br := bufio.NewReader(r)

	var (
		res     Result
		latched bool
		lineNo  int
	)

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		line, readErr := br.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			return res, fmt.Errorf("read stream: %w", readErr)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			lineNo++
			var ev model.StreamEvent
			if err := json.Unmarshal(trimmed, &ev); err != nil {
				metrics.RecordStreamLine("malformed")
				log.Warn("skipping malformed stream line",
					zap.Int("line", lineNo),
					zap.ByteString("raw", excerpt(trimmed)),
					zap.Error(err),
				)
			} else {
				res.Events++
				if ev.IsError() {
					metrics.RecordStreamLine("error")
					if onEvent != nil {
						onEvent(ev)
					}
					return res, &StreamError{Message: ev.Message}
				}

				metrics.RecordStreamLine("ok")
				if ev.IsConversationInfo() && !latched {
					latched = true
					res.ConversationID = ev.ConversationID
					res.ConversationStatus = ev.Status
					log.Debug("conversation announced",
						zap.String("conversation_id", ev.ConversationID),
						zap.String("status", ev.Status),
					)
				}
				if ev.Status == model.StreamStatusCompleted {
					res.Completed = true
				}
				if onEvent != nil {
					onEvent(ev)
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			return res, nil
		}
	}
}

func excerpt(b []byte) []byte {
	const limit = 200
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
