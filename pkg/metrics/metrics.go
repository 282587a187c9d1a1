// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMRequestDuration tracks how long answer generation takes.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// VideoStreamsActive tracks NDJSON video processing responses in flight.
	VideoStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_streams_active",
			Help: "Number of video processing streams being written",
		},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks total messages stored.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages stored",
		},
		[]string{"role"},
	)

	// StreamLinesTotal tracks NDJSON lines read by the client, by outcome.
	StreamLinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_stream_lines_total",
			Help: "NDJSON progress lines read by the client",
		},
		[]string{"outcome"},
	)

	// ChatTurnsTotal tracks submitted chat turns by role and outcome.
	ChatTurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_chat_turns_total",
			Help: "Chat turns processed by the session controller",
		},
		[]string{"role", "outcome"},
	)

	// ChatTurnDuration tracks wall time of a chat turn.
	ChatTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_chat_turn_duration_seconds",
			Help:    "Chat turn duration including the backend round trip",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"role"},
	)

	// ChatRetriesTotal counts retries of failed turns.
	ChatRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "client_chat_retries_total",
			Help: "Retries of the last failed user turn",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLM records metrics for one completion call.
func RecordLLM(provider, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// RecordStreamLine records the outcome of one NDJSON line ("ok", "malformed", "error").
func RecordStreamLine(outcome string) {
	StreamLinesTotal.WithLabelValues(outcome).Inc()
}

// RecordTurn records the outcome and duration of one chat turn.
func RecordTurn(role, outcome string, duration float64) {
	ChatTurnsTotal.WithLabelValues(role, outcome).Inc()
	if outcome != "duplicate" {
		ChatTurnDuration.WithLabelValues(role).Observe(duration)
	}
}

// IncrementVideoStreams increments the active video stream count.
func IncrementVideoStreams() {
	VideoStreamsActive.Inc()
}

// DecrementVideoStreams decrements the active video stream count.
func DecrementVideoStreams() {
	VideoStreamsActive.Dec()
}
