package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edtube/platform/internal/middleware"
	natsclient "github.com/edtube/platform/internal/nats"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/pkg/logger"
)

// Services are the backends the router serves.
type Services struct {
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Query         *service.QueryService
	Video         *service.VideoService
	Study         *service.StudyService
	Feedback      *service.FeedbackService
}

// RouterConfig configures the middleware stack.
type RouterConfig struct {
	JWTSecret         string
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the HTTP handler of the development backend. natsClient
// may be nil when messages are kept in memory.
func NewRouter(cfg RouterConfig, svc Services, natsClient *natsclient.Client, log *logger.Logger) http.Handler {
	log = logger.OrNop(log)

	healthHandler := NewHealthHandler(natsClient)
	conversationHandler := NewConversationHandler(svc.Conversations, log)
	messageHandler := NewMessageHandler(svc.Messages, log)
	queryHandler := NewQueryHandler(svc.Query, log)
	videoHandler := NewVideoHandler(svc.Video, log)
	studyHandler := NewStudyHandler(svc.Study, log)
	feedbackHandler := NewFeedbackHandler(svc.Feedback)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Open routes; the caller is attached when a token is sent
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/api/video", videoHandler.Process)
		r.Post("/api/feedback", feedbackHandler.Submit)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/api/query", queryHandler.Query)

		r.Post("/api/conversations", conversationHandler.Create)
		r.Get("/api/conversations/{user_id}", conversationHandler.ListByUser)

		r.Get("/api/messages/{id}", messageHandler.List)
		r.Post("/messages", messageHandler.Create)

		r.Post("/api/create_quiz", studyHandler.CreateQuiz)
		r.Post("/api/learn_from_mistakes", studyHandler.LearnFromMistakes)
		r.Post("/api/revision_doc", studyHandler.RevisionDoc)
		r.Get("/flashcards/", studyHandler.Flashcards)
		r.Get("/api/important_notes", studyHandler.ImportantNotes)
	})

	return r
}
