// Package main is the entry point for the development API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/edtube/platform/internal/config"
	"github.com/edtube/platform/internal/handler"
	"github.com/edtube/platform/internal/llm"
	natsclient "github.com/edtube/platform/internal/nats"
	"github.com/edtube/platform/internal/service"
	"github.com/edtube/platform/pkg/logger"
	"github.com/edtube/platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "edtube-api", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Message storage: JetStream when configured, memory otherwise
	var (
		natsClient *natsclient.Client
		repo       service.MessageRepository = service.NewMemoryRepository()
	)
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		store := natsclient.NewMessageStore(natsClient, cfg.NATSStream)
		if err := store.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		repo = store
		log.Info("storing messages in JetStream", zap.String("stream", cfg.NATSStream))
	} else {
		log.Info("storing messages in memory")
	}

	llmClient := llm.Instrument(newLLMClient(cfg, log))

	// Initialize services
	conversationSvc := service.NewConversationService(log)
	messageSvc := service.NewMessageService(repo, conversationSvc, log)
	feedbackSvc := service.NewFeedbackService(log)

	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, handler.Services{
		Conversations: conversationSvc,
		Messages:      messageSvc,
		Query:         service.NewQueryService(conversationSvc, messageSvc, feedbackSvc, llmClient, log),
		Video:         service.NewVideoService(conversationSvc, llmClient, cfg.VideoStepDelay, log),
		Study:         service.NewStudyService(conversationSvc, llmClient, log),
		Feedback:      feedbackSvc,
	}, natsClient, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// newLLMClient picks the configured provider, falls back to the other one
// when its key is missing, and answers offline when neither is set.
func newLLMClient(cfg *config.Config, log *logger.Logger) llm.Client {
	type candidate struct {
		provider llm.Provider
		key      string
		model    string
	}
	candidates := []candidate{
		{llm.ProviderAnthropic, cfg.AnthropicAPIKey, cfg.AnthropicModel},
		{llm.ProviderOpenAI, cfg.OpenAIAPIKey, cfg.OpenAIModel},
	}
	if llm.Provider(cfg.DefaultLLM) == llm.ProviderOpenAI {
		candidates[0], candidates[1] = candidates[1], candidates[0]
	}

	for _, c := range candidates {
		if c.key == "" {
			continue
		}
		client, err := llm.NewClient(c.provider, c.key, c.model)
		if err != nil {
			log.Warn("failed to create LLM client", zap.String("provider", string(c.provider)), zap.Error(err))
			continue
		}
		log.Info("using LLM provider", zap.String("provider", client.Name()))
		return client
	}

	log.Warn("no LLM API key configured, answering offline")
	return llm.NewOfflineClient()
}
