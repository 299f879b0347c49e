package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	openai "github.com/sashabaranov/go-openai"

	"github.com/bekzodov/meddist-ai-assistant/internal/api/router"
	"github.com/bekzodov/meddist-ai-assistant/internal/catalog"
	appconfig "github.com/bekzodov/meddist-ai-assistant/internal/config"
	"github.com/bekzodov/meddist-ai-assistant/internal/conversation"
	"github.com/bekzodov/meddist-ai-assistant/internal/crm"
	"github.com/bekzodov/meddist-ai-assistant/internal/http/handlers"
	"github.com/bekzodov/meddist-ai-assistant/internal/observability/metrics"
	"github.com/bekzodov/meddist-ai-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting meddist-ai-assistant API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	if cfg.OpenAIAPIKey == "" {
		logger.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}
	if cfg.CRMBaseURL == "" {
		logger.Error("CRM_BASE_URL is required")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	assistantMetrics := metrics.NewAssistantMetrics(registry)

	crmClient := crm.NewClient(cfg.CRMBaseURL, cfg.CRMToken, cfg.CRMTimeout, logger.Component("crm"))
	catalogCache := catalog.NewCache(crmClient, cfg.CatalogTTL, logger.Component("catalog"), assistantMetrics)

	store := conversation.NewContextStore(logger.Component("sessions"), assistantMetrics)
	store.StartJanitor(cfg.SessionCleanupInterval, cfg.SessionTTL)
	defer store.Stop()

	operations := conversation.NewOperations(crmClient, catalogCache, store, logger.Component("operations"), conversation.OperationsConfig{
		MatchThreshold:      cfg.MatchThreshold,
		SuggestionThreshold: cfg.SuggestionThreshold,
		MaxSuggestions:      cfg.MaxSuggestions,
	})

	llmConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		llmConfig.BaseURL = cfg.OpenAIBaseURL
	}
	llmClient := openai.NewClientWithConfig(llmConfig)

	orchestrator := conversation.NewOrchestrator(
		llmClient,
		cfg.OpenAIModel,
		operations,
		store,
		logger.Component("orchestrator"),
		assistantMetrics,
		conversation.WithWindowSize(cfg.MessageWindowSize),
		conversation.WithLLMTimeout(cfg.LLMTimeout),
	)

	conversationHandler := conversation.NewHandler(orchestrator, logger)
	adminSessions := handlers.NewAdminSessionsHandler(store, cfg.SessionTTL, logger)

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		AdminSessions:       adminSessions,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminJWTSecret:      cfg.AdminJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerSecond:  cfg.RateLimitPerSecond,
		RateLimitBurst:      cfg.RateLimitBurst,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
