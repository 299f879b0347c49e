package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bekzodov/meddist-ai-assistant/internal/conversation"
	"github.com/bekzodov/meddist-ai-assistant/internal/http/handlers"
	httpmiddleware "github.com/bekzodov/meddist-ai-assistant/internal/http/middleware"
	"github.com/bekzodov/meddist-ai-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	AdminSessions       *handlers.AdminSessionsHandler
	MetricsHandler      http.Handler
	AdminJWTSecret      string
	CORSAllowedOrigins  []string
	RateLimitPerSecond  float64
	RateLimitBurst      int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Public assistant surface.
	r.Group(func(public chi.Router) {
		if cfg.RateLimitPerSecond > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		}
		public.Post("/assistant/message", cfg.ConversationHandler.Message)
	})

	// Operator surface.
	if cfg.AdminSessions != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminJWTSecret))
			admin.Get("/sessions", cfg.AdminSessions.List)
			admin.Post("/sessions/cleanup", cfg.AdminSessions.Cleanup)
			admin.Delete("/sessions/{sessionID}", cfg.AdminSessions.Delete)
		})
	}

	return r
}
