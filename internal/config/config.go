package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// OpenAI-compatible LLM endpoint
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	LLMTimeout    time.Duration

	// Distributor CRM backend
	CRMBaseURL string
	CRMToken   string
	CRMTimeout time.Duration

	// Session lifecycle
	SessionTTL             time.Duration
	SessionCleanupInterval time.Duration
	MessageWindowSize      int

	// Catalog cache freshness
	CatalogTTL time.Duration

	// Entity resolution thresholds
	MatchThreshold      int
	SuggestionThreshold int
	MaxSuggestions      int

	// HTTP surface
	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		LLMTimeout:    getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),

		CRMBaseURL: getEnv("CRM_BASE_URL", ""),
		CRMToken:   getEnv("CRM_API_TOKEN", ""),
		CRMTimeout: getEnvAsDuration("CRM_TIMEOUT", 20*time.Second),

		SessionTTL:             getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		SessionCleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 30*time.Minute),
		MessageWindowSize:      getEnvAsInt("MESSAGE_WINDOW_SIZE", 10),

		CatalogTTL: getEnvAsDuration("CATALOG_TTL", 15*time.Minute),

		MatchThreshold:      getEnvAsInt("MATCH_THRESHOLD", 60),
		SuggestionThreshold: getEnvAsInt("SUGGESTION_THRESHOLD", 50),
		MaxSuggestions:      getEnvAsInt("MAX_SUGGESTIONS", 5),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: splitAndTrim(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitAndTrim(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
