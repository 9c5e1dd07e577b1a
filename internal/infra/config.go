package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string
	StoragePath string
	GeoIPDBPath string

	CORSAllowedOrigins []string
	RateLimitPerMin    int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	PiAPIKey     string
	PiAPIBaseURL string

	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateModelVersion string

	MinimaxAPIKey  string
	MinimaxBaseURL string

	ProviderCallTimeout time.Duration

	PollInterval         time.Duration
	PollConcurrency      int
	PollBudget           time.Duration
	PollTransportRetries int
	PollBatchSize        int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		StoragePath: os.Getenv("STORAGE_PATH"),
		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		PiAPIKey:     os.Getenv("PIAPI_API_KEY"),
		PiAPIBaseURL: getEnv("PIAPI_BASE_URL", "https://api.piapi.ai/api/v1"),

		ReplicateAPIToken:     os.Getenv("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:      getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModelVersion: os.Getenv("REPLICATE_MODEL_VERSION"),

		MinimaxAPIKey:  os.Getenv("MINIMAX_API_KEY"),
		MinimaxBaseURL: getEnv("MINIMAX_BASE_URL", "https://api.minimax.io/v1"),

		ProviderCallTimeout: time.Second * time.Duration(getEnvInt("PROVIDER_CALL_TIMEOUT_SECONDS", 20)),

		PollInterval:         time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		PollConcurrency:      getEnvInt("POLL_CONCURRENCY", 8),
		PollBudget:           time.Minute * time.Duration(getEnvInt("POLL_BUDGET_MINUTES", 10)),
		PollTransportRetries: getEnvInt("POLL_TRANSPORT_RETRIES", 3),
		PollBatchSize:        getEnvInt("POLL_BATCH_SIZE", 100),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
