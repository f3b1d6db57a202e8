// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting of the service. Values come from the
// environment, optionally seeded from a .env file.
type Config struct {
	Port            string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogJSON         bool

	// BackendURL and BackendKey address the managed backend's REST API.
	// DatabaseURL, when set, makes the service call the database directly
	// instead.
	BackendURL   string
	BackendKey   string
	BackendTries uint
	BackendRetry time.Duration
	DatabaseURL  string
	JWTSecret    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL      string
	AMQPExchange string

	MeiliHost  string
	MeiliKey   string
	MeiliIndex string

	GenAIKey          string
	GenAIModel        string
	AssistantPerMin   int
	AssistantBurst    int
	AssistantCacheTTL time.Duration

	OTLPEndpoint string
	ServiceName  string
}

// Load reads the configuration. A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogJSON:         getBool("LOG_JSON", true),

		BackendURL:   getEnv("BACKEND_URL", "http://localhost:54321"),
		BackendKey:   getEnv("BACKEND_KEY", ""),
		BackendTries: uint(getInt("BACKEND_READ_TRIES", 3)),
		BackendRetry: getDuration("BACKEND_RETRY_INTERVAL", 200*time.Millisecond),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		JWTSecret:    getEnv("JWT_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "librarydesk.lending"),

		MeiliHost:  getEnv("MEILI_HOST", ""),
		MeiliKey:   getEnv("MEILI_API_KEY", ""),
		MeiliIndex: getEnv("MEILI_INDEX", "books"),

		GenAIKey:          getEnv("GENAI_API_KEY", ""),
		GenAIModel:        getEnv("GENAI_MODEL", "gemini-2.0-flash"),
		AssistantPerMin:   getInt("ASSISTANT_PER_MINUTE", 5),
		AssistantBurst:    getInt("ASSISTANT_BURST", 5),
		AssistantCacheTTL: getDuration("ASSISTANT_CACHE_TTL", 24*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "librarydesk"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" && cfg.BackendKey == "" {
		return nil, fmt.Errorf("BACKEND_KEY is required when DATABASE_URL is not set")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, ""))); err == nil {
		return b
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return d
	}
	return defaultValue
}
