package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL      string
	DatabaseDriver   string
	SQLitePath       string
	DatabaseMaxConns int
	LocalMode        bool

	// Redis
	RedisURL string

	// RabbitMQ
	RabbitMQURL string
	EventsQueue string

	// HTTP
	HTTPAddr string

	// Auth
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// Presence
	PresenceStaleAfter    time.Duration
	PresenceSweepInterval time.Duration

	// Websocket
	WSReadLimit    int64
	WSSendBuffer   int
	WSPingInterval time.Duration
	WSRateLimit    float64
	WSRateBurst    int

	// Record store resilience
	StoreBreakerFailures int
	StoreBreakerTimeout  time.Duration
	UserCacheSize        int
	UserCacheTTL         time.Duration

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	// Worker
	WorkerHealthAddr string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		DatabaseDriver:   getEnv("DATABASE_DRIVER", ""),
		SQLitePath:       getEnv("SQLITE_PATH", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 10),

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),
		EventsQueue: getEnv("EVENTS_QUEUE", ""),

		HTTPAddr: getEnv("HTTP_ADDR", "0.0.0.0:8080"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "taskboard"),
		JWTTTL:    getDurationEnv("JWT_TTL", 24*time.Hour),

		PresenceStaleAfter:    getDurationEnv("PRESENCE_STALE_AFTER", 5*time.Minute),
		PresenceSweepInterval: getDurationEnv("PRESENCE_SWEEP_INTERVAL", 30*time.Second),

		WSReadLimit:    int64(getIntEnv("WS_READ_LIMIT", 64*1024)),
		WSSendBuffer:   getIntEnv("WS_SEND_BUFFER", 256),
		WSPingInterval: getDurationEnv("WS_PING_INTERVAL", 30*time.Second),
		WSRateLimit:    getFloatEnv("WS_RATE_LIMIT", 20),
		WSRateBurst:    getIntEnv("WS_RATE_BURST", 40),

		StoreBreakerFailures: getIntEnv("STORE_BREAKER_FAILURES", 5),
		StoreBreakerTimeout:  getDurationEnv("STORE_BREAKER_TIMEOUT", 30*time.Second),
		UserCacheSize:        getIntEnv("USER_CACHE_SIZE", 1024),
		UserCacheTTL:         getDurationEnv("USER_CACHE_TTL", 5*time.Minute),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 7),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
	}

	// Without a server URL the board runs on a local SQLite file.
	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "sqlite"
	}
	cfg.LocalMode = cfg.DatabaseDriver == "sqlite" || cfg.DatabaseDriver == "sqlite3"

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if cfg.IsProduction() {
			cfg.LogFormat = "json"
		}
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsLocalMode reports whether the record store is a local SQLite file.
func (c *Config) IsLocalMode() bool {
	return c.LocalMode
}

// OutboxRetention is the retention window for published outbox rows.
func (c *Config) OutboxRetention() time.Duration {
	return time.Duration(c.OutboxRetentionDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
