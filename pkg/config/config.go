package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Redis configuration
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Chat subsystem configuration
	Chat struct {
		MaxMessageLength int
		HistoryPageSize  int
		CacheTTL         time.Duration
	}

	// Client-side session defaults (used by the bundled chat client)
	Client struct {
		ReconnectAttempts int
		ReconnectDelay    time.Duration
		JoinRetryDelay    time.Duration
	}

	// Observability configuration
	Observability struct {
		MetricsPort string
		Tracing     bool
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Uses singleton pattern to ensure only one instance exists.
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		instance.Server.Port = getEnvString("PORT", "8080")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)

		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "alertnet")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		instance.Redis.Addr = getEnvString("REDIS_ADDR", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 10))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 20)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20) // 1MB

		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		instance.Chat.MaxMessageLength = getEnvInt("CHAT_MAX_MESSAGE_LENGTH", 4096)
		instance.Chat.HistoryPageSize = getEnvInt("CHAT_HISTORY_PAGE_SIZE", 50)
		instance.Chat.CacheTTL = getEnvDuration("CHAT_CACHE_TTL", 5*time.Minute)

		instance.Client.ReconnectAttempts = getEnvInt("CLIENT_RECONNECT_ATTEMPTS", 5)
		instance.Client.ReconnectDelay = getEnvDuration("CLIENT_RECONNECT_DELAY", 2*time.Second)
		instance.Client.JoinRetryDelay = getEnvDuration("CLIENT_JOIN_RETRY_DELAY", time.Second)

		instance.Observability.MetricsPort = getEnvString("METRICS_PORT", "2112")
		instance.Observability.Tracing = getEnvBool("TRACING_ENABLED", false)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
