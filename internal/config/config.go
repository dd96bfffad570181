package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the gate service
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	// RedisURL selects the distributed store backends; empty keeps all
	// state in process memory.
	RedisURL string

	// FailMode decides what happens when a remote store is unreachable:
	// "open" lets the request through, "closed" blocks it.
	FailMode string

	RateCapacity      int
	RateRefillPerSec  float64
	RateIdleTTL       time.Duration
	RateSweepInterval time.Duration
	ReadCost          int
	WriteCost         int

	BlacklistSeed []string
	SessionCookie string
	AuditBuffer   int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "production"),

		RedisURL: getEnv("REDIS_URL", ""),
		FailMode: getEnv("FAIL_MODE", "open"),

		RateCapacity:      getIntEnv("RATE_CAPACITY", 100),
		RateRefillPerSec:  getFloatEnv("RATE_REFILL_RATE", 5),
		RateIdleTTL:       getDurationEnv("RATE_IDLE_TTL", time.Hour),
		RateSweepInterval: getDurationEnv("RATE_SWEEP_INTERVAL", 15*time.Minute),
		ReadCost:          getIntEnv("RATE_READ_COST", 1),
		WriteCost:         getIntEnv("RATE_WRITE_COST", 5),

		BlacklistSeed: parseList(getEnv("BLACKLIST_SEED", "")),
		SessionCookie: getEnv("SESSION_COOKIE", "gs_session"),
		AuditBuffer:   getIntEnv("AUDIT_BUFFER", 1024),
	}, nil
}

// FailClosed reports whether unreachable stores should block requests.
func (c *Config) FailClosed() bool {
	return strings.EqualFold(c.FailMode, "closed")
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getFloatEnv gets a float environment variable with a fallback value
func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// parseList parses a comma-separated value into a slice
func parseList(value string) []string {
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
