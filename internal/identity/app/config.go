package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer     string // Token issuer claim (default: identity-service)
	Audience   string // Token audience claim (default: identity-api)
	SigningKey string // Required: HS256 signing key, at least 32 bytes

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 24h)

	DatabaseFile         string        // Path to SQLite database file (default: ./identity.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-token sweep interval (default: 1h)
}

// ErrMissingSigningKey means IDENTITY_SIGNING_KEY is unset or too short.
// There is no generated fallback: a silently random key would invalidate
// every token on restart.
var ErrMissingSigningKey = errors.New("app: IDENTITY_SIGNING_KEY must be set to at least 32 bytes")

func LoadConfig() (Config, error) {
	cfg := Config{
		Issuer:               getEnvOrDefault("IDENTITY_ISSUER", "identity-service"),
		Audience:             getEnvOrDefault("IDENTITY_AUDIENCE", "identity-api"),
		SigningKey:           os.Getenv("IDENTITY_SIGNING_KEY"),
		AccessTokenTTL:       getEnvDurationOrDefault("IDENTITY_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:      getEnvDurationOrDefault("IDENTITY_REFRESH_TTL", 24*time.Hour),
		DatabaseFile:         getEnvOrDefault("IDENTITY_DATABASE_FILE", "identity.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if len(cfg.SigningKey) < 32 {
		return Config{}, ErrMissingSigningKey
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Duration syntax first (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are taken as minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
