package app

import (
	"os"
	"strconv"
	"time"

	"github.com/sentinelauth/sentinel/pkg/cryptox"
)

type Config struct {
	Issuer string // Issuer claim for tokens and label in authenticator apps

	DatabaseFile         string        // Path to SQLite database file (default: ./auth.db)
	PasswordHashCost     int           // bcrypt cost factor (default: 10)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	AccessTokenTTL       time.Duration // Access token lifetime (default: 5m)
	RefreshTokenTTL      time.Duration // Refresh token lifetime (default: 7d)
	ChallengeTTL         time.Duration // Two-factor challenge lifetime (default: 5m)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:               getEnvOrDefault("AUTH_ISSUER", "sentinel-auth"),
		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PasswordHashCost:     getEnvIntOrDefault("PASSWORD_HASH_COST", cryptox.DefaultPasswordCost),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		AccessTokenTTL:       getEnvDurationOrDefault("ACCESS_TOKEN_TTL", 5*time.Minute),
		RefreshTokenTTL:      getEnvDurationOrDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ChallengeTTL:         getEnvDurationOrDefault("TWOFACTOR_CHALLENGE_TTL", 5*time.Minute),
	}

	return cfg
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

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
