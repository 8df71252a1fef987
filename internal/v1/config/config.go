package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration
type Config struct {
	// Identity provider (required unless SKIP_AUTH=true)
	IDPDomain   string
	IDPAudience string

	// Server
	Port           string
	AllowedOrigins string

	// Connection tuning
	HeartbeatInterval time.Duration
	ConnectionTimeout time.Duration
	GracePeriod       time.Duration
	RoomIdleMax       time.Duration

	// Persistence (optional; empty means no-op store)
	DatabaseURL string

	// Redis-backed rate limit store (optional)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Rate limits, ulule/limiter formatted ("5-M" = 5 per minute)
	RateLimitWsIP   string
	RateLimitWsUser string

	// Tracing (optional)
	OTLPEndpoint string

	// Modes
	SkipAuth        bool
	DevelopmentMode bool
}

// ValidateEnv validates all environment variables and returns a Config object.
// Returns an error listing every invalid or missing variable at once.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	cfg.SkipAuth = os.Getenv("SKIP_AUTH") == "true"
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"

	cfg.IDPDomain = os.Getenv("IDP_DOMAIN")
	cfg.IDPAudience = os.Getenv("IDP_AUDIENCE")
	if !cfg.SkipAuth {
		if cfg.IDPDomain == "" {
			errors = append(errors, "IDP_DOMAIN is required when SKIP_AUTH=false")
		}
		if cfg.IDPAudience == "" {
			errors = append(errors, "IDP_AUDIENCE is required when SKIP_AUTH=false")
		}
	}

	cfg.Port = getEnvOrDefault("PORT", "3001")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	var err error
	if cfg.HeartbeatInterval, err = durationMsEnv("HEARTBEAT_INTERVAL_MS", 25_000); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.ConnectionTimeout, err = durationMsEnv("CONNECTION_TIMEOUT_MS", 20_000); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.GracePeriod, err = durationMsEnv("GRACE_PERIOD_MS", 120_000); err != nil {
		errors = append(errors, err.Error())
	}
	if cfg.RoomIdleMax, err = durationMsEnv("ROOM_IDLE_MAX_MS", 1_800_000); err != nil {
		errors = append(errors, err.Error())
	}

	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "5-M")

	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// durationMsEnv reads a millisecond-valued env var with a default.
func durationMsEnv(key string, defaultMs int) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(defaultMs) * time.Millisecond, nil
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer of milliseconds (got '%s')", key, raw)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	return parts[0] != ""
}

// logValidatedConfig logs the validated configuration with secrets redacted
func logValidatedConfig(cfg *Config) {
	slog.Info("Environment configuration validated")
	slog.Info("Configuration",
		"idp_domain", cfg.IDPDomain,
		"port", cfg.Port,
		"heartbeat_interval", cfg.HeartbeatInterval,
		"connection_timeout", cfg.ConnectionTimeout,
		"grace_period", cfg.GracePeriod,
		"room_idle_max", cfg.RoomIdleMax,
		"database_url", redactSecret(cfg.DatabaseURL),
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"rate_limit_ws_ip", cfg.RateLimitWsIP,
		"rate_limit_ws_user", cfg.RateLimitWsUser,
		"development_mode", cfg.DevelopmentMode,
		"skip_auth", cfg.SkipAuth,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
