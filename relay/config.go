package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	LogLevel    string
	Environment string

	GoogleClientID     string
	GoogleClientSecret string
	RedirectURI        string

	// ModelAPIKey is the service credential used for process-text calls
	// on behalf of signed-in users.
	ModelAPIKey string
	ModelName   string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	DataDir      string
	MonthlyLimit int

	MaxSessionsPerIP  int
	MaxTotalSessions  int
	SessionTimeout    time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		Environment:       getEnvOrDefault("ENVIRONMENT", "production"),
		ModelName:         getEnvOrDefault("MODEL_NAME", "gemini-2.0-flash"),
		AccessTokenTTL:    getEnvDurationOrDefault("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL:   getEnvDurationOrDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		DataDir:           getEnvOrDefault("DATA_DIR", "data"),
		MonthlyLimit:      getEnvIntOrDefault("MONTHLY_LIMIT", 50),
		MaxSessionsPerIP:  getEnvIntOrDefault("MAX_SESSIONS_PER_IP", 5),
		MaxTotalSessions:  getEnvIntOrDefault("MAX_TOTAL_SESSIONS", 1000),
		SessionTimeout:    getEnvDurationOrDefault("SESSION_TIMEOUT", 5*time.Minute),
		RateLimitRequests: getEnvIntOrDefault("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getEnvDurationOrDefault("RATE_LIMIT_WINDOW", time.Minute),
	}

	if err := cfg.validatePort(); err != nil {
		return nil, fmt.Errorf("port validation failed: %w", err)
	}
	if err := cfg.validateLogLevel(); err != nil {
		return nil, fmt.Errorf("log level validation failed: %w", err)
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}

	cfg.RedirectURI = os.Getenv("REDIRECT_URI")
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = cfg.autoDetectRedirectURI()
	}

	cfg.ModelAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.ModelAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateSecureToken(32)
		if cfg.Environment == "production" {
			slog.Warn("JWT_SECRET not set in production - using generated secret (tokens will not survive restarts)")
		}
	} else if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}

	if cfg.MonthlyLimit <= 0 {
		return nil, fmt.Errorf("MONTHLY_LIMIT must be positive")
	}

	return cfg, nil
}

func (c *Config) validatePort() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", c.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port out of range: %d", port)
	}
	return nil
}

func (c *Config) validateLogLevel() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid log level: %s", c.LogLevel)
}

// autoDetectRedirectURI derives the public callback URL on Fly.io style
// deployments from the app name, falling back to localhost for dev.
func (c *Config) autoDetectRedirectURI() string {
	if app := os.Getenv("FLY_APP_NAME"); app != "" {
		return fmt.Sprintf("https://%s.fly.dev/auth/callback", app)
	}
	return fmt.Sprintf("http://localhost:%s/auth/callback", c.Port)
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func generateSecureToken(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(buf)
}
