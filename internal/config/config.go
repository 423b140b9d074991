package config

import (
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	TokenSecret string
	APIKeyHash  string
	TokenExpiry time.Duration
	LogLevel    string
}

func LoadConfig() (*Config, error) {
	expiryStr := getEnv("TOKEN_EXPIRY", "24h")
	expiry, err := time.ParseDuration(expiryStr)
	if err != nil {
		return nil, errors.New("invalid TOKEN_EXPIRY format")
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		TokenSecret: os.Getenv("TOKEN_SECRET"),
		APIKeyHash:  os.Getenv("API_KEY_HASH"),
		TokenExpiry: expiry,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.TokenSecret == "" {
		return nil, errors.New("TOKEN_SECRET is required")
	}
	if cfg.APIKeyHash == "" {
		return nil, errors.New("API_KEY_HASH is required")
	}

	return cfg, nil
}

// NewLogger builds the shared structured logger from the configured level.
func NewLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
