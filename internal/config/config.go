// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"chat-room/internal/models"
)

// Config holds runtime settings for the chat room service.
type Config struct {
	// ServiceURL is the Postgres endpoint backing the Chat table and its change channel.
	ServiceURL string
	// APIKey verifies the session tokens presented by clients.
	APIKey string

	Port         string
	Environment  string
	AMQPURL      string
	AMQPExchange string
	LogLevel     string
	LogPretty    bool
	OTLPEndpoint string

	SendCooldown time.Duration
	// MaxMessageLength can lower the message limit, never raise it above models.MaxMessageLength.
	MaxMessageLength int
}

var (
	ErrMissingServiceURL = errors.New("CHAT_SERVICE_URL is not set")
	ErrMissingAPIKey     = errors.New("CHAT_API_KEY is not set")
)

// Load reads the environment, loading a .env file first when one is present.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}

	return &Config{
		ServiceURL:       getEnv("CHAT_SERVICE_URL", ""),
		APIKey:           getEnv("CHAT_API_KEY", ""),
		Port:             getEnv("PORT", "8083"),
		Environment:      getEnv("ENVIRONMENT", "local"),
		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "chat.events"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getBool("LOG_PRETTY", false),
		OTLPEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SendCooldown:     time.Duration(getInt("SEND_COOLDOWN_SECONDS", 3)) * time.Second,
		MaxMessageLength: capInt("MAX_MESSAGE_LENGTH", getInt("MAX_MESSAGE_LENGTH", models.MaxMessageLength), models.MaxMessageLength),
	}
}

// Validate reports the first missing required setting. Without them every remote operation would fail.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return ErrMissingServiceURL
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("config: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}

func capInt(key string, v, limit int) int {
	if v > limit {
		log.Printf("config: %s=%d exceeds %d, using %d", key, v, limit, limit)
		return limit
	}
	return v
}

func getBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
