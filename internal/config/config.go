package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends
const (
	BackendREST   = "rest"
	BackendMemory = "memory"
)

var (
	validBackends   = []string{BackendREST, BackendMemory}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"pretty", "text", "json"}
)

type Config struct {
	// Backend selection
	Backend  string
	SeedFile string // memory backend only

	// REST API
	APIBaseURL  string
	APIToken    string
	HTTPTimeout time.Duration

	// Acting user
	UserID string

	// Cache
	SettlementFetchConcurrency int
	VoteSessionTTL             time.Duration
	VoteSessionMax             int

	// Change feed (both optional)
	FeedURL      string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Backend:  getEnv("NBBANG_BACKEND", BackendMemory),
		SeedFile: getEnv("NBBANG_SEED_FILE", "./data/seed.json"),

		APIBaseURL:  getEnv("API_BASE_URL", ""),
		APIToken:    getEnv("API_TOKEN", ""),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		UserID: getEnv("NBBANG_USER_ID", ""),

		SettlementFetchConcurrency: getEnvInt("SETTLEMENT_FETCH_CONCURRENCY", 8),
		VoteSessionTTL:             getEnvDuration("VOTE_SESSION_TTL", 30*time.Minute),
		VoteSessionMax:             getEnvInt("VOTE_SESSION_MAX", 64),

		FeedURL:      getEnv("FEED_URL", ""),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "nbbang"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "nbbang_changes"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if !slices.Contains(validBackends, c.Backend) {
		errors = append(errors, fmt.Sprintf("invalid backend '%s': must be one of %v", c.Backend, validBackends))
	}

	if c.Backend == BackendREST {
		if c.APIBaseURL == "" {
			errors = append(errors, "API_BASE_URL is required when using rest backend")
		} else if u, err := url.Parse(c.APIBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		}
	}

	if strings.TrimSpace(c.UserID) == "" {
		errors = append(errors, "NBBANG_USER_ID is required")
	}

	if c.HTTPTimeout < 100*time.Millisecond || c.HTTPTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be between 100ms and 5m", c.HTTPTimeout))
	}

	if c.SettlementFetchConcurrency < 1 || c.SettlementFetchConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid settlement fetch concurrency %d: must be between 1 and 64", c.SettlementFetchConcurrency))
	}

	if c.VoteSessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid vote session TTL %v: must be at least 1 minute", c.VoteSessionTTL))
	}
	if c.VoteSessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid vote session max %d: must be at least 1", c.VoteSessionMax))
	}

	if c.FeedURL != "" {
		if u, err := url.Parse(c.FeedURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid feed URL '%s': %v", c.FeedURL, err))
		} else if u.Scheme != "ws" && u.Scheme != "wss" {
			errors = append(errors, fmt.Sprintf("invalid feed URL scheme '%s': must be 'ws' or 'wss'", u.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
