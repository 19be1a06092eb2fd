package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Exchange rates
	NBPBaseURL   string
	RateCacheTTL time.Duration

	// HTTP response cache
	ProjectionCacheTTL time.Duration

	// Settlement worker. SettlementHour is the local hour (0-23) at which
	// the daily run fires.
	SettlementHour int
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/zlotowka.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "zlotowka"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "settlement_events"),

		NBPBaseURL:   getEnv("NBP_BASE_URL", "https://api.nbp.pl/api"),
		RateCacheTTL: getEnvDuration("RATE_CACHE_TTL", time.Hour),

		ProjectionCacheTTL: getEnvDuration("PROJECTION_CACHE_TTL", time.Minute),

		SettlementHour: getEnvInt("SETTLEMENT_HOUR", 0),
	}

	return cfg
}

// Validate checks the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	}

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

	if c.NBPBaseURL == "" {
		errors = append(errors, "NBP base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.NBPBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid NBP base URL '%s': %v", c.NBPBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid NBP base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	if c.RateCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate cache TTL %v: must be at least 1 minute", c.RateCacheTTL))
	} else if c.RateCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rate cache TTL %v: must be at most 24 hours", c.RateCacheTTL))
	}

	if c.ProjectionCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid projection cache TTL %v: must not be negative", c.ProjectionCacheTTL))
	}

	if c.SettlementHour < 0 || c.SettlementHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid settlement hour %d: must be between 0 and 23", c.SettlementHour))
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
