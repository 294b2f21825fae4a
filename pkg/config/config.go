package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/stripe-exporter/pkg/observability"
)

// DefaultStripeBaseURL is the production Stripe API endpoint.
const DefaultStripeBaseURL = "https://api.stripe.com/v1"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Stripe API configuration
	Stripe StripeConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StripeConfig holds Stripe API and billing model settings
type StripeConfig struct {
	// APIKey authenticates all Stripe API calls. Required.
	APIKey string

	// BaseURL overrides the Stripe API endpoint, for tests.
	BaseURL string

	// PollInterval is the fixed delay between refresh cycles.
	PollInterval time.Duration

	// FeePercent and FeeFlat model Stripe's per-charge fee
	// (percentage of the gross plus a flat amount in major units),
	// used for the net revenue and net MRR metrics.
	FeePercent float64
	FeeFlat    float64
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Stripe:        loadStripeConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("STRIPE_EXPORTER_HOST", "0.0.0.0"),
		Port:            getEnv("STRIPE_EXPORTER_PORT", "8080"),
		ReadTimeout:     getEnvDuration("STRIPE_EXPORTER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("STRIPE_EXPORTER_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("STRIPE_EXPORTER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("STRIPE_EXPORTER_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadStripeConfig loads Stripe configuration from environment
func loadStripeConfig() StripeConfig {
	return StripeConfig{
		APIKey:       os.Getenv("STRIPE_API_KEY"),
		BaseURL:      getEnv("STRIPE_API_BASE_URL", DefaultStripeBaseURL),
		PollInterval: getEnvDuration("STRIPE_EXPORTER_POLL_INTERVAL", 5*time.Minute),
		FeePercent:   getEnvFloat("STRIPE_FEE_PERCENT", 0.029),
		FeeFlat:      getEnvFloat("STRIPE_FEE_FLAT", 0.30),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel: parseLogLevel(getEnv("STRIPE_EXPORTER_LOG_LEVEL", "info")),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Stripe.APIKey == "" {
		return fmt.Errorf("STRIPE_API_KEY environment variable is required")
	}
	if c.Stripe.BaseURL == "" {
		return fmt.Errorf("stripe API base URL is required")
	}
	if c.Stripe.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Stripe.PollInterval)
	}
	if c.Stripe.FeePercent < 0 || c.Stripe.FeePercent >= 1 {
		return fmt.Errorf("fee percent must be in [0, 1), got %g", c.Stripe.FeePercent)
	}
	if c.Stripe.FeeFlat < 0 {
		return fmt.Errorf("flat fee must be non-negative, got %g", c.Stripe.FeeFlat)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
