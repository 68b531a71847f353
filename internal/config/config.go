package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"receipts/internal/logger"
)

// Config carries process-wide configuration. Everything is read from the
// environment once at startup; the pipeline tunables (thresholds, penalties,
// tolerances) are deliberately configuration rather than constants.
type Config struct {
	// OCR backend selection: "vision" (Cloud Vision) or "documentai"
	OCRProvider string

	// Google Cloud configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Optional YAML file with additional merchant templates,
	// merged into the built-in registry at startup
	TemplatesFile string

	// Sanitizer
	MaxTextLength int

	// Template detection
	AcceptThreshold float64

	// Confidence scoring
	ToleranceCents   int64   // reconciliation tolerance in cents
	ReconcilePenalty float64 // multiplied into confidence on mismatch
	RecomputePenalty float64 // multiplied in when totals are recomputed from items

	// Vision adapter retry
	OCRMaxAttempts    int
	OCRRetryBaseDelay time.Duration

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	config := &Config{
		OCRProvider:           getEnv("OCR_PROVIDER", "vision"),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		TemplatesFile:         getEnv("RECEIPT_TEMPLATES_FILE", ""),
		MaxTextLength:         getEnvInt("SANITIZE_MAX_LENGTH", 20000),
		AcceptThreshold:       getEnvFloat("TEMPLATE_ACCEPT_THRESHOLD", 0.4),
		ToleranceCents:        int64(getEnvInt("RECONCILE_TOLERANCE_CENTS", 1)),
		ReconcilePenalty:      getEnvFloat("RECONCILE_PENALTY", 0.7),
		RecomputePenalty:      getEnvFloat("RECOMPUTE_PENALTY", 0.8),
		OCRMaxAttempts:        getEnvInt("OCR_MAX_ATTEMPTS", 3),
		OCRRetryBaseDelay:     getEnvDuration("OCR_RETRY_BASE_DELAY", 500*time.Millisecond),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.OCRProvider != "vision" && c.OCRProvider != "documentai" {
		return fmt.Errorf("OCR_PROVIDER must be \"vision\" or \"documentai\", got %q", c.OCRProvider)
	}
	if c.AcceptThreshold <= 0 || c.AcceptThreshold > 1 {
		return fmt.Errorf("TEMPLATE_ACCEPT_THRESHOLD must be in (0,1], got %v", c.AcceptThreshold)
	}
	if c.ReconcilePenalty <= 0 || c.ReconcilePenalty > 1 {
		return fmt.Errorf("RECONCILE_PENALTY must be in (0,1], got %v", c.ReconcilePenalty)
	}
	if c.RecomputePenalty <= 0 || c.RecomputePenalty > 1 {
		return fmt.Errorf("RECOMPUTE_PENALTY must be in (0,1], got %v", c.RecomputePenalty)
	}
	if c.MaxTextLength <= 0 {
		return fmt.Errorf("SANITIZE_MAX_LENGTH must be positive, got %d", c.MaxTextLength)
	}
	if c.ToleranceCents < 0 {
		return fmt.Errorf("RECONCILE_TOLERANCE_CENTS must be non-negative, got %d", c.ToleranceCents)
	}
	if c.OCRMaxAttempts < 1 {
		return fmt.Errorf("OCR_MAX_ATTEMPTS must be at least 1, got %d", c.OCRMaxAttempts)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
