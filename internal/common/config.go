package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Detection DetectionConfig
	Batch     BatchConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DetectionConfig holds the scale-detection policy. The thresholds are fixed
// policy values; they live here so they are named and independently testable,
// not so they vary per call.
type DetectionConfig struct {
	// AutoApplyThreshold is the minimum confidence at which a detected
	// scale is applied to the page without operator review.
	AutoApplyThreshold float64
	// TextSearchPenalty multiplies the confidence of scales parsed out of
	// unconstrained full-page text rather than a title-block candidate.
	TextSearchPenalty float64
	// RenderDPI is the assumed raster resolution of page images, used to
	// turn a scale ratio into pixels per foot.
	RenderDPI float64
	// Scale bars are near-horizontal segments of this pixel length range,
	// searched in the bottom BarBandFraction of the page.
	MinBarLengthPx  int
	MaxBarLengthPx  int
	BarBandFraction float64
}

// BatchConfig holds background-task configuration
type BatchConfig struct {
	RecalcWorkers  int64
	DetectWorkers  int
	DetectTimeout  time.Duration
	DetectQueueLen int
}

// DefaultDetectionConfig returns the fixed detection policy.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		AutoApplyThreshold: 0.85,
		TextSearchPenalty:  0.8,
		RenderDPI:          150,
		MinBarLengthPx:     100,
		MaxBarLengthPx:     500,
		BarBandFraction:    0.4,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Detection: DetectionConfig{
			AutoApplyThreshold: getEnvAsFloat64("SCALE_AUTO_APPLY_THRESHOLD", 0.85),
			TextSearchPenalty:  getEnvAsFloat64("SCALE_TEXT_SEARCH_PENALTY", 0.8),
			RenderDPI:          getEnvAsFloat64("PAGE_RENDER_DPI", 150),
			MinBarLengthPx:     getEnvAsInt("SCALE_BAR_MIN_PX", 100),
			MaxBarLengthPx:     getEnvAsInt("SCALE_BAR_MAX_PX", 500),
			BarBandFraction:    getEnvAsFloat64("SCALE_BAR_BAND_FRACTION", 0.4),
		},
		Batch: BatchConfig{
			RecalcWorkers:  int64(getEnvAsInt("RECALC_WORKERS", 4)),
			DetectWorkers:  getEnvAsInt("DETECT_WORKERS", 2),
			DetectTimeout:  getEnvAsDuration("DETECT_TIMEOUT", 2*time.Minute),
			DetectQueueLen: getEnvAsInt("DETECT_QUEUE_LEN", 256),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Detection.AutoApplyThreshold <= 0 || c.Detection.AutoApplyThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "SCALE_AUTO_APPLY_THRESHOLD must be in (0,1]", ErrInvalidInput)
	}
	if c.Detection.TextSearchPenalty <= 0 || c.Detection.TextSearchPenalty > 1 {
		return NewAppError("CONFIG_ERROR", "SCALE_TEXT_SEARCH_PENALTY must be in (0,1]", ErrInvalidInput)
	}
	if c.Detection.RenderDPI <= 0 {
		return NewAppError("CONFIG_ERROR", "PAGE_RENDER_DPI must be positive", ErrInvalidInput)
	}
	return nil
}
