// Package config provides configuration loading for dq-core binaries.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds process-level settings read from the environment.
type Config struct {
	// ContextRoot is the directory holding dq.yml. Empty means ephemeral.
	ContextRoot string

	// Logging
	LogLevel  string
	LogFormat string

	// HTTP API
	HTTPAddr string

	// Blob request throttling, per opened store.
	BlobRateLimit float64
	BlobRateBurst int

	// AzureAccessKey is the credential used by the Azure walkthrough.
	AzureAccessKey string
}

// Load loads configuration from environment.
func Load() *Config {
	return &Config{
		ContextRoot:    getEnv("DQ_CONTEXT_ROOT", ""),
		LogLevel:       getEnv("DQ_LOG_LEVEL", "info"),
		LogFormat:      getEnv("DQ_LOG_FORMAT", "json"),
		HTTPAddr:       getEnv("DQ_HTTP_ADDR", ":8080"),
		BlobRateLimit:  getEnvFloat("DQ_BLOB_RATE_LIMIT", 50),
		BlobRateBurst:  getEnvInt("DQ_BLOB_RATE_BURST", 10),
		AzureAccessKey: os.Getenv("AZURE_ACCESS_KEY"),
	}
}

// NewLogger builds a zap logger from the logging settings.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if strings.EqualFold(cfg.LogFormat, "console") {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid DQ_LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
