package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DQ_CONTEXT_ROOT", "DQ_LOG_LEVEL", "DQ_LOG_FORMAT", "DQ_HTTP_ADDR", "DQ_BLOB_RATE_LIMIT", "DQ_BLOB_RATE_BURST", "AZURE_ACCESS_KEY"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "", cfg.ContextRoot)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 50.0, cfg.BlobRateLimit)
	assert.Equal(t, 10, cfg.BlobRateBurst)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DQ_CONTEXT_ROOT", "/tmp/project")
	t.Setenv("DQ_BLOB_RATE_LIMIT", "2.5")
	t.Setenv("DQ_BLOB_RATE_BURST", "not-a-number")
	t.Setenv("AZURE_ACCESS_KEY", "secret")

	cfg := Load()
	assert.Equal(t, "/tmp/project", cfg.ContextRoot)
	assert.Equal(t, 2.5, cfg.BlobRateLimit)
	assert.Equal(t, 10, cfg.BlobRateBurst, "invalid ints fall back to the default")
	assert.Equal(t, "secret", cfg.AzureAccessKey)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&Config{LogLevel: "debug", LogFormat: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(&Config{LogLevel: "loud"})
	assert.Error(t, err)
}
