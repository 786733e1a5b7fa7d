package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "CONVO_BASE_URL", "CONVO_API_KEY", "CONVO_APPLICATION_ID",
		"CONVO_BUFFER_SIZE", "CONVO_MESSAGE_MODE", "CONVO_RELAY", "CONVO_RELAY_MAX_AGE", "DATABASE_URL", "WRITER_FLUSH",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://api.example.com/v1", cfg.BaseURL)
	assert.Equal(t, 32768, cfg.BufferSize)
	assert.Equal(t, MessageModeDelta, cfg.MessageMode)
	assert.False(t, cfg.RelayEnabled)
	assert.Equal(t, 24*time.Hour, cfg.RelayMaxAge)
	assert.Equal(t, 100*time.Millisecond, cfg.WriterFlush)
	assert.False(t, cfg.RecordingEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CONVO_BASE_URL", "https://chat.internal/api")
	t.Setenv("CONVO_API_KEY", "secret")
	t.Setenv("CONVO_APPLICATION_ID", "app-42")
	t.Setenv("CONVO_RELAY", "true")
	t.Setenv("CONVO_MESSAGE_MODE", "cumulative")
	t.Setenv("CONVO_RELAY_MAX_AGE", "1h")
	t.Setenv("DATABASE_URL", "postgres://localhost/convo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://chat.internal/api", cfg.BaseURL)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "app-42", cfg.ApplicationID)
	assert.True(t, cfg.RelayEnabled)
	assert.Equal(t, MessageModeCumulative, cfg.MessageMode)
	assert.Equal(t, time.Hour, cfg.RelayMaxAge)
	assert.True(t, cfg.RecordingEnabled())
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("non-numeric buffer size", func(t *testing.T) {
		t.Setenv("CONVO_BUFFER_SIZE", "lots")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero buffer size", func(t *testing.T) {
		t.Setenv("CONVO_BUFFER_SIZE", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown message mode", func(t *testing.T) {
		t.Setenv("CONVO_MESSAGE_MODE", "guess")
		_, err := Load()
		assert.ErrorContains(t, err, "message mode")
	})
}
