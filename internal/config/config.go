package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	BaseURL       string `env:"CONVO_BASE_URL" envDefault:"https://api.example.com/v1"`
	APIKey        string `env:"CONVO_API_KEY"`
	ApplicationID string `env:"CONVO_APPLICATION_ID"`
	BufferSize    int    `env:"CONVO_BUFFER_SIZE" envDefault:"32768"`

	// MessageMode says how the server fills the message field: "delta" sends
	// only the new text per frame, "cumulative" resends the whole answer so far.
	MessageMode string `env:"CONVO_MESSAGE_MODE" envDefault:"delta"`

	// Push delivery through an embedded NATS server instead of reading the body directly.
	RelayEnabled  bool          `env:"CONVO_RELAY" envDefault:"false"`
	RelayStoreDir string        `env:"CONVO_RELAY_STORE_DIR" envDefault:"./data/nats"`
	RelayMaxAge   time.Duration `env:"CONVO_RELAY_MAX_AGE" envDefault:"24h"`

	// Recording is disabled while DatabaseURL is empty.
	DatabaseURL      string        `env:"DATABASE_URL"`
	DatabaseMaxConns int32         `env:"DATABASE_MAX_CONNS" envDefault:"4"`
	WriterBufferSize int           `env:"WRITER_BUFFER_SIZE" envDefault:"1000"`
	WriterBatchSize  int           `env:"WRITER_BATCH_SIZE" envDefault:"50"`
	WriterFlush      time.Duration `env:"WRITER_FLUSH" envDefault:"100ms"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("CONVO_BUFFER_SIZE must be positive, got %d", cfg.BufferSize)
	}
	if err := ValidateMessageMode(cfg.MessageMode); err != nil {
		return nil, err
	}
	return cfg, nil
}

const (
	MessageModeDelta      = "delta"
	MessageModeCumulative = "cumulative"
)

func ValidateMessageMode(mode string) error {
	switch mode {
	case MessageModeDelta, MessageModeCumulative:
		return nil
	}
	return fmt.Errorf("message mode must be %q or %q, got %q", MessageModeDelta, MessageModeCumulative, mode)
}

// RecordingEnabled reports whether streams should be persisted.
func (c *Config) RecordingEnabled() bool {
	return c.DatabaseURL != ""
}
