package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.latimes.com", cfg.SiteURL)
	assert.Equal(t, "regex", cfg.PromoParser)
	assert.Equal(t, "temp", cfg.TempDir)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, 50, cfg.MaxOutputFiles)
	assert.Equal(t, 20.0, cfg.MaxOutputMB)
	assert.Equal(t, "dir", cfg.QueueBackend)
	assert.True(t, cfg.BrowserHeadless)
	assert.True(t, cfg.CreateZip)
	assert.Equal(t, 10*time.Second, cfg.ElementTimeout)
	assert.Zero(t, cfg.Port)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OUTPUT_MAX_FILES", "10")
	t.Setenv("OUTPUT_MAX_MB", "2.5")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("ELEMENT_TIMEOUT", "3s")
	t.Setenv("QUEUE_BACKEND", "amqp")
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxOutputFiles)
	assert.Equal(t, 2.5, cfg.MaxOutputMB)
	assert.False(t, cfg.BrowserHeadless)
	assert.Equal(t, 3*time.Second, cfg.ElementTimeout)
	assert.Equal(t, "amqp", cfg.QueueBackend)
	assert.Zero(t, cfg.Port, "unparsable values fall back to the default")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SiteURL:             "https://example.com",
			QueueBackend:        "dir",
			MaxOutputFiles:      50,
			MaxOutputMB:         20,
			DownloadMaxAttempts: 1,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing site", func(c *Config) { c.SiteURL = "" }, ErrMissingSiteURL},
		{"unknown queue", func(c *Config) { c.QueueBackend = "kafka" }, ErrUnknownQueue},
		{"amqp without url", func(c *Config) { c.QueueBackend = "amqp" }, ErrMissingRabbitMQURL},
		{"zero files", func(c *Config) { c.MaxOutputFiles = 0 }, ErrInvalidMaxFiles},
		{"zero size", func(c *Config) { c.MaxOutputMB = 0 }, ErrInvalidMaxSize},
		{"zero attempts", func(c *Config) { c.DownloadMaxAttempts = 0 }, ErrInvalidAttempts},
		{"unknown parser", func(c *Config) { c.PromoParser = "xpath" }, ErrUnknownParser},
		{"document parser", func(c *Config) { c.PromoParser = "document" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
