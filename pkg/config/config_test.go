package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Signal.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.Signal.PongTimeout)
	assert.Equal(t, 50, cfg.Chat.HistoryLimit)
	assert.Equal(t, 1000, cfg.Chat.RetentionLimit)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.RateLimiting.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Address, cfg.Server.Address)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  address: ":9999"
chat:
  history_limit: 25
  retention_limit: 200
signal:
  ping_interval: 10s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, 25, cfg.Chat.HistoryLimit)
	assert.Equal(t, 10*time.Second, cfg.Signal.PingInterval)
	// Untouched sections keep defaults
	assert.Equal(t, 60*time.Second, cfg.Signal.PongTimeout)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server address", func(c *Config) { c.Server.Address = "" }},
		{"zero ping interval", func(c *Config) { c.Signal.PingInterval = 0 }},
		{"zero history limit", func(c *Config) { c.Chat.HistoryLimit = 0 }},
		{"retention below history", func(c *Config) { c.Chat.RetentionLimit = 1 }},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"redis enabled without address", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Address = ""
		}},
		{"rate limiting enabled without rps", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
		{"tracing sample rate out of range", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 2.0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LIVECAST_SERVER_ADDRESS", ":7070")
	t.Setenv("LIVECAST_JWT_SECRET", "env-secret")
	t.Setenv("LIVECAST_CHAT_HISTORY_LIMIT", "75")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 75, cfg.Chat.HistoryLimit)
}
