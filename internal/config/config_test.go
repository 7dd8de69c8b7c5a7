package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "./data/agent.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 200*time.Millisecond, cfg.Sync.TickInterval)
	assert.Equal(t, int64(10), cfg.Sync.GentleThresholdMs)
	assert.Equal(t, int64(30), cfg.Sync.ModerateThresholdMs)
	assert.Equal(t, int64(100), cfg.Sync.AggressiveThresholdMs)
	assert.Equal(t, int64(500), cfg.Sync.SeekThresholdMs)
	assert.Equal(t, "mpv", cfg.Player.Binary)
	assert.Equal(t, 7*time.Second, cfg.Content.PollInterval)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LUMEN_SERVER_PORT", "9999")
	t.Setenv("LUMEN_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8090,
			Host:         "127.0.0.1",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Path:              "./data/agent.db",
			ConnectionTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Content: ContentConfig{PollInterval: 7 * time.Second},
		Player: PlayerConfig{
			Binary:     "mpv",
			SocketPath: "/tmp/test-mpv.sock",
		},
		Sync: SyncConfig{
			TickInterval:          200 * time.Millisecond,
			LogInterval:           5 * time.Second,
			GentleThresholdMs:     10,
			ModerateThresholdMs:   30,
			AggressiveThresholdMs: 100,
			SeekThresholdMs:       500,
		},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"poll interval too short", func(c *Config) { c.Content.PollInterval = 100 * time.Millisecond }},
		{"empty socket path", func(c *Config) { c.Player.SocketPath = "" }},
		{"bad rotation", func(c *Config) { c.Player.Rotation = 45 }},
		{"zero tick interval", func(c *Config) { c.Sync.TickInterval = 0 }},
		{"zero gentle threshold", func(c *Config) { c.Sync.GentleThresholdMs = 0 }},
		{"unordered thresholds", func(c *Config) { c.Sync.ModerateThresholdMs = 5 }},
		{"seek below aggressive", func(c *Config) { c.Sync.SeekThresholdMs = 50 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
