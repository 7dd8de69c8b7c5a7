// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8090
	defaultServerHost                = "127.0.0.1"
	defaultReadTimeout               = 15 * time.Second
	defaultWriteTimeout              = 15 * time.Second
	defaultDatabasePath              = "./data/agent.db"
	defaultDatabaseConnectionTimeout = 5 * time.Second
	defaultMigrationsPath            = "file://./migrations"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultMediaDir                  = "./data/media"
	defaultScenesDir                 = "./data/scenes"
	defaultStagingDir                = "./data/staging"
	defaultStateDir                  = "./data/state"
	defaultContentPollInterval       = 7 * time.Second
	defaultModePollInterval          = 5 * time.Second
	defaultPlayerBinary              = "mpv"
	defaultPlayerSocketPath          = "/tmp/lumen-mpv.sock"
	defaultPlayerStartTimeout        = 5 * time.Second
	defaultSyncTickInterval          = 200 * time.Millisecond
	defaultSyncLogInterval           = 5 * time.Second
	defaultGentleThresholdMs         = 10
	defaultModerateThresholdMs       = 30
	defaultAggressiveThresholdMs     = 100
	defaultSeekThresholdMs           = 500
	defaultDurationRetryWindow       = 15 * time.Second
	defaultFallbackDuration          = 30 * time.Second
	defaultBackendRequestTimeout     = 30 * time.Second
	envPrefix                        = "LUMEN"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Content  ContentConfig
	Player   PlayerConfig
	Sync     SyncConfig
	Backend  BackendConfig
}

// ServerConfig holds configuration for the local diagnostics HTTP server
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path              string
	ConnectionTimeout time.Duration
	EnableWAL         bool
	MigrationsPath    string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// ContentConfig holds content storage and polling configuration
type ContentConfig struct {
	MediaDir         string
	ScenesDir        string
	StagingDir       string
	StateDir         string
	PollInterval     time.Duration
	ModePollInterval time.Duration
}

// PlayerConfig holds media player process configuration
type PlayerConfig struct {
	Binary       string
	SocketPath   string
	Rotation     int
	StartTimeout time.Duration
}

// SyncConfig holds playback synchronization tuning.
// Threshold values are offset magnitudes in milliseconds; each band is
// inclusive of its lower bound.
type SyncConfig struct {
	TickInterval          time.Duration
	LogInterval           time.Duration
	GentleThresholdMs     int64
	ModerateThresholdMs   int64
	AggressiveThresholdMs int64
	SeekThresholdMs       int64
	DurationRetryWindow   time.Duration
	FallbackDuration      time.Duration
}

// BackendConfig holds cloud backend connection configuration
type BackendConfig struct {
	BaseURL        string
	WebsocketURL   string
	TokenPath      string
	RequestTimeout time.Duration
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// Load .env file if present (optional, won't error if missing)
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lumen")

	// Environment variable settings
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	// Database defaults
	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.connectiontimeout", defaultDatabaseConnectionTimeout)
	v.SetDefault("database.enablewal", true)
	v.SetDefault("database.migrationspath", defaultMigrationsPath)

	// Logging defaults
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	// Content defaults
	v.SetDefault("content.mediadir", defaultMediaDir)
	v.SetDefault("content.scenesdir", defaultScenesDir)
	v.SetDefault("content.stagingdir", defaultStagingDir)
	v.SetDefault("content.statedir", defaultStateDir)
	v.SetDefault("content.pollinterval", defaultContentPollInterval)
	v.SetDefault("content.modepollinterval", defaultModePollInterval)

	// Player defaults
	v.SetDefault("player.binary", defaultPlayerBinary)
	v.SetDefault("player.socketpath", defaultPlayerSocketPath)
	v.SetDefault("player.rotation", 0)
	v.SetDefault("player.starttimeout", defaultPlayerStartTimeout)

	// Sync defaults
	v.SetDefault("sync.tickinterval", defaultSyncTickInterval)
	v.SetDefault("sync.loginterval", defaultSyncLogInterval)
	v.SetDefault("sync.gentlethresholdms", defaultGentleThresholdMs)
	v.SetDefault("sync.moderatethresholdms", defaultModerateThresholdMs)
	v.SetDefault("sync.aggressivethresholdms", defaultAggressiveThresholdMs)
	v.SetDefault("sync.seekthresholdms", defaultSeekThresholdMs)
	v.SetDefault("sync.durationretrywindow", defaultDurationRetryWindow)
	v.SetDefault("sync.fallbackduration", defaultFallbackDuration)

	// Backend defaults
	v.SetDefault("backend.requesttimeout", defaultBackendRequestTimeout)
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}
	if c.Database.ConnectionTimeout <= 0 {
		return fmt.Errorf("invalid database connection timeout: %v (must be > 0)", c.Database.ConnectionTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if c.Content.PollInterval < time.Second {
		return fmt.Errorf("invalid content poll interval: %v (must be >= 1s)", c.Content.PollInterval)
	}
	if c.Player.SocketPath == "" {
		return fmt.Errorf("player socket path cannot be empty")
	}
	if c.Player.Rotation%90 != 0 || c.Player.Rotation < 0 || c.Player.Rotation > 270 {
		return fmt.Errorf("invalid player rotation: %d (must be 0, 90, 180, or 270)", c.Player.Rotation)
	}

	if c.Sync.TickInterval <= 0 {
		return fmt.Errorf("invalid sync tick interval: %v (must be > 0)", c.Sync.TickInterval)
	}
	if err := validateThresholds(&c.Sync); err != nil {
		return err
	}

	return nil
}

// validateThresholds checks that sync tier boundaries are strictly increasing
func validateThresholds(s *SyncConfig) error {
	if s.GentleThresholdMs <= 0 {
		return fmt.Errorf("invalid gentle threshold: %d (must be > 0)", s.GentleThresholdMs)
	}
	if s.ModerateThresholdMs <= s.GentleThresholdMs {
		return fmt.Errorf("moderate threshold %d must exceed gentle threshold %d", s.ModerateThresholdMs, s.GentleThresholdMs)
	}
	if s.AggressiveThresholdMs <= s.ModerateThresholdMs {
		return fmt.Errorf("aggressive threshold %d must exceed moderate threshold %d", s.AggressiveThresholdMs, s.ModerateThresholdMs)
	}
	if s.SeekThresholdMs <= s.AggressiveThresholdMs {
		return fmt.Errorf("seek threshold %d must exceed aggressive threshold %d", s.SeekThresholdMs, s.AggressiveThresholdMs)
	}
	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
