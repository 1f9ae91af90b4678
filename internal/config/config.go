package config

import (
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:"SERVER"`

	// Storage configuration
	Storage StorageConfig `env:"STORAGE"`

	// Recording configuration
	Recording RecordingConfig `env:"RECORDING"`

	// Replay configuration
	Replay ReplayConfig `env:"REPLAY"`

	// Logging configuration
	Logging LoggingConfig `env:"LOGGING"`

	// Metrics configuration
	Metrics MetricsConfig `env:"METRICS"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	// HTTP control API address; the extension bridge shares this server
	HTTPAddr string `env:"HTTP_ADDR" envDefault:"127.0.0.1:8570"`
}

// StorageConfig holds storage-related configuration
type StorageConfig struct {
	// Data directory path
	DataDir string `env:"DATA_DIR" envDefault:"./data"`
}

// RecordingConfig holds recording-related configuration
type RecordingConfig struct {
	// Minimum occurrences across completed sessions for an action
	// shape to count as stable
	PatternThreshold int `env:"PATTERN_THRESHOLD" envDefault:"3"`
}

// ReplayConfig holds replay-related configuration
type ReplayConfig struct {
	// Insert randomized pauses between actions
	HumanLikeDelays bool `env:"HUMAN_DELAYS" envDefault:"true"`

	// Bounds for the base inter-action delay
	MinDelay time.Duration `env:"MIN_DELAY" envDefault:"500ms"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"2s"`

	// Pause between synthesized keystrokes when typing
	TypingDelay time.Duration `env:"TYPING_DELAY" envDefault:"50ms"`

	// Pause and wait for the user when a verification challenge is visible
	PauseOnChallenge bool `env:"PAUSE_ON_CHALLENGE" envDefault:"true"`

	// Attempts per action before the replay fails
	MaxRetries int `env:"MAX_RETRIES" envDefault:"3"`

	// How long to wait for an element before retrying its locator
	ResolveWait time.Duration `env:"RESOLVE_WAIT" envDefault:"2s"`

	// Page is considered settled after this long without mutations
	QuietInterval time.Duration `env:"QUIET_INTERVAL" envDefault:"500ms"`

	// Upper bound on waiting for the page to settle
	QuietTimeout time.Duration `env:"QUIET_TIMEOUT" envDefault:"10s"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	// Log level: "debug", "info", "warn", "error"
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Log format: "json", "text"
	Format string `env:"LOG_FORMAT" envDefault:"json"`

	// Log file path (empty for stdout)
	Output string `env:"LOG_OUTPUT" envDefault:""`

	// Enable log rotation
	Rotation bool `env:"LOG_ROTATION" envDefault:"true"`

	// Max log file size in MB
	MaxSize int `env:"LOG_MAX_SIZE" envDefault:"100"`

	// Number of backup files to keep
	MaxBackups int `env:"LOG_MAX_BACKUPS" envDefault:"7"`

	// Max age in days
	MaxAge int `env:"LOG_MAX_AGE" envDefault:"30"`
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	// Enable Prometheus metrics
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Metrics server address
	Addr string `env:"METRICS_ADDR" envDefault:"127.0.0.1:9570"`

	// Metrics path
	Path string `env:"METRICS_PATH" envDefault:"/metrics"`
}

// Load loads configuration from environment variables, then command line
// flags, then validates the result
func Load() (*Config, error) {
	cfg := &Config{}

	// Load from environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	// Parse command line flags
	flag.StringVar(&cfg.Server.HTTPAddr, "http-addr", cfg.Server.HTTPAddr, "HTTP server address")
	flag.StringVar(&cfg.Storage.DataDir, "data-dir", cfg.Storage.DataDir, "Data directory path")
	flag.IntVar(&cfg.Recording.PatternThreshold, "pattern-threshold", cfg.Recording.PatternThreshold, "Stable pattern occurrence threshold")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format (json, text)")
	flag.Parse()

	// Normalize paths
	cfg.Storage.DataDir = filepath.Clean(cfg.Storage.DataDir)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("http server address cannot be empty")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Recording.PatternThreshold < 1 {
		return fmt.Errorf("pattern threshold must be at least 1, got %d", c.Recording.PatternThreshold)
	}

	if c.Replay.MinDelay < 0 || c.Replay.MaxDelay < c.Replay.MinDelay {
		return fmt.Errorf("replay delay bounds are invalid: min %s, max %s", c.Replay.MinDelay, c.Replay.MaxDelay)
	}

	if c.Replay.MaxRetries < 1 {
		return fmt.Errorf("replay retries must be at least 1, got %d", c.Replay.MaxRetries)
	}

	if c.Replay.QuietInterval <= 0 || c.Replay.QuietTimeout < c.Replay.QuietInterval {
		return fmt.Errorf("quiescence settings are invalid: interval %s, timeout %s", c.Replay.QuietInterval, c.Replay.QuietTimeout)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
