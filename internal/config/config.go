// Package config loads bot configuration from an optional YAML file with
// environment variable overrides. The Telegram token is environment-only
// so it never lands in a config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names.
const (
	EnvToken         = "SCRYBOT_TELEGRAM_TOKEN"
	EnvLogLevel      = "SCRYBOT_LOG_LEVEL"
	EnvProviderURL   = "SCRYBOT_PROVIDER_URL"
	EnvWorkers       = "SCRYBOT_WORKERS"
	EnvSessionTTL    = "SCRYBOT_SESSION_TTL"
	EnvTrackCapacity = "SCRYBOT_TRACK_CAPACITY"
)

// Config is the complete bot configuration.
type Config struct {
	// Token is the Telegram bot token. Environment-only.
	Token string `yaml:"-"`

	LogLevel string `yaml:"log_level"`

	Provider ProviderConfig `yaml:"provider"`
	Browse   BrowseConfig   `yaml:"browse"`
	Queue    QueueConfig    `yaml:"queue"`
	Session  SessionConfig  `yaml:"session"`
	Track    TrackConfig    `yaml:"track"`
}

// ProviderConfig configures the card catalog client.
type ProviderConfig struct {
	// BaseURL overrides the catalog endpoint; empty means the default.
	BaseURL string `yaml:"base_url"`
}

// BrowseConfig configures window sizes.
type BrowseConfig struct {
	ListWindow int `yaml:"list_window"`
	ArtsWindow int `yaml:"arts_window"`
}

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers int `yaml:"workers"`
}

// SessionConfig configures session expiry.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// TrackConfig configures the message lifecycle tracker.
type TrackConfig struct {
	Capacity int `yaml:"capacity"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Browse: BrowseConfig{
			ListWindow: 6,
			ArtsWindow: 5,
		},
		Queue: QueueConfig{
			Workers: 4,
		},
		Session: SessionConfig{
			TTL:           2 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Track: TrackConfig{
			Capacity: 500,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty the file must exist), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the bot cannot run with.
func (c Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("telegram token missing: set %s", EnvToken)
	}
	if c.Browse.ListWindow <= 0 || c.Browse.ArtsWindow <= 0 {
		return fmt.Errorf("window sizes must be positive")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session ttl and sweep interval must be positive")
	}
	if c.Track.Capacity <= 0 {
		return fmt.Errorf("track capacity must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvProviderURL); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.Workers = n
		}
	}
	if v := os.Getenv(EnvSessionTTL); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = d
		}
	}
	if v := os.Getenv(EnvTrackCapacity); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Track.Capacity = n
		}
	}
}
