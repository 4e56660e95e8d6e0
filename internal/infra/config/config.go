// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Playback PlaybackConfig `yaml:"playback"`
	Backend  BackendConfig  `yaml:"backend"`
	Lyrics   LyricsConfig   `yaml:"lyrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PlaybackConfig represents playback engine configuration.
type PlaybackConfig struct {
	PollIntervalMs       int   `yaml:"poll_interval_ms" default:"250" validate:"gte=50,lte=2000"`
	LoadTimeoutSec       int   `yaml:"load_timeout_sec" default:"10" validate:"gte=1,lte=120"`
	DriftToleranceMs     int   `yaml:"drift_tolerance_ms" default:"1000" validate:"gte=100,lte=10000"`
	PollFailureThreshold int   `yaml:"poll_failure_threshold" default:"5" validate:"gte=1,lte=100"`
	Autoplay             *bool `yaml:"autoplay" default:"true"`
	Volume               int   `yaml:"volume" default:"80" validate:"gte=0,lte=100"`
}

// PollInterval returns the poll cadence as a duration.
func (c *PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// LoadTimeout returns the load bound as a duration.
func (c *PlaybackConfig) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutSec) * time.Second
}

// DriftTolerance returns the seek drift tolerance as a duration.
func (c *PlaybackConfig) DriftTolerance() time.Duration {
	return time.Duration(c.DriftToleranceMs) * time.Millisecond
}

// BackendConfig represents the media backend configuration.
type BackendConfig struct {
	Type     string         `yaml:"type" default:"beep" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// LyricsConfig represents lyrics resolution configuration.
type LyricsConfig struct {
	Enabled   *bool            `yaml:"enabled" default:"true"`
	Providers []ProviderConfig `yaml:"providers" validate:"dive"`
}

// ProviderConfig represents a single lyrics provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" default:"lyrics"`
	Settings    map[string]any `yaml:"settings"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Output string `yaml:"output" default:"stderr"`
	Level  string `yaml:"level" default:"info"`
	File   string `yaml:"file"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when
// no config file exists.
func Default() (*Config, error) {
	cfg := &Config{}
	cfg.overrideFromEnv()
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if len(cfg.Lyrics.Providers) == 0 {
		cfg.Lyrics.Providers = []ProviderConfig{
			{Type: "lrclib", DisplayName: "LRCLIB", Settings: map[string]any{"search_fallback": true}},
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("FLACTERM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FLACTERM_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("LRCLIB_BASE_URL"); v != "" {
		for i := range c.Lyrics.Providers {
			if c.Lyrics.Providers[i].Type == "lrclib" {
				if c.Lyrics.Providers[i].Settings == nil {
					c.Lyrics.Providers[i].Settings = map[string]any{}
				}
				c.Lyrics.Providers[i].Settings["base_url"] = v
			}
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
