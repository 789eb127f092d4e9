// ABOUTME: Runtime configuration for the playout CLI
// ABOUTME: Merges defaults, an optional YAML file, PLAYOUT_ environment variables and flags via viper
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Backends lists the supported audio backends
var Backends = []string{"malgo", "oto", "null"}

// Config holds all CLI settings
type Config struct {
	Backend     string `mapstructure:"backend"`
	Device      string `mapstructure:"device"`
	LogLevel    string `mapstructure:"log-level"`
	LogFile     string `mapstructure:"log-file"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	BufferMs    int    `mapstructure:"buffer-ms"`
	ReadAheadMs int    `mapstructure:"read-ahead-ms"`
	TUI         bool   `mapstructure:"tui"`
	Priority    bool   `mapstructure:"priority"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", "malgo")
	v.SetDefault("device", "")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "playout.log")
	v.SetDefault("metrics-addr", "")
	v.SetDefault("buffer-ms", 20)
	v.SetDefault("read-ahead-ms", 500)
	v.SetDefault("tui", false)
	v.SetDefault("priority", true)
}

// Load reads configuration into a Config. configFile may be empty, in which
// case playout.yaml is looked up in the working directory and in
// ~/.config/playout; a missing file is not an error.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix("PLAYOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("playout")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "playout"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that settings are usable
func (c *Config) Validate() error {
	var errs []error

	known := false
	for _, b := range Backends {
		if c.Backend == b {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("unknown backend %q (supported: %s)", c.Backend, strings.Join(Backends, ", ")))
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if c.BufferMs < 1 || c.BufferMs > 1000 {
		errs = append(errs, fmt.Errorf("buffer-ms must be between 1 and 1000, got %d", c.BufferMs))
	}
	if c.ReadAheadMs < 0 {
		errs = append(errs, fmt.Errorf("read-ahead-ms must not be negative, got %d", c.ReadAheadMs))
	}

	return errors.Join(errs...)
}

// Level returns the parsed log level
func (c *Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// BufferDuration returns the device buffer duration
func (c *Config) BufferDuration() time.Duration {
	return time.Duration(c.BufferMs) * time.Millisecond
}

// ReadAheadSamples returns the read-ahead capacity for a stream format
func (c *Config) ReadAheadSamples(sampleRate, channels int) int {
	return c.ReadAheadMs * sampleRate / 1000 * channels
}
