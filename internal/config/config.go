package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the core's tunables. Defaults match the cadences the
// synchronization loops were designed around; overriding them is mostly
// useful for debugging.
type Config struct {
	Timing struct {
		CommandTickMs    int `mapstructure:"command_tick_ms"`
		PollMs           int `mapstructure:"poll_ms"`
		ReconcileMs      int `mapstructure:"reconcile_ms"`
		ArtRetryMs       int `mapstructure:"art_retry_ms"`
		ChoicesRefreshMs int `mapstructure:"choices_refresh_ms"`
	} `mapstructure:"timing"`
	History struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"history"`
}

// CommandTick is the dispatcher loop interval
func (c *Config) CommandTick() time.Duration {
	return time.Duration(c.Timing.CommandTickMs) * time.Millisecond
}

// PollInterval is the state poller interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Timing.PollMs) * time.Millisecond
}

// ReconcileInterval is the snapshot drain interval
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Timing.ReconcileMs) * time.Millisecond
}

// ArtRetryInterval bounds how often a failed art fetch is re-attempted
func (c *Config) ArtRetryInterval() time.Duration {
	return time.Duration(c.Timing.ArtRetryMs) * time.Millisecond
}

// ChoicesRefreshInterval is the player selector refresh interval
func (c *Config) ChoicesRefreshInterval() time.Duration {
	return time.Duration(c.Timing.ChoicesRefreshMs) * time.Millisecond
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timing.command_tick_ms", 100)
	v.SetDefault("timing.poll_ms", 500)
	v.SetDefault("timing.reconcile_ms", 500)
	v.SetDefault("timing.art_retry_ms", 3000)
	v.SetDefault("timing.choices_refresh_ms", 5000)
	v.SetDefault("history.capacity", 50)
}

// Load reads configuration from $XDG_CONFIG_HOME/empress/config.yaml (when
// present) and EMPRESS_* environment variables, over built-in defaults.
func Load(logger *zap.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configHome = filepath.Join(homeDir, ".config")
		}
	}
	if configHome != "" {
		v.AddConfigPath(filepath.Join(configHome, "empress"))
	}

	v.SetEnvPrefix("EMPRESS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	logger.Info("Configuration loaded",
		zap.Int("pollMs", cfg.Timing.PollMs),
		zap.Int("commandTickMs", cfg.Timing.CommandTickMs),
		zap.Int("artRetryMs", cfg.Timing.ArtRetryMs),
		zap.Int("historyCapacity", cfg.History.Capacity))

	return &cfg, nil
}
