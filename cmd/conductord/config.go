package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the conductord TOML configuration.
type Config struct {
	Mode        string    `toml:"mode"`
	TimeSystem  string    `toml:"time_system"`
	MetricsAddr string    `toml:"metrics_addr"`
	ClockPeriod string    `toml:"clock_period"`
	Log         LogConfig `toml:"log"`
}

// LogConfig overrides the environment-driven logger settings when set.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Mode:        "local-clock",
		TimeSystem:  "utc",
		MetricsAddr: ":9464",
		ClockPeriod: "1s",
	}
}

// LoadConfig reads and strictly decodes a TOML config file, applying
// defaults for unset fields. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}

	if _, err := cfg.clockPeriod(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) clockPeriod() (time.Duration, error) {
	if c.ClockPeriod == "" {
		return time.Second, nil
	}
	d, err := time.ParseDuration(c.ClockPeriod)
	if err != nil {
		return 0, fmt.Errorf("parse clock_period: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("clock_period must be positive, got %s", c.ClockPeriod)
	}
	return d, nil
}
