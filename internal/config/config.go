// Package config loads dosewatch settings from defaults, an optional YAML
// file and DOSEWATCH_* environment variables, in increasing precedence.
// Command-line flags are applied on top by the cli package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dosewatch/internal/store"
)

// DefaultPath is read when no --config flag is given, if it exists.
const DefaultPath = "dosewatch.yaml"

// Config is the top-level configuration structure.
type Config struct {
	// DataDir holds the persisted collections; created on first use.
	DataDir string `yaml:"data_dir"`

	// Backend is "json" or "sqlite".
	Backend string `yaml:"backend"`

	// TickInterval is how often the scheduler checks the clock.
	TickInterval time.Duration `yaml:"tick_interval"`

	// ResponseTimeout records an unanswered prompt as missed after this
	// long. Zero waits indefinitely.
	ResponseTimeout time.Duration `yaml:"response_timeout"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// HTTPAddr is the listen address of the serve command.
	HTTPAddr string `yaml:"http_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:      "data",
		Backend:      string(store.BackendJSON),
		TickInterval: time.Second,
		LogLevel:     "info",
		HTTPAddr:     ":8080",
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path tries DefaultPath and silently skips it when absent; an
// explicit path that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DOSEWATCH_DATA_DIR"); ok && v != "" {
		c.DataDir = v
	}
	if v, ok := lookup("DOSEWATCH_BACKEND"); ok && v != "" {
		c.Backend = v
	}
	if v, ok := lookup("DOSEWATCH_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup("DOSEWATCH_HTTP_ADDR"); ok && v != "" {
		c.HTTPAddr = v
	}
	if v, ok := lookup("DOSEWATCH_TICK"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DOSEWATCH_TICK: %w", err)
		}
		c.TickInterval = d
	}
	if v, ok := lookup("DOSEWATCH_RESPONSE_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DOSEWATCH_RESPONSE_TIMEOUT: %w", err)
		}
		c.ResponseTimeout = d
	}
	return nil
}

// Validate checks field ranges and enumerations.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: data_dir cannot be empty")
	}
	if _, err := store.ParseBackend(c.Backend); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.TickInterval <= 0 || c.TickInterval > time.Minute {
		return fmt.Errorf("config: tick_interval %s must be in (0, 1m]", c.TickInterval)
	}
	if c.ResponseTimeout < 0 {
		return fmt.Errorf("config: response_timeout %s cannot be negative", c.ResponseTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// StoreBackend returns the parsed backend. Validate must have passed.
func (c Config) StoreBackend() store.Backend {
	b, _ := store.ParseBackend(c.Backend)
	return b
}
