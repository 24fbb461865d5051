// Package config loads client and server settings from a YAML file with
// environment overrides, and persists the client's last active session.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/insight-sync/internal/store"
)

// Backends.
const (
	BackendLocal = "local"
	BackendHTTP  = "http"
)

// Config holds every setting the CLI needs.
type Config struct {
	Backend    string        `yaml:"backend"`
	DBPath     string        `yaml:"db_path"`
	BaseURL    string        `yaml:"base_url"`
	ListenAddr string        `yaml:"listen_addr"`
	SessionTTL string        `yaml:"session_ttl"`
	Currency   string        `yaml:"currency"`
	Timeout    time.Duration `yaml:"timeout"`
	Log        LogConfig     `yaml:"log"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Dir returns the directory holding config, state and the default database.
func Dir() string {
	if env := os.Getenv("INSIGHT_SYNC_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".insight-sync")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Backend:    BackendLocal,
		DBPath:     filepath.Join(Dir(), "insights.db"),
		BaseURL:    "http://127.0.0.1:8088",
		ListenAddr: "127.0.0.1:8088",
		SessionTTL: "30d",
		Currency:   "CHF",
		Timeout:    15 * time.Second,
		Log:        LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("INSIGHT_SYNC_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("INSIGHT_SYNC_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("INSIGHT_SYNC_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("INSIGHT_SYNC_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, BackendHTTP:
	default:
		return fmt.Errorf("invalid backend %q (valid: local, http)", c.Backend)
	}
	if c.SessionTTL != "" {
		if _, err := store.ParseTTL(c.SessionTTL); err != nil {
			return fmt.Errorf("invalid session_ttl: %w", err)
		}
	}
	return nil
}

// TTL returns the parsed session lifetime, zero meaning unlimited.
func (c *Config) TTL() time.Duration {
	if c.SessionTTL == "" {
		return 0
	}
	d, _ := store.ParseTTL(c.SessionTTL)
	return d
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	return writeYAML(path, c)
}

func writeYAML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
