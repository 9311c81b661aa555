// Package config loads and saves global crewfloor settings from
// ~/.crewfloor/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultRuntime        = "claude-code"
	defaultStallInterval  = 3
	defaultStallThreshold = 15
	defaultMirrorHost     = "127.0.0.1"
	defaultMirrorPort     = 8571
)

// Config holds user-tunable global settings.
type Config struct {
	// DefaultRuntime is the agent engine used when a plan has no
	// recommendation ("claude-code" or "codex").
	DefaultRuntime string `yaml:"default_runtime"`

	// ProjectDir is the working directory agent processes run in.
	// Empty means the current directory at launch.
	ProjectDir string `yaml:"project_dir,omitempty"`

	// Stall detection tuning, in seconds.
	StallIntervalSec  int `yaml:"stall_interval_sec"`
	StallThresholdSec int `yaml:"stall_threshold_sec"`

	Mirror MirrorConfig `yaml:"mirror"`

	// HistoryDB overrides the session history database location.
	HistoryDB string `yaml:"history_db,omitempty"`
}

// MirrorConfig configures the read-only floor mirror server.
type MirrorConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	MDNS bool   `yaml:"mdns"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		DefaultRuntime:    defaultRuntime,
		StallIntervalSec:  defaultStallInterval,
		StallThresholdSec: defaultStallThreshold,
		Mirror: MirrorConfig{
			Host: defaultMirrorHost,
			Port: defaultMirrorPort,
		},
	}
}

// Dir returns the global crewfloor directory (~/.crewfloor), creating it if needed.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	dir := filepath.Join(home, ".crewfloor")
	os.MkdirAll(dir, 0755)
	return dir
}

// Path returns the config file path.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file, applying defaults for absent fields.
// A missing file is not an error; defaults are returned.
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads a config file from an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes the config to its default location.
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to an explicit path.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StallInterval returns the stall detection tick interval.
func (c *Config) StallInterval() time.Duration {
	if c.StallIntervalSec <= 0 {
		return defaultStallInterval * time.Second
	}
	return time.Duration(c.StallIntervalSec) * time.Second
}

// StallThreshold returns the quiet duration after which a session is
// considered stalled.
func (c *Config) StallThreshold() time.Duration {
	if c.StallThresholdSec <= 0 {
		return defaultStallThreshold * time.Second
	}
	return time.Duration(c.StallThresholdSec) * time.Second
}

// HistoryDBPath returns the session history database path.
func (c *Config) HistoryDBPath() string {
	if strings.TrimSpace(c.HistoryDB) != "" {
		return c.HistoryDB
	}
	return filepath.Join(Dir(), "history.db")
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.DefaultRuntime) == "" {
		c.DefaultRuntime = defaultRuntime
	}
	if strings.TrimSpace(c.Mirror.Host) == "" {
		c.Mirror.Host = defaultMirrorHost
	}
	if c.Mirror.Port <= 0 {
		c.Mirror.Port = defaultMirrorPort
	}
}
