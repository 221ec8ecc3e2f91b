// Package config loads operator defaults for the launcher.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds operator defaults loaded from ~/.pendulum-launch/config.yaml.
// Command-line flags take precedence over every field.
type Config struct {
	LogDir       string   `yaml:"log_dir"`
	GracePeriod  Duration `yaml:"grace_period"`
	PollInterval Duration `yaml:"poll_interval"`
	MetricsAddr  string   `yaml:"metrics_addr"`
}

// Duration wraps time.Duration for YAML values like "10s" or "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// DefaultPath returns the default config file path: ~/.pendulum-launch/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".pendulum-launch", "config.yaml")
}

// Load reads a YAML config file from path. A missing file, an empty path or
// an empty or all-comment file yields an empty Config and no error.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
