// Package config loads cartrules settings and item alias files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/blackwell-systems/cartrules/internal/apriori"
)

// Dir returns the cartrules config directory: $XDG_CONFIG_HOME/cartrules,
// or ~/.config/cartrules when XDG_CONFIG_HOME is unset.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "cartrules"), nil
}

// Values used when config.yaml omits a setting.
const (
	DefaultMinSupport    = 0.1
	DefaultMinConfidence = 0.1
	DefaultRetentionDays = 90
)

// Config holds user settings read from config.yaml. Command-line flags
// override these values.
type Config struct {
	MinSupport    float64 `yaml:"min_support"`
	MinConfidence float64 `yaml:"min_confidence"`
	MinLift       float64 `yaml:"min_lift"`
	Workers       int     `yaml:"workers"`
	MaxLen        int     `yaml:"max_len"`
	DB            string  `yaml:"db"`
	RunDir        string  `yaml:"run_dir"`
	RetentionDays int     `yaml:"retention_days"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		MinSupport:    DefaultMinSupport,
		MinConfidence: DefaultMinConfidence,
		RetentionDays: DefaultRetentionDays,
	}
}

// DefaultPath returns {Dir()}/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the YAML config at path on top of the defaults. A missing file
// yields the defaults without an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks thresholds and counts.
func (c *Config) Validate() error {
	if err := apriori.ValidateThreshold("min_support", c.MinSupport); err != nil {
		return err
	}
	if err := apriori.ValidateThreshold("min_confidence", c.MinConfidence); err != nil {
		return err
	}
	if c.MinLift < 0 {
		return fmt.Errorf("min_lift must not be negative, got %v", c.MinLift)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.MaxLen < 0 {
		return fmt.Errorf("max_len must not be negative, got %d", c.MaxLen)
	}
	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative, got %d", c.RetentionDays)
	}
	return nil
}
