// Package config provides configuration loading and management for Planwerk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Planwerk configuration
type Config struct {
	HTTP  HTTPConfig  `yaml:"http"`
	NATS  NATSConfig  `yaml:"nats"`
	Check CheckConfig `yaml:"check"`
	Rules RulesConfig `yaml:"rules"`
}

// HTTPConfig configures the HTTP API server
type HTTPConfig struct {
	// Addr is the listen address (default: :8080)
	Addr string `yaml:"addr"`
	// MetricsAddr is the Prometheus listen address (empty = disabled)
	MetricsAddr string `yaml:"metrics_addr"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = event publishing disabled)
	URL string `yaml:"url"`
}

// CheckConfig configures check execution
type CheckConfig struct {
	// EvaluatorTimeout bounds a single expert or coordination run
	EvaluatorTimeout time.Duration `yaml:"evaluator_timeout"`
	// CorroborationBonus is added when independent evaluators agree (0-1)
	CorroborationBonus float64 `yaml:"corroboration_bonus"`
	// InsufficientDataConfidence is assigned to insufficient-data findings (0-1)
	InsufficientDataConfidence float64 `yaml:"insufficient_data_confidence"`
}

// RulesConfig configures the rule catalog
type RulesConfig struct {
	// Path is a YAML rules file overriding the built-in catalog (empty = built-in)
	Path string `yaml:"path"`
	// Watch reloads the rules file on change
	Watch bool `yaml:"watch"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:        ":8080",
			MetricsAddr: "",
		},
		NATS: NATSConfig{
			URL: "",
		},
		Check: CheckConfig{
			EvaluatorTimeout:           5 * time.Second,
			CorroborationBonus:         0.05,
			InsufficientDataConfidence: 0.3,
		},
		Rules: RulesConfig{
			Path:  "", // Built-in catalog
			Watch: false,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Check.EvaluatorTimeout <= 0 {
		return fmt.Errorf("check.evaluator_timeout must be positive")
	}
	if c.Check.CorroborationBonus < 0 || c.Check.CorroborationBonus > 1 {
		return fmt.Errorf("check.corroboration_bonus must be between 0 and 1")
	}
	if c.Check.InsufficientDataConfidence < 0 || c.Check.InsufficientDataConfidence > 1 {
		return fmt.Errorf("check.insufficient_data_confidence must be between 0 and 1")
	}
	if c.Rules.Watch && c.Rules.Path == "" {
		return fmt.Errorf("rules.watch requires rules.path")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
