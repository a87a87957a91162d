package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// fileConfig is the YAML shape. Durations are strings ("2s", "1m") so the
// file stays readable; max_retries is a pointer to tell an explicit 0 from
// an unset field.
type fileConfig struct {
	APIKey            string `yaml:"api_key"`
	WorkflowID        string `yaml:"workflow_id"`
	BaseURL           string `yaml:"base_url"`
	MaxRetries        *int   `yaml:"max_retries"`
	InitialRetryDelay string `yaml:"initial_retry_delay"`
	MaxRetryDelay     string `yaml:"max_retry_delay"`
	Timeout           string `yaml:"timeout"`
	MetricsPort       int    `yaml:"metrics_port"`
}

// Load reads configuration from a YAML file. Environment variable
// references in the file are expanded before parsing, so secrets can stay
// in the environment. Defaults and validation match FromEnv.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{
		APIKey:      fc.APIKey,
		WorkflowID:  fc.WorkflowID,
		BaseURL:     fc.BaseURL,
		MaxRetries:  3,
		MetricsPort: fc.MetricsPort,
	}
	if fc.MaxRetries != nil {
		cfg.MaxRetries = *fc.MaxRetries
	}
	if cfg.InitialRetryDelay, err = parseDuration("initial_retry_delay", fc.InitialRetryDelay); err != nil {
		return nil, err
	}
	if cfg.MaxRetryDelay, err = parseDuration("max_retry_delay", fc.MaxRetryDelay); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = parseDuration("timeout", fc.Timeout); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseDuration(field, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like \"2s\", got %q", field, v)
	}
	return d, nil
}
