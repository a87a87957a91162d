package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting for one batch invocation. Constructed once at
// startup and passed by reference; nothing in the core reads the
// environment directly.
type Config struct {
	APIKey            string
	WorkflowID        string
	BaseURL           string
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	Timeout           time.Duration
	MetricsPort       int // 0 = disabled
}

// FromEnv reads configuration from environment variables, loading a .env
// file first if one exists.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIKey:     os.Getenv("DIFY_API_KEY"),
		WorkflowID: os.Getenv("DIFY_WORKFLOW_ID"),
		BaseURL:    os.Getenv("DIFY_API_BASE_URL"),
	}

	var err error
	if cfg.MaxRetries, err = envInt("MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.InitialRetryDelay, err = envSeconds("INITIAL_RETRY_DELAY", 1*time.Second); err != nil {
		return nil, err
	}
	if cfg.MaxRetryDelay, err = envSeconds("MAX_RETRY_DELAY", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = envSeconds("TIMEOUT", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.MetricsPort, err = envInt("DIFY_METRICS_PORT", 0); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast with a descriptive error before any row is processed.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DIFY_API_KEY is required")
	}
	if c.WorkflowID == "" {
		return fmt.Errorf("DIFY_WORKFLOW_ID is required")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must be >= 0, got %d", c.MaxRetries)
	}
	if c.InitialRetryDelay <= 0 {
		return fmt.Errorf("INITIAL_RETRY_DELAY must be positive, got %v", c.InitialRetryDelay)
	}
	if c.MaxRetryDelay < c.InitialRetryDelay {
		return fmt.Errorf("MAX_RETRY_DELAY must be >= INITIAL_RETRY_DELAY, got %v < %v",
			c.MaxRetryDelay, c.InitialRetryDelay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("TIMEOUT must be positive, got %v", c.Timeout)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.dify.ai/v1"
	}
	if c.InitialRetryDelay == 0 {
		c.InitialRetryDelay = 1 * time.Second
	}
	if c.MaxRetryDelay == 0 {
		c.MaxRetryDelay = 60 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 300 * time.Second
	}
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func envSeconds(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number of seconds, got %q", key, v)
	}
	return time.Duration(f * float64(time.Second)), nil
}
