package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DIFY_API_KEY", "DIFY_WORKFLOW_ID", "DIFY_API_BASE_URL",
		"MAX_RETRIES", "INITIAL_RETRY_DELAY", "MAX_RETRY_DELAY",
		"TIMEOUT", "DIFY_METRICS_PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIFY_API_KEY", "test-api-key")
	t.Setenv("DIFY_WORKFLOW_ID", "test-workflow-id")
	t.Setenv("MAX_RETRIES", "5")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.APIKey != "test-api-key" {
		t.Errorf("got APIKey %q", cfg.APIKey)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("got MaxRetries %d, want 5", cfg.MaxRetries)
	}
	if cfg.BaseURL != "https://api.dify.ai/v1" {
		t.Errorf("got BaseURL %q, want default", cfg.BaseURL)
	}
	if cfg.InitialRetryDelay != 1*time.Second || cfg.MaxRetryDelay != 60*time.Second {
		t.Errorf("got delays %v/%v, want 1s/60s defaults", cfg.InitialRetryDelay, cfg.MaxRetryDelay)
	}
	if cfg.Timeout != 300*time.Second {
		t.Errorf("got Timeout %v, want 5m default", cfg.Timeout)
	}
}

func TestFromEnvFractionalDelay(t *testing.T) {
	clearEnv(t)
	t.Setenv("DIFY_API_KEY", "k")
	t.Setenv("DIFY_WORKFLOW_ID", "w")
	t.Setenv("INITIAL_RETRY_DELAY", "0.5")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.InitialRetryDelay != 500*time.Millisecond {
		t.Errorf("got %v, want 500ms", cfg.InitialRetryDelay)
	}
}

func TestFromEnvMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"missing api key", "DIFY_WORKFLOW_ID", "w", "DIFY_API_KEY is required"},
		{"missing workflow id", "DIFY_API_KEY", "k", "DIFY_WORKFLOW_ID is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric retries", "MAX_RETRIES", "many"},
		{"negative retries", "MAX_RETRIES", "-1"},
		{"non-numeric timeout", "TIMEOUT", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DIFY_API_KEY", "k")
			t.Setenv("DIFY_WORKFLOW_ID", "w")
			t.Setenv(tt.key, tt.value)

			if _, err := FromEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_DIFY_KEY", "secret-from-env")

	configContent := `
api_key: ${TEST_DIFY_KEY}
workflow_id: wf-123
max_retries: 2
initial_retry_delay: 2s
max_retry_delay: 30s
timeout: 1m
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIKey != "secret-from-env" {
		t.Errorf("got APIKey %q, want env-expanded value", cfg.APIKey)
	}
	if cfg.WorkflowID != "wf-123" || cfg.MaxRetries != 2 {
		t.Errorf("got %+v", cfg)
	}
	if cfg.InitialRetryDelay != 2*time.Second || cfg.Timeout != time.Minute {
		t.Errorf("got delays %v timeout %v", cfg.InitialRetryDelay, cfg.Timeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			APIKey:            "k",
			WorkflowID:        "w",
			MaxRetries:        3,
			InitialRetryDelay: time.Second,
			MaxRetryDelay:     time.Minute,
			Timeout:           time.Minute,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"zero retries ok", func(c *Config) { c.MaxRetries = 0 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -2 }, false},
		{"max delay below initial", func(c *Config) { c.MaxRetryDelay = time.Millisecond }, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
