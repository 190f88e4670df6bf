package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.hcl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.hcl"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.MaxArticlesPerSource != 20 {
		t.Errorf("MaxArticlesPerSource = %d, want 20", cfg.MaxArticlesPerSource)
	}
	if cfg.MaxRetries != 3 || cfg.RetryDelay != time.Second || cfg.MaxRetryDelay != 30*time.Second {
		t.Errorf("unexpected retry defaults: %d %v %v", cfg.MaxRetries, cfg.RetryDelay, cfg.MaxRetryDelay)
	}
	if cfg.Workers != 1 || cfg.MinBodyLength != 50 {
		t.Errorf("unexpected defaults: workers=%d min_body_length=%d", cfg.Workers, cfg.MinBodyLength)
	}
	if cfg.UseAI {
		t.Error("use_ai must be off by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
database_dsn = "postgres://u:p@db:5432/news?sslmode=disable"
sources = ["BlockBeats", "Jinse"]
keywords = ["BTC", "监管"]
max_articles_per_source = 5
days_filter = 3
request_timeout = "5s"
`)

	t.Setenv("CNS_WORKERS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseDSN != "postgres://u:p@db:5432/news?sslmode=disable" {
		t.Errorf("unexpected dsn %q", cfg.DatabaseDSN)
	}
	if !reflect.DeepEqual(cfg.Sources, []string{"BlockBeats", "Jinse"}) {
		t.Errorf("unexpected sources %v", cfg.Sources)
	}
	if !reflect.DeepEqual(cfg.Keywords, []string{"BTC", "监管"}) {
		t.Errorf("unexpected keywords %v", cfg.Keywords)
	}
	if cfg.MaxArticlesPerSource != 5 || cfg.DaysFilter != 3 {
		t.Errorf("unexpected limits: %d %d", cfg.MaxArticlesPerSource, cfg.DaysFilter)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if cfg.Workers != 3 {
		t.Errorf("env must override workers, got %d", cfg.Workers)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		DatabaseDSN:    "postgres://localhost/db",
		Workers:        1,
		RequestTimeout: time.Second,
		RetryDelay:     time.Second,
		MaxRetryDelay:  time.Second,
		MinBodyLength:  50,
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative cap", func(c *Config) { c.MaxArticlesPerSource = -1 }, "max_articles_per_source"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"ai without key", func(c *Config) { c.UseAI = true }, "openai_key"},
		{"bot without channel", func(c *Config) { c.TelegramBotToken = "token" }, "telegram_channel_id"},
		{"retry delays", func(c *Config) { c.MaxRetryDelay = time.Millisecond }, "retry_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
