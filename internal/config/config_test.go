package config

import (
	"testing"
	"time"

	"github.com/debuck1718/smartstudent/internal/api"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != "127.0.0.1:8787" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.RefreshInterval != 6*time.Hour {
		t.Errorf("RefreshInterval = %v, want 6h", cfg.RefreshInterval)
	}
	if cfg.FeedbackInterval != 15*time.Second {
		t.Errorf("FeedbackInterval = %v, want 15s", cfg.FeedbackInterval)
	}
	if cfg.OutboxConcurrency != 4 {
		t.Errorf("OutboxConcurrency = %d", cfg.OutboxConcurrency)
	}
	if got := cfg.BaseURL(); got != api.LocalBaseURL {
		t.Errorf("BaseURL = %q, want %q", got, api.LocalBaseURL)
	}
	if got := cfg.Origin(); got != api.LocalBaseURL {
		t.Errorf("Origin = %q", got)
	}
	if got := cfg.AgentURL(); got != "ws://127.0.0.1:8787/agent/ws" {
		t.Errorf("AgentURL = %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SMARTSTUDENT_API_HOST", "smartstudent.app")
	t.Setenv("SMARTSTUDENT_LOG_LEVEL", "debug")
	t.Setenv("SMARTSTUDENT_REFRESH_INTERVAL", "1h")
	t.Setenv("SMARTSTUDENT_OUTBOX_PASSPHRASE", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.BaseURL(); got != api.ProductionBaseURL {
		t.Errorf("BaseURL = %q, want %q", got, api.ProductionBaseURL)
	}
	if cfg.LogLevel != "debug" || cfg.RefreshInterval != time.Hour || cfg.OutboxPassphrase != "hunter2" {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("SMARTSTUDENT_API_URL", "http://127.0.0.1:9999")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.BaseURL(); got != "http://127.0.0.1:9999" {
		t.Errorf("BaseURL override = %q", got)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"SMARTSTUDENT_API_URL":            "not a url",
		"SMARTSTUDENT_OUTBOX_CONCURRENCY": "0",
		"SMARTSTUDENT_REFRESH_INTERVAL":   "soon",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%q: expected error", k, v)
			}
		})
	}
}
