package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsYAMLAndAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
api:
  base_url: https://quiz.example.com/api
  max_retries: 5
scoring:
  default_passing_percentage: 80
redis:
  addr: localhost:6379
  ttl: 2m
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("QUIZ_REDIS_ADDR", "redis:6380")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "https://quiz.example.com/api" || cfg.API.MaxRetries != 5 {
		t.Fatalf("unexpected api config: %+v", cfg.API)
	}
	if cfg.Scoring.DefaultPassingPercentage != 80 {
		t.Fatalf("expected passing 80, got %d", cfg.Scoring.DefaultPassingPercentage)
	}
	if cfg.Redis.Addr != "redis:6380" {
		t.Fatalf("expected env override for redis addr, got %q", cfg.Redis.Addr)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected env override for port, got %q", cfg.Server.Port)
	}
	if got := TTLDuration(cfg.Redis.TTL, time.Minute); got != 2*time.Minute {
		t.Fatalf("expected 2m ttl, got %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("QUIZ_API_URL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scoring.DefaultPassingPercentage != 70 {
		t.Fatalf("expected default passing 70, got %d", cfg.Scoring.DefaultPassingPercentage)
	}
	if cfg.API.BaseURL == "" || cfg.Auth.TokenFile == "" || cfg.Server.Port != "8080" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadKeepsExplicitZeros(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("api:\n  max_retries: 0\nscoring:\n  default_passing_percentage: 0\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.MaxRetries != 0 {
		t.Fatalf("expected retries disabled, got %d", cfg.API.MaxRetries)
	}
	if cfg.Scoring.DefaultPassingPercentage != 0 {
		t.Fatalf("expected passing 0, got %d", cfg.Scoring.DefaultPassingPercentage)
	}
	if cfg.API.Burst != 5 {
		t.Fatalf("expected default burst 5, got %d", cfg.API.Burst)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("scoring:\n  default_passing_percentage: 120\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected out of range passing percentage to fail")
	}

	t.Setenv("PORT", "http")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected non-numeric PORT to fail")
	}
}

func TestTTLDurationFallsBack(t *testing.T) {
	if got := TTLDuration("", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("soon", time.Second); got != time.Second {
		t.Fatalf("expected fallback for garbage, got %v", got)
	}
}
