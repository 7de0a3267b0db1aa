package infra

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("AWS_USER_POOL_ID", "us-east-1_pool")
	t.Setenv("AWS_USER_POOL_CLIENT_ID", "client-123")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:5000" {
		t.Fatalf("APIBaseURL = %q, want http://localhost:5000", cfg.APIBaseURL)
	}
	if cfg.StudioRunTimeout != 5*time.Minute {
		t.Fatalf("StudioRunTimeout = %s, want 5m", cfg.StudioRunTimeout)
	}
	if len(cfg.JudgeEmails) != 2 || cfg.JudgeEmails[0] != "genaihackathon2025@impetus.com" {
		t.Fatalf("JudgeEmails mismatch: %#v", cfg.JudgeEmails)
	}
	if cfg.HasDatabase() {
		t.Fatalf("HasDatabase() = true without DATABASE_URL")
	}
}

func TestLoadConfigTrimsBaseURLAndLists(t *testing.T) {
	setRequired(t)
	t.Setenv("API_BASE_URL", "https://api.example.com/ ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.com, ,https://admin.example.com ")
	t.Setenv("DATABASE_URL", "postgres://example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.APIBaseURL != "https://api.example.com" {
		t.Fatalf("APIBaseURL = %q, want https://api.example.com", cfg.APIBaseURL)
	}
	expected := []string{"https://app.example.com", "https://admin.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(expected) {
		t.Fatalf("CORSAllowedOrigins mismatch: got %#v want %#v", cfg.CORSAllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.CORSAllowedOrigins[i] != origin {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], origin)
		}
	}
	if !cfg.HasDatabase() {
		t.Fatalf("HasDatabase() = false with DATABASE_URL set")
	}
}

func TestLoadConfigRequiresUserPool(t *testing.T) {
	t.Setenv("AWS_USER_POOL_ID", "")
	t.Setenv("AWS_USER_POOL_CLIENT_ID", "client-123")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when AWS_USER_POOL_ID is missing")
	}
}
