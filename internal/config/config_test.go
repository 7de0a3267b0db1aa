package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"API_BASE_URL", "API_EDIT_PATH", "API_TIMEOUT", "AWS_REGION", "AWS_USER_POOL_CLIENT_ID",
		"PERSONASTUDIO_SESSION_FILE", "PERSONASTUDIO_OUTPUT_DIR", "PERSONASTUDIO_LLM_MODEL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := defaults()
	want.SessionFile = filepath.Join(filepath.Dir(path), "session.yaml")
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	file := []byte("api_base_url: https://api.example.com/\napi_timeout: 30s\nuser_pool_client_id: from-file\noutput_dir: out\n")
	if err := os.WriteFile(path, file, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("AWS_USER_POOL_CLIENT_ID", "from-env")

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.APIBaseURL != "https://api.example.com" {
		t.Fatalf("APIBaseURL = %q", got.APIBaseURL)
	}
	if got.APITimeout != 30*time.Second {
		t.Fatalf("APITimeout = %v, want 30s", got.APITimeout)
	}
	if got.UserPoolClientID != "from-env" {
		t.Fatalf("UserPoolClientID = %q, want from-env", got.UserPoolClientID)
	}
	if got.OutputDir != "out" || got.Region != "us-east-1" {
		t.Fatalf("profile = %+v", got)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api_timeout: [nope"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	prof := defaults()
	prof.UserPoolClientID = "client"
	prof.SessionFile = "/tmp/s.yaml"
	if err := prof.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(&prof, got); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}
}
