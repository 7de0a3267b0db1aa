// Package config loads the CLI profile: a YAML file under the user's config
// directory with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appDir = "personastudio"

type Profile struct {
	APIBaseURL       string        `yaml:"api_base_url" env:"API_BASE_URL"`
	APIEditPath      string        `yaml:"api_edit_path" env:"API_EDIT_PATH"`
	APITimeout       time.Duration `yaml:"api_timeout" env:"API_TIMEOUT"`
	Region           string        `yaml:"aws_region" env:"AWS_REGION"`
	UserPoolClientID string        `yaml:"user_pool_client_id" env:"AWS_USER_POOL_CLIENT_ID"`
	SessionFile      string        `yaml:"session_file" env:"PERSONASTUDIO_SESSION_FILE"`
	OutputDir        string        `yaml:"output_dir" env:"PERSONASTUDIO_OUTPUT_DIR"`
	LLMModel         string        `yaml:"llm_model" env:"PERSONASTUDIO_LLM_MODEL"`
}

// DefaultPath is $XDG_CONFIG_HOME/personastudio/config.yaml or its platform
// equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate config dir: %w", err)
	}
	return filepath.Join(dir, appDir, "config.yaml"), nil
}

func defaults() Profile {
	return Profile{
		APIBaseURL:  "http://localhost:5000",
		APIEditPath: "/api/image/flux",
		APITimeout:  120 * time.Second,
		Region:      "us-east-1",
		OutputDir:   ".",
		LLMModel:    "claude",
	}
}

// Load reads the profile at path (DefaultPath when empty). A missing file is
// not an error. Variables from .env files and the process environment win over
// the file.
func Load(path string) (*Profile, error) {
	_ = godotenv.Load(".env", ".env.local")

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	prof := defaults()
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &prof); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := env.Parse(&prof); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	prof.APIBaseURL = strings.TrimRight(strings.TrimSpace(prof.APIBaseURL), "/")
	if prof.SessionFile == "" {
		prof.SessionFile = filepath.Join(filepath.Dir(path), "session.yaml")
	}
	if prof.APITimeout <= 0 {
		prof.APITimeout = 120 * time.Second
	}
	return &prof, nil
}

// Save writes the profile to path, creating the directory if needed.
func (p *Profile) Save(path string) error {
	raw, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: ensure dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
