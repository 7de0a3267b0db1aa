package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config represents gateway configuration loaded from environment variables.
type Config struct {
	AppEnv             string        `env:"APP_ENV" envDefault:"development"`
	LogLevel           string        `env:"LOG_LEVEL"`
	Port               string        `env:"PORT" envDefault:"8080"`
	APIBaseURL         string        `env:"API_BASE_URL" envDefault:"http://localhost:5000"`
	APIEditPath        string        `env:"API_EDIT_PATH" envDefault:"/api/image/flux"`
	APITimeout         time.Duration `env:"API_TIMEOUT" envDefault:"120s"`
	AWSRegion          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	UserPoolID         string        `env:"AWS_USER_POOL_ID"`
	UserPoolClientID   string        `env:"AWS_USER_POOL_CLIENT_ID"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	JudgeEmails        []string      `env:"JUDGE_EMAILS" envSeparator:"," envDefault:"genaihackathon2025@impetus.com,testing@devpost.com"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	HTTPReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"150s"`
	HTTPIdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	RateLimitPerMin    int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	StudioRunTimeout   time.Duration `env:"STUDIO_RUN_TIMEOUT" envDefault:"5m"`
	StudioSessionTTL   time.Duration `env:"STUDIO_SESSION_TTL" envDefault:"2h"`
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.JudgeEmails = compact(cfg.JudgeEmails)
	cfg.CORSAllowedOrigins = compact(cfg.CORSAllowedOrigins)

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL is required")
	}
	if strings.TrimSpace(cfg.UserPoolID) == "" {
		return nil, fmt.Errorf("AWS_USER_POOL_ID is required")
	}
	if strings.TrimSpace(cfg.UserPoolClientID) == "" {
		return nil, fmt.Errorf("AWS_USER_POOL_CLIENT_ID is required")
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 60
	}
	return cfg, nil
}

// HasDatabase reports whether a Postgres connection string was configured.
func (c *Config) HasDatabase() bool {
	return c != nil && strings.TrimSpace(c.DatabaseURL) != ""
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
