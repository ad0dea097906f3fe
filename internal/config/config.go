// Package config loads application configuration from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// GitHub identifies the automation repository and the credentials used to
// dispatch its workflows.
type GitHub struct {
	Token  string `env:"TOKEN, required"`
	Owner  string `env:"OWNER, required"`
	Repo   string `env:"REPO, required"`
	APIURL string `env:"API_URL"`
}

// Config holds the application configuration loaded from WPDISPATCH_*
// environment variables. It is read once at startup and never mutated.
type Config struct {
	GitHub           GitHub        `env:",prefix=WPDISPATCH_GITHUB_"`
	RateLimitMaxWait time.Duration `env:"WPDISPATCH_RATE_LIMIT_MAX_WAIT, default=1m"`
	ListenAddr       string        `env:"WPDISPATCH_LISTEN_ADDR, default=127.0.0.1:3001"`
	DBPath           string        `env:"WPDISPATCH_DB_PATH, default=wpdispatch.db"`
	WordPressURL     string        `env:"WPDISPATCH_WORDPRESS_URL"`
	LogLevel         string        `env:"WPDISPATCH_LOG_LEVEL, default=info"`
}

// HasWordPress reports whether the WordPress REST proxy is configured.
func (c *Config) HasWordPress() bool {
	return c.WordPressURL != ""
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	// Validated by Load.
	_ = level.UnmarshalText([]byte(c.LogLevel))
	return level
}

// Load reads configuration from the process environment and returns a
// validated Config. WPDISPATCH_GITHUB_TOKEN, WPDISPATCH_GITHUB_OWNER, and
// WPDISPATCH_GITHUB_REPO are required.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate catches values go-envconfig accepts but the application cannot use.
func (c *Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"WPDISPATCH_GITHUB_TOKEN", c.GitHub.Token},
		{"WPDISPATCH_GITHUB_OWNER", c.GitHub.Owner},
		{"WPDISPATCH_GITHUB_REPO", c.GitHub.Repo},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s must not be empty", r.name)
		}
	}

	if c.RateLimitMaxWait < 0 {
		return fmt.Errorf("WPDISPATCH_RATE_LIMIT_MAX_WAIT must not be negative, got %s", c.RateLimitMaxWait)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("WPDISPATCH_LOG_LEVEL has invalid level %q: %w", c.LogLevel, err)
	}

	c.WordPressURL = strings.TrimRight(c.WordPressURL, "/")

	return nil
}
