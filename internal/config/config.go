package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds all environment-driven settings. The core API base URL is
// loaded here once and injected explicitly into the client constructor;
// nothing reads it from ambient process state at call time.
type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	CoreAPIURL string `env:"CORE_API_URL"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days

	AuthAuthorizeURL string `env:"AUTH_AUTHORIZE_URL"`
	AuthTokenURL     string `env:"AUTH_TOKEN_URL"`
	AuthUserInfoURL  string `env:"AUTH_USERINFO_URL"`
	AuthClientID     string `env:"AUTH_CLIENT_ID"`
	AuthClientSecret string `env:"AUTH_CLIENT_SECRET"`
	AuthRedirectURI  string `env:"AUTH_REDIRECT_URI"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	cfg.CoreAPIURL = strings.TrimRight(cfg.CoreAPIURL, "/")

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"CORE_API_URL":       cfg.CoreAPIURL,
		"SESSION_SECRET":     cfg.SessionSecret,
		"AUTH_AUTHORIZE_URL": cfg.AuthAuthorizeURL,
		"AUTH_TOKEN_URL":     cfg.AuthTokenURL,
		"AUTH_USERINFO_URL":  cfg.AuthUserInfoURL,
		"AUTH_CLIENT_ID":     cfg.AuthClientID,
		"AUTH_CLIENT_SECRET": cfg.AuthClientSecret,
		"AUTH_REDIRECT_URI":  cfg.AuthRedirectURI,
	}
	var missing []string
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	for name, raw := range map[string]string{
		"CORE_API_URL":       cfg.CoreAPIURL,
		"AUTH_AUTHORIZE_URL": cfg.AuthAuthorizeURL,
		"AUTH_TOKEN_URL":     cfg.AuthTokenURL,
		"AUTH_USERINFO_URL":  cfg.AuthUserInfoURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if len(cfg.SessionSecret) < 32 {
		return errors.New("SESSION_SECRET must be at least 32 characters")
	}

	return nil
}
