// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevJWTSecret signs tokens when JWT_SECRET is unset outside production.
const DevJWTSecret = "familyfunds-dev-secret-change-me"

// Config holds every setting the server reads at startup.
type Config struct {
	Env    string
	Port   int
	DBPath string

	JWTSecret string
	TokenTTL  time.Duration

	InviteTTL               time.Duration
	InviteRequireEmailMatch bool
	AppBaseURL              string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	AllowedOrigin string
}

// Production reports whether APP_ENV is "production".
func (c Config) Production() bool {
	return c.Env == "production"
}

// UsingDevSecret reports whether tokens are signed with DevJWTSecret.
func (c Config) UsingDevSecret() bool {
	return c.JWTSecret == DevJWTSecret
}

// MailEnabled reports whether an SMTP relay is configured.
func (c Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// Load reads the configuration. Malformed values are reported together.
func Load() (Config, error) {
	var errs []error

	intVar := func(key string, fallback int) int {
		raw := getEnv(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 65535 {
			errs = append(errs, fmt.Errorf("%s: invalid port %q", key, raw))
			return fallback
		}
		return n
	}
	durationVar := func(key string, fallback time.Duration) time.Duration {
		raw := getEnv(key, "")
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return fallback
		}
		return d
	}
	boolVar := func(key string, fallback bool) bool {
		raw := getEnv(key, "")
		if raw == "" {
			return fallback
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
			return fallback
		}
		return b
	}

	cfg := Config{
		Env:    strings.ToLower(getEnv("APP_ENV", "development")),
		Port:   intVar("PORT", 8080),
		DBPath: getEnv("DB_PATH", "./data/familyfunds.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		TokenTTL:  durationVar("TOKEN_TTL", 24*time.Hour),

		InviteTTL:               durationVar("INVITE_TTL", 7*24*time.Hour),
		InviteRequireEmailMatch: boolVar("INVITE_REQUIRE_EMAIL_MATCH", false),
		AppBaseURL:              strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     intVar("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@familyfunds.local"),

		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),
	}

	if cfg.JWTSecret == "" {
		if cfg.Production() {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
		cfg.JWTSecret = DevJWTSecret
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
