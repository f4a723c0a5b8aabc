package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes.
const (
	AuthModeHosted     = "hosted"
	AuthModeStandalone = "standalone"
)

type Config struct {
	Port                     string        `mapstructure:"PORT"`
	Env                      string        `mapstructure:"ENV"`
	AuthMode                 string        `mapstructure:"AUTH_MODE"`
	BackendURL               string        `mapstructure:"BACKEND_URL"`
	BackendAPIKey            string        `mapstructure:"BACKEND_API_KEY"`
	BackendServiceKey        string        `mapstructure:"BACKEND_SERVICE_KEY"`
	JWTSecret                string        `mapstructure:"JWT_SECRET"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	DBMaxConns               int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns               int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL                 string        `mapstructure:"REDIS_URL"`
	SessionCookieName        string        `mapstructure:"SESSION_COOKIE_NAME"`
	SessionCookieSecure      bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	SessionTTL               time.Duration `mapstructure:"SESSION_TTL"`
	CORSOrigins              []string      `mapstructure:"CORS_ORIGINS"`
	PasswordResetRedirectURL string        `mapstructure:"PASSWORD_RESET_REDIRECT_URL"`
	OTLPEndpoint             string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure             bool          `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
}

// Load reads configuration from the environment and an optional .env file.
// The backend URL and public API key are mandatory; their absence is a
// startup error the caller must treat as fatal.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", AuthModeHosted)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SESSION_COOKIE_NAME", "portal_sid")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	for _, key := range []string{
		"PORT", "ENV", "AUTH_MODE", "BACKEND_URL", "BACKEND_API_KEY", "BACKEND_SERVICE_KEY",
		"JWT_SECRET", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
		"SESSION_COOKIE_NAME", "SESSION_COOKIE_SECURE", "SESSION_TTL", "CORS_ORIGINS",
		"PASSWORD_RESET_REDIRECT_URL", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil || (len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",")) {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}
	if cfg.BackendAPIKey == "" {
		return nil, fmt.Errorf("BACKEND_API_KEY is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	if cfg.PasswordResetRedirectURL == "" {
		cfg.PasswordResetRedirectURL = cfg.BackendURL + "/reset-password"
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.AuthMode != AuthModeHosted && c.AuthMode != AuthModeStandalone {
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeHosted, AuthModeStandalone, c.AuthMode)
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}
	if c.AuthMode == AuthModeStandalone && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in standalone mode")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.IsProduction() && !c.SessionCookieSecure {
		return fmt.Errorf("SESSION_COOKIE_SECURE must be true in production")
	}
	return nil
}
