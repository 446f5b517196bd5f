// Package config loads server configuration from the environment.
//
// Values come from, in order of precedence: process environment, a .env
// file in the working directory (if present), then the defaults below.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Identity providers selectable with IDENTITY_PROVIDER.
const (
	ProviderAppwrite = "appwrite"
	ProviderOAuth    = "oauthpw"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Env  string `mapstructure:"APP_ENV"`
	Port string `mapstructure:"PORT"`

	// Profile and hackathon backend.
	APIURL      string        `mapstructure:"API_URL"`
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`

	IdentityProvider  string `mapstructure:"IDENTITY_PROVIDER"`
	AppwriteEndpoint  string `mapstructure:"APPWRITE_ENDPOINT"`
	AppwriteProjectID string `mapstructure:"APPWRITE_PROJECT_ID"`

	OAuthClientID     string   `mapstructure:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `mapstructure:"OAUTH_CLIENT_SECRET"`
	OAuthTokenURL     string   `mapstructure:"OAUTH_TOKEN_URL"`
	OAuthUserInfoURL  string   `mapstructure:"OAUTH_USERINFO_URL"`
	OAuthRevokeURL    string   `mapstructure:"OAUTH_REVOKE_URL"`
	OAuthScopes       []string `mapstructure:"OAUTH_SCOPES"`

	SessionSecret string        `mapstructure:"SESSION_SECRET"`
	SessionTTL    time.Duration `mapstructure:"SESSION_TTL"`
	CookieSecure  bool          `mapstructure:"COOKIE_SECURE"`

	CacheStaleAfter time.Duration `mapstructure:"CACHE_STALE_AFTER"`
	CacheNamespace  string        `mapstructure:"CACHE_NAMESPACE"`
	RedisURL        string        `mapstructure:"REDIS_URL"`

	DBPath         string   `mapstructure:"DB_PATH"`
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`

	SentryDSN string `mapstructure:"SENTRY_DSN"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"APP_ENV":             "development",
	"PORT":                "8080",
	"API_URL":             "http://localhost:8000",
	"HTTP_TIMEOUT":        "10s",
	"IDENTITY_PROVIDER":   ProviderAppwrite,
	"APPWRITE_ENDPOINT":   "",
	"APPWRITE_PROJECT_ID": "",
	"OAUTH_CLIENT_ID":     "",
	"OAUTH_CLIENT_SECRET": "",
	"OAUTH_TOKEN_URL":     "",
	"OAUTH_USERINFO_URL":  "",
	"OAUTH_REVOKE_URL":    "",
	"OAUTH_SCOPES":        "openid,profile,email",
	"SESSION_SECRET":      "",
	"SESSION_TTL":         "24h",
	"COOKIE_SECURE":       false,
	"CACHE_STALE_AFTER":   "5m",
	"CACHE_NAMESPACE":     "hackhub",
	"REDIS_URL":           "",
	"DB_PATH":             "data/hackhub.db",
	"ALLOWED_ORIGINS":     "http://localhost:5173,http://localhost:3000",
	"SENTRY_DSN":          "",
	"LOG_LEVEL":           "info",
	"LOG_FORMAT":          "text",
}

// Load reads the configuration and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.IdentityProvider = strings.ToLower(strings.TrimSpace(c.IdentityProvider))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.AllowedOrigins = trimAll(c.AllowedOrigins)
	c.OAuthScopes = trimAll(c.OAuthScopes)
}

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.APIURL == "" {
		return errors.New("API_URL is required")
	}
	if len(c.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.CacheStaleAfter <= 0 {
		return errors.New("CACHE_STALE_AFTER must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}

	switch c.IdentityProvider {
	case ProviderAppwrite:
		if c.AppwriteEndpoint == "" || c.AppwriteProjectID == "" {
			return errors.New("APPWRITE_ENDPOINT and APPWRITE_PROJECT_ID are required for the appwrite provider")
		}
	case ProviderOAuth:
		if c.OAuthClientID == "" || c.OAuthTokenURL == "" || c.OAuthUserInfoURL == "" {
			return errors.New("OAUTH_CLIENT_ID, OAUTH_TOKEN_URL and OAUTH_USERINFO_URL are required for the oauthpw provider")
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.IdentityProvider)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}

	if c.IsProduction() && !c.CookieSecure {
		return errors.New("COOKIE_SECURE must be true in production")
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Addr is the listen address derived from PORT.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
