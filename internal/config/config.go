package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/tokenstore"
)

// Storage backends for tokens and the server registry.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Google    GoogleConfig    `mapstructure:"google"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Meeting   MeetingConfig   `mapstructure:"meeting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// BaseURL is where this server is reachable; the OAuth callback lives under it.
	BaseURL string `mapstructure:"base_url"`
	// AppURL is the UI the callback redirects back to.
	AppURL          string        `mapstructure:"app_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TLSCertFile     string        `mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `mapstructure:"tls_key_file"`
}

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

// StorageConfig selects and configures the token and registry stores.
type StorageConfig struct {
	Type          string        `mapstructure:"type"`
	EncryptionKey string        `mapstructure:"encryption_key"`
	DatabaseURL   string        `mapstructure:"database_url"`
	Redis         RedisConfig   `mapstructure:"redis"`
	StateTTL      time.Duration `mapstructure:"state_ttl"`
}

// RedisConfig configures the redis token store and session lock.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

// GeminiConfig configures email summaries.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// MeetingConfig configures generated meeting links.
type MeetingConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// MetricsConfig configures the dedicated metrics server.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `mapstructure:"format"`
	Debug  bool   `mapstructure:"debug"`
}

// RateLimitConfig configures per-IP limiting of the /auth endpoints.
type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
	// TrustProxy takes the client IP from X-Forwarded-For and X-Real-IP.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.app_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("storage.type", StorageMemory)
	v.SetDefault("storage.state_ttl", "10m")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.key_prefix", tokenstore.DefaultKeyPrefix)
	v.SetDefault("storage.redis.ttl", tokenstore.DefaultTTL.String())
	v.SetDefault("storage.redis.lock_ttl", tokenstore.DefaultLockTTL.String())

	v.SetDefault("gemini.model", "gemini-2.0-flash-lite")
	v.SetDefault("meeting.base_url", "https://meet.example.com")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.format", "text")
	v.SetDefault("log.debug", false)

	v.SetDefault("rate_limit.rate", 10.0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.trust_proxy", false)
}

// envBindings maps configuration keys to environment variables.
var envBindings = map[string]string{
	"server.addr":          "MAILCAL_ADDR",
	"server.base_url":      "MAILCAL_BASE_URL",
	"server.app_url":       "MAILCAL_APP_URL",
	"server.tls_cert_file": "TLS_CERT_FILE",
	"server.tls_key_file":  "TLS_KEY_FILE",

	"google.client_id":     "GOOGLE_CLIENT_ID",
	"google.client_secret": "GOOGLE_CLIENT_SECRET",
	"google.redirect_uri":  "GOOGLE_REDIRECT_URI",

	"storage.type":           "MAILCAL_STORAGE",
	"storage.encryption_key": "TOKEN_ENCRYPTION_KEY",
	"storage.database_url":   "DATABASE_URL",
	"storage.redis.addr":     "REDIS_ADDR",
	"storage.redis.password": "REDIS_PASSWORD",
	"storage.redis.db":       "REDIS_DB",

	"gemini.api_key":   "GEMINI_API_KEY",
	"meeting.base_url": "MEETING_BASE_URL",

	"metrics.enabled": "METRICS_ENABLED",
	"metrics.addr":    "METRICS_ADDR",

	"log.format": "LOG_FORMAT",
	"log.debug":  "DEBUG",

	"rate_limit.trust_proxy": "TRUST_PROXY",
}

// BindEnv binds the environment variables of every key to v.
func BindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Load reads configFile (optional) into v and returns the validated
// configuration. Flags must already be bound to v.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDerived fills values that default to other values.
func (c *Config) applyDerived() {
	if c.Server.BaseURL == "" {
		host := c.Server.Addr
		if strings.HasPrefix(host, ":") {
			host = "localhost" + host
		}
		c.Server.BaseURL = "http://" + host
	}
	c.Server.BaseURL = strings.TrimSuffix(c.Server.BaseURL, "/")
	if c.Server.AppURL == "" {
		c.Server.AppURL = c.Server.BaseURL
	}
	c.Server.AppURL = strings.TrimSuffix(c.Server.AppURL, "/")
	if c.Google.RedirectURI == "" {
		c.Google.RedirectURI = c.Server.BaseURL + "/auth/callback"
	}
}

// AuthConfig returns the OAuth client configuration.
func (c *Config) AuthConfig() google.AuthConfig {
	return google.AuthConfig{
		ClientID:     c.Google.ClientID,
		ClientSecret: c.Google.ClientSecret,
		RedirectURL:  c.Google.RedirectURI,
	}
}

// SecureCookies reports whether cookies must carry the Secure attribute.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.AuthConfig().Validate(); err != nil {
		return err
	}
	if err := validateHTTPSRequirement(c.Server.BaseURL); err != nil {
		return err
	}
	if _, err := url.ParseRequestURI(c.Server.AppURL); err != nil {
		return fmt.Errorf("invalid app URL: %w", err)
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("tls_cert_file and tls_key_file must be set together")
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required for redis storage")
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("storage.database_url is required for postgres storage")
		}
	default:
		return fmt.Errorf("unsupported storage type %q (supported: memory, redis, postgres)", c.Storage.Type)
	}
	if c.Storage.EncryptionKey != "" {
		if _, err := tokenstore.KeyFromBase64(c.Storage.EncryptionKey); err != nil {
			return fmt.Errorf("invalid token encryption key: %w", err)
		}
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q (supported: text, json)", c.Log.Format)
	}
	if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate_limit.rate and rate_limit.burst must be positive")
	}
	return nil
}

// validateHTTPSRequirement allows plain HTTP only for loopback hosts.
func validateHTTPSRequirement(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("HTTPS is required for non-local base URLs (got: %s)", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}
}
