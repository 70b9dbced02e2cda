// Package config handles loading and validation of service configuration.
// Supports both development (env vars, optional .env file) and production
// (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"

	"market-web/internal/transport"
)

// Defaults applied when a setting is absent.
const (
	DefaultPort               = "8080"
	DefaultSecretName         = "market-api"
	DefaultTimeoutSeconds     = 30
	DefaultDongCode           = "1535011000"
	DefaultSessionTTLHours    = 12
	DefaultLoginRatePerMinute = 10
)

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all service configuration.
// Environment determines whether the backend settings load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SecretName string

	// Commerce API settings (loaded from secrets in production)
	Market MarketConfig

	// Storefront defaults
	DefaultDongCode string
	TimeZone        string

	Session SessionConfig

	// Admin login attempts allowed per client IP per minute.
	LoginRatePerMinute int
}

// MarketConfig describes how to reach the commerce API.
// In production, this is loaded from Secret Manager as JSON.
type MarketConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	TLSProfile     string `json:"tls_profile,omitempty"`
	MinVersion     string `json:"min_version,omitempty"`
}

// SessionConfig selects and configures the server-side session store.
type SessionConfig struct {
	Store         string `json:"store"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	TTLHours      int    `json:"ttl_hours,omitempty"`
	CookieSecure  bool   `json:"cookie_secure,omitempty"`
}

// Timeout is the backend request timeout.
func (m MarketConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// TTL is how long idle session data is kept.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// Location resolves TimeZone. A blank zone is the server's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars (+ .env in development) /
// Secret Manager. Validates all fields and returns an error if any are
// missing or malformed.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	environment := envOrDefault("ENVIRONMENT", "development")
	if environment != "production" {
		if err := loadDotEnv(envOrDefault("ENV_FILE", ".env")); err != nil {
			return nil, err
		}
	}

	cfg, err := loadFromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading market config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads a .env file when one exists. Variables already set in
// the environment win.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port               string        `json:"port"`
		Environment        string        `json:"environment"`
		LogLevel           string        `json:"log_level"`
		Market             MarketConfig  `json:"market"`
		DefaultDongCode    string        `json:"default_dong_code"`
		TimeZone           string        `json:"time_zone"`
		Session            SessionConfig `json:"session"`
		LoginRatePerMinute int           `json:"login_rate_per_minute"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:               fileConfig.Port,
		Environment:        withDefault(fileConfig.Environment, "development"),
		LogLevel:           withDefault(fileConfig.LogLevel, "info"),
		Market:             fileConfig.Market,
		DefaultDongCode:    fileConfig.DefaultDongCode,
		TimeZone:           fileConfig.TimeZone,
		Session:            fileConfig.Session,
		LoginRatePerMinute: fileConfig.LoginRatePerMinute,
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv reads every setting from individual environment variables.
func loadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:        os.Getenv("PORT"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		SecretName:  os.Getenv("MARKET_SECRET_NAME"),
		Market: MarketConfig{
			BaseURL:    os.Getenv("MARKET_API_BASE_URL"),
			TLSProfile: os.Getenv("MARKET_API_TLS_PROFILE"),
			MinVersion: os.Getenv("MARKET_API_MIN_VERSION"),
		},
		DefaultDongCode: os.Getenv("DEFAULT_DONG_CODE"),
		TimeZone:        os.Getenv("TIME_ZONE"),
		Session: SessionConfig{
			Store:         os.Getenv("SESSION_STORE"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
		},
	}

	var err error
	ints := []struct {
		key string
		dst *int
	}{
		{"MARKET_API_TIMEOUT_SECONDS", &cfg.Market.TimeoutSeconds},
		{"REDIS_DB", &cfg.Session.RedisDB},
		{"SESSION_TTL_HOURS", &cfg.Session.TTLHours},
		{"LOGIN_RATE_PER_MINUTE", &cfg.LoginRatePerMinute},
	}
	for _, it := range ints {
		if *it.dst, err = envInt(it.key); err != nil {
			return nil, err
		}
	}
	if cfg.Session.CookieSecure, err = envBool("COOKIE_SECURE"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromSecretManager fetches the market config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, withDefault(c.SecretName, DefaultSecretName))

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.mergeMarketJSON(result.Payload.Data)
}

// mergeMarketJSON overlays secret fields onto Market. Fields absent from the
// secret keep their environment values.
func (c *Config) mergeMarketJSON(data []byte) error {
	var secret MarketConfig
	if err := json.Unmarshal(data, &secret); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	if secret.BaseURL != "" {
		c.Market.BaseURL = secret.BaseURL
	}
	if secret.TimeoutSeconds != 0 {
		c.Market.TimeoutSeconds = secret.TimeoutSeconds
	}
	if secret.TLSProfile != "" {
		c.Market.TLSProfile = secret.TLSProfile
	}
	if secret.MinVersion != "" {
		c.Market.MinVersion = secret.MinVersion
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Port = withDefault(c.Port, DefaultPort)
	c.DefaultDongCode = withDefault(c.DefaultDongCode, DefaultDongCode)
	c.Market.TLSProfile = withDefault(c.Market.TLSProfile, string(transport.ProfileDefault))
	c.Session.Store = withDefault(c.Session.Store, StoreMemory)
	if c.Market.TimeoutSeconds == 0 {
		c.Market.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Session.TTLHours == 0 {
		c.Session.TTLHours = DefaultSessionTTLHours
	}
	if c.LoginRatePerMinute == 0 {
		c.LoginRatePerMinute = DefaultLoginRatePerMinute
	}
}

// validate checks that all required configuration fields are present and
// well-formed.
func (c *Config) validate() error {
	if c.Market.BaseURL == "" {
		return fmt.Errorf("market base_url is required (MARKET_API_BASE_URL)")
	}
	u, err := url.Parse(c.Market.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid market base_url %q: must be an absolute URL", c.Market.BaseURL)
	}
	if c.Market.TimeoutSeconds < 0 {
		return fmt.Errorf("market timeout must be positive, got %d", c.Market.TimeoutSeconds)
	}
	if _, err := transport.ParseProfile(c.Market.TLSProfile); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}

	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis session store (REDIS_ADDR)")
		}
	default:
		return fmt.Errorf("unsupported session store %q (memory or redis)", c.Session.Store)
	}
	if c.Session.TTLHours < 0 {
		return fmt.Errorf("session ttl must be positive, got %d", c.Session.TTLHours)
	}
	if c.LoginRatePerMinute < 0 {
		return fmt.Errorf("login rate must be positive, got %d", c.LoginRatePerMinute)
	}
	return nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	return withDefault(os.Getenv(key), defaultVal)
}

// envInt parses an optional integer variable; unset is 0.
func envInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// envBool parses an optional boolean variable; unset is false.
func envBool(key string) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}
