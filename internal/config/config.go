package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/brk3/habitcal/internal/logger"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"

	defaultConfigPath = "config.yaml"
)

type OIDCProviderConfig struct {
	Id           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	IssuerURL    string   `yaml:"issuer_url"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// Config is read from the YAML file named by HABITS_CONFIG and then
// overridden by any HABITS_* environment variables, including those loaded
// from a .env file.
type Config struct {
	ListenAddr  string `yaml:"listen_addr" env:"HABITS_LISTEN_ADDR"`
	APIBaseURL  string `yaml:"api_base_url" env:"HABITS_API_BASE"`
	StoreDriver string `yaml:"store_driver" env:"HABITS_STORE"`
	DBPath      string `yaml:"db_path" env:"HABITS_DB_PATH"`
	PostgresURL string `yaml:"postgres_url" env:"HABITS_POSTGRES_URL"`

	AuthEnabled   bool                 `yaml:"auth_enabled" env:"HABITS_AUTH_ENABLED"`
	OIDCProviders []OIDCProviderConfig `yaml:"oidc_providers"`
	AuthToken     string               `yaml:"auth_token" env:"HABITS_AUTH_TOKEN"`

	TimeZone string `yaml:"timezone" env:"HABITS_TZ"`

	LogLevel  string `yaml:"log_level" env:"HABITS_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"HABITS_LOG_FORMAT"`
	LogFile   string `yaml:"log_file" env:"HABITS_LOG_FILE"`

	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" env:"HABITS_RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"HABITS_RATE_BURST"`

	ResendAPIKey string `yaml:"resend_api_key" env:"HABITS_RESEND_API_KEY"`
	NotifyEmail  string `yaml:"notify_email" env:"HABITS_NOTIFY_EMAIL"`
	NotifyFrom   string `yaml:"notify_from" env:"HABITS_NOTIFY_FROM"`
}

func Default() Config {
	return Config{
		ListenAddr:  ":8080",
		APIBaseURL:  "http://localhost:8080",
		StoreDriver: DriverBolt,
		DBPath:      "habits.db",
		LogLevel:    "info",
		LogFormat:   "text",
		RateBurst:   20,
		NotifyFrom:  "onboarding@resend.dev",
	}
}

// Load reads the configuration. A missing file is an error only when
// HABITS_CONFIG names it explicitly.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Cannot load .env file", "error", err)
	}

	path, explicit := os.LookupEnv("HABITS_CONFIG")
	if !explicit || path == "" {
		path = defaultConfigPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		logger.Debug("No config file, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverBolt:
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for the bolt store")
		}
	case DriverPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres_url is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.AuthEnabled && len(c.OIDCProviders) == 0 {
		return fmt.Errorf("auth_enabled requires at least one oidc provider")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the time zone that decides which calendar date "today" is.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("bad timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
