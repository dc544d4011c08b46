// Package config reads daemon settings from environment variables, with an
// optional YAML file for provider endpoint overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the daemon needs at startup.
type Config struct {
	HTTPAddr string

	Database DatabaseConfig

	// VaultSecret is the single high-entropy secret the vault derives its
	// keys from. Must be at least 32 characters.
	VaultSecret string

	// CronSecret authenticates external cron calls to the processing trigger.
	CronSecret string

	PollInterval time.Duration
	BatchSize    int

	NATSURL     string
	NATSEnabled bool

	Google GoogleOAuthConfig

	Providers ProviderEndpoints
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// GoogleOAuthConfig holds the Business Profile OAuth app settings.
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// ProviderEndpoints overrides provider base URLs, mainly for staging and
// local fakes. Empty values mean the production endpoints.
type ProviderEndpoints struct {
	Buffer         string `yaml:"buffer"`
	Twilio         string `yaml:"twilio"`
	GoogleBusiness string `yaml:"google_business"`
	GoogleToken    string `yaml:"google_token"`
	Sendgrid       string `yaml:"sendgrid"`
}

// Load assembles the config from the environment. PROVIDER_ENDPOINTS_FILE
// optionally points at a YAML file of endpoint overrides.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "dispatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		VaultSecret:  os.Getenv("VAULT_SECRET"),
		CronSecret:   os.Getenv("CRON_SECRET"),
		PollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", time.Minute),
		BatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
		NATSURL:      getEnv("NATS_URL", ""),
		Google: GoogleOAuthConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		},
	}
	cfg.NATSEnabled = cfg.NATSURL != ""

	if cfg.VaultSecret == "" {
		return nil, fmt.Errorf("VAULT_SECRET environment variable is required")
	}

	if path := os.Getenv("PROVIDER_ENDPOINTS_FILE"); path != "" {
		endpoints, err := loadEndpoints(path)
		if err != nil {
			return nil, err
		}
		cfg.Providers = *endpoints
	}

	return cfg, nil
}

func loadEndpoints(path string) (*ProviderEndpoints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider endpoints file: %w", err)
	}

	var endpoints ProviderEndpoints
	if err := yaml.Unmarshal(data, &endpoints); err != nil {
		return nil, fmt.Errorf("parse provider endpoints file: %w", err)
	}
	return &endpoints, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
