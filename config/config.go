// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Directory DirectoryConfig `yaml:"directory"`
	Billing   BillingConfig   `yaml:"billing"`
	Titles    TitlesConfig    `yaml:"titles"`
	Plans     []PlanConfig    `yaml:"plans"`
	Sync      SyncConfig      `yaml:"sync"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// AuthConfig configures bearer token handling.
// In "verify" mode tokens are checked against the shared secret; in "trust"
// mode claims are read without signature verification (behind a gateway that
// already verified them).
type AuthConfig struct {
	Mode      string `yaml:"mode"` // "verify" or "trust"
	JWTSecret string `yaml:"jwt_secret,omitempty"`
}

// DirectoryConfig configures the auth provider's admin user directory, used
// to resolve billing customers whose profile is not mirrored locally yet.
type DirectoryConfig struct {
	Mode       string        `yaml:"mode"` // "none" or "http"
	BaseURL    string        `yaml:"base_url,omitempty"`
	ServiceKey string        `yaml:"service_key,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// BillingConfig configures the billing provider.
type BillingConfig struct {
	Mode            string `yaml:"mode"` // "none" or "stripe"
	SecretKey       string `yaml:"secret_key,omitempty"`
	WebhookSecret   string `yaml:"webhook_secret,omitempty"`
	PortalReturnURL string `yaml:"portal_return_url,omitempty"`
}

// TitlesConfig configures the AI title generator.
type TitlesConfig struct {
	Mode    string        `yaml:"mode"` // "none" or "http"
	BaseURL string        `yaml:"base_url,omitempty"`
	APIKey  string        `yaml:"api_key,omitempty"`
	Model   string        `yaml:"model,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// PlanConfig maps a billing provider price ID to a plan name.
type PlanConfig struct {
	PriceID string `yaml:"price_id"`
	Name    string `yaml:"name"`
}

// SyncConfig configures the bulk subscription sync job.
type SyncConfig struct {
	Delay time.Duration `yaml:"delay"` // pause between customers
}

// AdminConfig configures the admin endpoints.
type AdminConfig struct {
	Token string `yaml:"token,omitempty"` // empty disables admin endpoints
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	REFLECTD_SERVER_HOST            - Server host (default: 0.0.0.0)
//	REFLECTD_SERVER_PORT            - Server port (default: 8080)
//	REFLECTD_DATABASE_DSN           - Database path (default: reflectd.db)
//	REFLECTD_AUTH_MODE              - Auth mode: verify or trust (default: verify)
//	REFLECTD_AUTH_JWT_SECRET        - Shared secret for token verification
//	REFLECTD_DIRECTORY_MODE         - User directory mode: none or http (default: none)
//	REFLECTD_DIRECTORY_BASE_URL     - Auth provider admin API base URL
//	REFLECTD_DIRECTORY_SERVICE_KEY  - Admin-scope service key
//	REFLECTD_BILLING_MODE           - Billing mode: none or stripe (default: none)
//	REFLECTD_BILLING_SECRET_KEY     - Stripe secret key
//	REFLECTD_BILLING_WEBHOOK_SECRET - Stripe webhook signing secret
//	REFLECTD_TITLES_MODE            - Title generator mode: none or http
//	REFLECTD_TITLES_API_KEY         - Title generator API key
//	REFLECTD_ADMIN_TOKEN            - Token guarding admin endpoints
//	REFLECTD_LOG_LEVEL              - Log level (default: info)
//	REFLECTD_LOG_FORMAT             - json or console (default: json)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies REFLECTD_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("REFLECTD_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REFLECTD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REFLECTD_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("REFLECTD_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("REFLECTD_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REFLECTD_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Auth configuration
	if v := os.Getenv("REFLECTD_AUTH_MODE"); v != "" {
		cfg.Auth.Mode = v
	}
	if v := os.Getenv("REFLECTD_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	// Directory configuration
	if v := os.Getenv("REFLECTD_DIRECTORY_MODE"); v != "" {
		cfg.Directory.Mode = v
	}
	if v := os.Getenv("REFLECTD_DIRECTORY_BASE_URL"); v != "" {
		cfg.Directory.BaseURL = v
	}
	if v := os.Getenv("REFLECTD_DIRECTORY_SERVICE_KEY"); v != "" {
		cfg.Directory.ServiceKey = v
	}

	// Billing configuration
	if v := os.Getenv("REFLECTD_BILLING_MODE"); v != "" {
		cfg.Billing.Mode = v
	}
	if v := os.Getenv("REFLECTD_BILLING_SECRET_KEY"); v != "" {
		cfg.Billing.SecretKey = v
	}
	if v := os.Getenv("REFLECTD_BILLING_WEBHOOK_SECRET"); v != "" {
		cfg.Billing.WebhookSecret = v
	}
	if v := os.Getenv("REFLECTD_BILLING_PORTAL_RETURN_URL"); v != "" {
		cfg.Billing.PortalReturnURL = v
	}

	// Titles configuration
	if v := os.Getenv("REFLECTD_TITLES_MODE"); v != "" {
		cfg.Titles.Mode = v
	}
	if v := os.Getenv("REFLECTD_TITLES_BASE_URL"); v != "" {
		cfg.Titles.BaseURL = v
	}
	if v := os.Getenv("REFLECTD_TITLES_API_KEY"); v != "" {
		cfg.Titles.APIKey = v
	}
	if v := os.Getenv("REFLECTD_TITLES_MODEL"); v != "" {
		cfg.Titles.Model = v
	}

	// Sync configuration
	if v := os.Getenv("REFLECTD_SYNC_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Delay = d
		}
	}

	// Admin configuration
	if v := os.Getenv("REFLECTD_ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}

	// Logging configuration
	if v := os.Getenv("REFLECTD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("REFLECTD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("REFLECTD_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("REFLECTD_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "reflectd.db"
	}

	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = "verify"
	}

	if cfg.Directory.Mode == "" {
		cfg.Directory.Mode = "none"
	}
	if cfg.Directory.Timeout == 0 {
		cfg.Directory.Timeout = 10 * time.Second
	}

	if cfg.Billing.Mode == "" {
		cfg.Billing.Mode = "none"
	}

	if cfg.Titles.Mode == "" {
		cfg.Titles.Mode = "none"
	}
	if cfg.Titles.Model == "" {
		cfg.Titles.Model = "gemini-2.5-flash"
	}
	if cfg.Titles.Timeout == 0 {
		cfg.Titles.Timeout = 10 * time.Second
	}

	if cfg.Sync.Delay == 0 {
		cfg.Sync.Delay = 100 * time.Millisecond
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validAuthModes := map[string]bool{"verify": true, "trust": true}
	if !validAuthModes[cfg.Auth.Mode] {
		return fmt.Errorf("auth.mode must be 'verify' or 'trust', got %q", cfg.Auth.Mode)
	}
	if cfg.Auth.Mode == "verify" && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.mode is 'verify'")
	}

	validDirectoryModes := map[string]bool{"none": true, "http": true}
	if !validDirectoryModes[cfg.Directory.Mode] {
		return fmt.Errorf("directory.mode must be 'none' or 'http', got %q", cfg.Directory.Mode)
	}
	if cfg.Directory.Mode == "http" && (cfg.Directory.BaseURL == "" || cfg.Directory.ServiceKey == "") {
		return fmt.Errorf("directory.base_url and directory.service_key are required when directory.mode is 'http'")
	}

	validBillingModes := map[string]bool{"none": true, "stripe": true}
	if !validBillingModes[cfg.Billing.Mode] {
		return fmt.Errorf("billing.mode must be 'none' or 'stripe', got %q", cfg.Billing.Mode)
	}
	if cfg.Billing.Mode == "stripe" {
		if cfg.Billing.SecretKey == "" {
			return fmt.Errorf("billing.secret_key is required when billing.mode is 'stripe'")
		}
		if cfg.Billing.WebhookSecret == "" {
			return fmt.Errorf("billing.webhook_secret is required when billing.mode is 'stripe'")
		}
	}

	validTitleModes := map[string]bool{"none": true, "http": true}
	if !validTitleModes[cfg.Titles.Mode] {
		return fmt.Errorf("titles.mode must be 'none' or 'http', got %q", cfg.Titles.Mode)
	}
	if cfg.Titles.Mode == "http" && (cfg.Titles.BaseURL == "" || cfg.Titles.APIKey == "") {
		return fmt.Errorf("titles.base_url and titles.api_key are required when titles.mode is 'http'")
	}

	for i, plan := range cfg.Plans {
		if plan.PriceID == "" {
			return fmt.Errorf("plans[%d].price_id is required", i)
		}
		if plan.Name == "" {
			return fmt.Errorf("plans[%d].name is required", i)
		}
	}

	return nil
}
