// Package config loads service settings from an optional YAML file named by
// WATERBILL_CONFIG, with environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"waterbill/internal/observability/logging"
)

// EnvConfigPath names the YAML file to load.
const EnvConfigPath = "WATERBILL_CONFIG"

// Config defines service configuration.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	HTTPAddr    string `yaml:"http_addr"`

	JWTSecret     string        `yaml:"jwt_secret"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	IngestSecret  string        `yaml:"ingest_secret"`
	IngestMaxSkew time.Duration `yaml:"ingest_max_skew"`

	Currency             string        `yaml:"currency"`
	BillDueDays          int           `yaml:"bill_due_days"`
	BillWorkers          int           `yaml:"bill_workers"`
	OverdueSweepInterval time.Duration `yaml:"overdue_sweep_interval"`
	RateCacheTTL         time.Duration `yaml:"rate_cache_ttl"`

	Notify NotifyConfig   `yaml:"notify"`
	Log    logging.Config `yaml:"log"`
}

// NotifyConfig configures the billing webhook.
type NotifyConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	Template   string        `yaml:"template"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		HTTPAddr:             ":8080",
		TokenTTL:             12 * time.Hour,
		IngestMaxSkew:        5 * time.Minute,
		Currency:             "GHS",
		BillDueDays:          30,
		BillWorkers:          4,
		OverdueSweepInterval: time.Hour,
		RateCacheTTL:         5 * time.Minute,
		Notify:               NotifyConfig{Timeout: 5 * time.Second},
		Log:                  logging.DefaultConfig(),
	}
}

// Load reads defaults, then the YAML file, then environment overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.DatabaseURL = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.DatabaseURL))
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.JWTSecret))
	cfg.TokenTTL = getenvDuration("AUTH_TOKEN_TTL", cfg.TokenTTL)
	cfg.IngestSecret = getenvDefault("INGEST_HMAC_SECRET", cfg.IngestSecret)
	cfg.IngestMaxSkew = getenvDuration("INGEST_MAX_SKEW", cfg.IngestMaxSkew)
	cfg.Currency = strings.ToUpper(getenvDefault("CURRENCY", cfg.Currency))
	cfg.BillDueDays = getenvIntDefault("BILL_DUE_DAYS", cfg.BillDueDays)
	cfg.BillWorkers = getenvIntDefault("BILL_WORKERS", cfg.BillWorkers)
	cfg.OverdueSweepInterval = getenvDuration("OVERDUE_SWEEP_INTERVAL", cfg.OverdueSweepInterval)
	cfg.RateCacheTTL = getenvDuration("RATE_CACHE_TTL", cfg.RateCacheTTL)
	cfg.Notify.WebhookURL = getenvDefault("NOTIFY_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.Template = getenvDefault("NOTIFY_TEMPLATE", cfg.Notify.Template)
	cfg.Notify.Timeout = getenvDuration("NOTIFY_TIMEOUT", cfg.Notify.Timeout)
	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenvDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Output = getenvDefault("LOG_OUTPUT", cfg.Log.Output)
	cfg.Log.Development = getenvBool("LOG_DEVELOPMENT", cfg.Log.Development)
	return cfg, nil
}

// Validate checks settings required to serve.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL or PG_DSN is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.BillDueDays <= 0 {
		errs = append(errs, errors.New("bill_due_days must be positive"))
	}
	if c.BillWorkers <= 0 {
		errs = append(errs, errors.New("bill_workers must be positive"))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("currency %q must be a 3-letter code", c.Currency))
	}
	return errors.Join(errs...)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
