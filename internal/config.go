package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env           string `mapstructure:"env" validate:"oneof=dev prod"`
	LogLevel      string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Port          uint16 `mapstructure:"port" validate:"required"`
	BaseURL       string `mapstructure:"base_url" validate:"required,url"`
	DatabaseUrl   string `mapstructure:"database_url"`
	EncryptionKey string `mapstructure:"encryption_key"` // Base64-encoded 32-byte key for sealing provider credentials

	// ConfirmationPath is the shop page buyers land on after paying.
	ConfirmationPath string `mapstructure:"confirmation_path" validate:"required,startswith=/"`
	CookieDomain     string `mapstructure:"cookie_domain"`

	POSAPIToken   string `mapstructure:"pos_api_token"`
	AdminAPIToken string `mapstructure:"admin_api_token"`

	PSE       PSEConfig        `mapstructure:"pse"`
	Poller    PollerConfig     `mapstructure:"poll"`
	NATS      NATSConfig       `mapstructure:"nats"`
	Email     EmailConfig      `mapstructure:"smtp"`
	Sentry    SentryConfig     `mapstructure:"sentry"`
	Providers []ProviderConfig `mapstructure:"providers" validate:"dive"`
}

// PSEConfig holds processor endpoints and call limits. Mode "mock" swaps
// the HTTP client for the in-process processor.
type PSEConfig struct {
	Mode           string        `mapstructure:"mode" validate:"oneof=http mock"`
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	SandboxURL     string        `mapstructure:"sandbox_url" validate:"omitempty,url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
}

type PollerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	Threshold   time.Duration `mapstructure:"threshold" validate:"gte=0"`
	Staleness   time.Duration `mapstructure:"staleness" validate:"gt=0"`
	BatchSize   int           `mapstructure:"batch_size" validate:"min=1"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     uint16 `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"omitempty,email"`
	FromName string `mapstructure:"from_name"`
}

// Enabled reports whether cancellation emails can be sent.
func (c EmailConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	Enabled          bool    `mapstructure:"enabled"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	SampleRate       float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" validate:"gte=0,lte=1"`
	Debug            bool    `mapstructure:"debug"`
}

// ProviderConfig seeds a payment provider at startup.
type ProviderConfig struct {
	Code          string   `mapstructure:"code" validate:"required,oneof=pse rutavity manual"`
	Name          string   `mapstructure:"name"`
	State         string   `mapstructure:"state" validate:"oneof=disabled test enabled"`
	CustomerID    string   `mapstructure:"customer_id"`
	PublicKey     string   `mapstructure:"public_key"`
	PrivateKey    string   `mapstructure:"private_key"`
	SigningSecret string   `mapstructure:"signing_secret"`
	Methods       []string `mapstructure:"methods" validate:"dive,oneof=pse credit pos_store"`
}

// envKeys maps config keys to the environment variables that set them.
var envKeys = map[string]string{
	"env":                       "ENV",
	"log_level":                 "LOG_LEVEL",
	"port":                      "PORT",
	"base_url":                  "BASE_URL",
	"database_url":              "DATABASE_URL",
	"encryption_key":            "ENCRYPTION_KEY",
	"confirmation_path":         "CONFIRMATION_PATH",
	"cookie_domain":             "COOKIE_DOMAIN",
	"pos_api_token":             "POS_API_TOKEN",
	"admin_api_token":           "ADMIN_API_TOKEN",
	"pse.mode":                  "PSE_MODE",
	"pse.base_url":              "PSE_BASE_URL",
	"pse.sandbox_url":           "PSE_SANDBOX_URL",
	"pse.connect_timeout":       "PSE_CONNECT_TIMEOUT",
	"pse.timeout":               "PSE_TIMEOUT",
	"pse.max_attempts":          "PSE_MAX_ATTEMPTS",
	"pse.initial_backoff":       "PSE_INITIAL_BACKOFF",
	"poll.enabled":              "POLL_ENABLED",
	"poll.interval":             "POLL_INTERVAL",
	"poll.threshold":            "POLL_THRESHOLD",
	"poll.staleness":            "POLL_STALENESS",
	"poll.batch_size":           "POLL_BATCH_SIZE",
	"poll.concurrency":          "POLL_CONCURRENCY",
	"nats.url":                  "NATS_URL",
	"smtp.host":                 "SMTP_HOST",
	"smtp.port":                 "SMTP_PORT",
	"smtp.username":             "SMTP_USERNAME",
	"smtp.password":             "SMTP_PASSWORD",
	"smtp.from":                 "SMTP_FROM",
	"smtp.from_name":            "EMAIL_FROM_NAME",
	"sentry.dsn":                "SENTRY_DSN",
	"sentry.enabled":            "SENTRY_ENABLED",
	"sentry.environment":        "SENTRY_ENVIRONMENT",
	"sentry.release":            "SENTRY_RELEASE",
	"sentry.sample_rate":        "SENTRY_SAMPLE_RATE",
	"sentry.traces_sample_rate": "SENTRY_TRACES_SAMPLE_RATE",
	"sentry.debug":              "SENTRY_DEBUG",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("port", 3000)
	v.SetDefault("base_url", "http://localhost:3000")
	v.SetDefault("database_url", "")
	v.SetDefault("encryption_key", "")
	v.SetDefault("confirmation_path", "/shop/payment/confirmation")
	v.SetDefault("cookie_domain", "")
	v.SetDefault("pos_api_token", "")
	v.SetDefault("admin_api_token", "")

	v.SetDefault("pse.mode", "http")
	v.SetDefault("pse.base_url", "")
	v.SetDefault("pse.sandbox_url", "")
	v.SetDefault("pse.connect_timeout", 5*time.Second)
	v.SetDefault("pse.timeout", 30*time.Second)
	v.SetDefault("pse.max_attempts", 3)
	v.SetDefault("pse.initial_backoff", time.Second)

	v.SetDefault("poll.enabled", true)
	v.SetDefault("poll.interval", 5*time.Minute)
	v.SetDefault("poll.threshold", 5*time.Minute)
	v.SetDefault("poll.staleness", 24*time.Hour)
	v.SetDefault("poll.batch_size", 100)
	v.SetDefault("poll.concurrency", 4)

	v.SetDefault("nats.url", "")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.from_name", "Rutavity Payments")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.enabled", false) // Disabled by default for development
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.release", "")
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("sentry.traces_sample_rate", 0.0)
	v.SetDefault("sentry.debug", false)
}

func NewConfig() (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path := os.Getenv("PAYMENTS_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = providersFromEnv()
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].State == "" {
			cfg.Providers[i].State = "disabled"
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv tries .env in the current directory, then up to two parents.
func loadDotEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}
	dir, _ := os.Getwd()
	for i := 0; i < 2; i++ {
		dir = filepath.Join(dir, "..")
		if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
			return
		}
	}
	slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
}

// providersFromEnv reads the Rutavity processor account from RUTAVITY_*
// variables. The manual provider serving the offline methods is always
// present.
func providersFromEnv() []ProviderConfig {
	providers := []ProviderConfig{{
		Code:    "manual",
		Name:    "Manual",
		State:   "enabled",
		Methods: []string{"credit", "pos_store"},
	}}
	if os.Getenv("RUTAVITY_CUSTOMER_ID") == "" {
		return providers
	}
	return append(providers, ProviderConfig{
		Code:          "rutavity",
		Name:          "Rutavity",
		State:         getEnv("RUTAVITY_STATE", "test"),
		CustomerID:    os.Getenv("RUTAVITY_CUSTOMER_ID"),
		PublicKey:     os.Getenv("RUTAVITY_PUBLIC_KEY"),
		PrivateKey:    os.Getenv("RUTAVITY_PRIVATE_KEY"),
		SigningSecret: os.Getenv("RUTAVITY_SIGNING_SECRET"),
		Methods:       []string{"pse"},
	})
}

// normalize replaces an unknown environment or log level with a default
// and warns instead of failing.
func (c *Config) normalize() {
	if c.Env != "dev" && c.Env != "prod" {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", c.Env))
		c.Env = "prod"
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", c.LogLevel))
		c.LogLevel = "info"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field rules of a
// production deployment.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config %s: failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Env == "prod" {
		if c.DatabaseUrl == "" {
			return errors.New("DATABASE_URL must be set in production environment")
		}
		if c.EncryptionKey == "" {
			return errors.New("ENCRYPTION_KEY must be set in production environment")
		}
		if c.PSE.Mode == "mock" {
			return errors.New("PSE_MODE=mock is not allowed in production environment")
		}
	}
	if c.PSE.Mode == "http" && c.hasExternalProvider() && c.PSE.BaseURL == "" && c.PSE.SandboxURL == "" {
		return errors.New("PSE_BASE_URL or PSE_SANDBOX_URL required when a processor provider is configured")
	}
	if c.Sentry.Enabled && c.Sentry.DSN == "" {
		return errors.New("SENTRY_DSN required when SENTRY_ENABLED is true")
	}
	return nil
}

func (c *Config) hasExternalProvider() bool {
	for _, p := range c.Providers {
		if p.Code != "manual" && p.State != "disabled" {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
