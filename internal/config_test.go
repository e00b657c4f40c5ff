package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("PAYMENTS_CONFIG_FILE", "")
	t.Setenv("RUTAVITY_CUSTOMER_ID", "")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "/shop/payment/confirmation", cfg.ConfirmationPath)
	assert.Equal(t, 5*time.Second, cfg.PSE.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.PSE.Timeout)
	assert.Equal(t, 3, cfg.PSE.MaxAttempts)
	assert.Equal(t, time.Second, cfg.PSE.InitialBackoff)
	assert.Equal(t, 5*time.Minute, cfg.Poller.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Poller.Staleness)
	assert.Equal(t, 100, cfg.Poller.BatchSize)

	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "manual", cfg.Providers[0].Code)
	assert.Equal(t, []string{"credit", "pos_store"}, cfg.Providers[0].Methods)
}

func TestNewConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("PAYMENTS_CONFIG_FILE", "")
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("BASE_URL", "https://shop.example.com/")
	t.Setenv("POLL_INTERVAL", "90s")
	t.Setenv("PSE_SANDBOX_URL", "https://sandbox.pse.example.com")
	t.Setenv("RUTAVITY_CUSTOMER_ID", "cust-9")
	t.Setenv("RUTAVITY_PUBLIC_KEY", "pub-9")
	t.Setenv("RUTAVITY_PRIVATE_KEY", "priv-9")
	t.Setenv("RUTAVITY_SIGNING_SECRET", "whsec-9")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, uint16(8080), cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel, "unknown level falls back")
	assert.Equal(t, "https://shop.example.com", cfg.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Poller.Interval)

	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "rutavity", cfg.Providers[1].Code)
	assert.Equal(t, "test", cfg.Providers[1].State)
	assert.Equal(t, "whsec-9", cfg.Providers[1].SigningSecret)
}

func TestNewConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
poll:
  concurrency: 2
pse:
  mode: mock
providers:
  - code: rutavity
    name: Rutavity Sandbox
    state: test
    customer_id: cust-1
    public_key: pub-1
    private_key: priv-1
    signing_secret: whsec-1
    methods: [pse]
`), 0o600))
	t.Setenv("ENV", "dev")
	t.Setenv("PAYMENTS_CONFIG_FILE", path)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Poller.Concurrency)
	assert.Equal(t, "mock", cfg.PSE.Mode)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "Rutavity Sandbox", cfg.Providers[0].Name)
	assert.Equal(t, []string{"pse"}, cfg.Providers[0].Methods)
}

func TestNewConfig_MissingFile(t *testing.T) {
	t.Setenv("PAYMENTS_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := NewConfig()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:              "prod",
			LogLevel:         "info",
			Port:             3000,
			BaseURL:          "https://shop.example.com",
			DatabaseUrl:      "postgres://localhost/payments",
			EncryptionKey:    "a2V5",
			ConfirmationPath: "/shop/payment/confirmation",
			PSE: PSEConfig{
				Mode:           "http",
				BaseURL:        "https://pse.example.com",
				ConnectTimeout: 5 * time.Second,
				Timeout:        30 * time.Second,
				MaxAttempts:    3,
				InitialBackoff: time.Second,
			},
			Poller: PollerConfig{
				Interval:    5 * time.Minute,
				Staleness:   24 * time.Hour,
				BatchSize:   100,
				Concurrency: 4,
			},
			Providers: []ProviderConfig{{Code: "rutavity", State: "enabled", Methods: []string{"pse"}}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"prod without database", func(c *Config) { c.DatabaseUrl = "" }, "DATABASE_URL"},
		{"prod without key", func(c *Config) { c.EncryptionKey = "" }, "ENCRYPTION_KEY"},
		{"prod mock processor", func(c *Config) { c.PSE.Mode = "mock" }, "PSE_MODE"},
		{"processor without endpoint", func(c *Config) { c.PSE.BaseURL = "" }, "PSE_BASE_URL"},
		{"sentry without dsn", func(c *Config) { c.Sentry.Enabled = true }, "SENTRY_DSN"},
		{"unknown method", func(c *Config) { c.Providers[0].Methods = []string{"cash"} }, "Methods"},
		{"zero attempts", func(c *Config) { c.PSE.MaxAttempts = 0 }, "MaxAttempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
