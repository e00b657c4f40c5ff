// Package bootstrap handles one-time initialization tasks for the application.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rutavity/payments/internal/domain"
)

// ProviderConfig describes a payment provider to seed on startup.
type ProviderConfig struct {
	Code          domain.ProviderCode
	Name          string
	State         domain.ProviderState
	CustomerID    string
	PublicKey     string
	PrivateKey    string
	SigningSecret string
	Methods       []domain.MethodCode
}

// ProviderSaver stores a provider and seals its credentials.
type ProviderSaver interface {
	SaveProvider(ctx context.Context, p *domain.Provider, creds *domain.ProviderCredentials) error
}

// manualKey fills the processor fields of the manual provider, which never
// talks to a processor but is validated like any active provider.
const manualKey = "manual"

// EnsureProviders upserts every configured provider. It is idempotent and
// safe to call on every startup; configuration always wins over stored rows.
func EnsureProviders(ctx context.Context, store ProviderSaver, providers []ProviderConfig, logger *slog.Logger) error {
	if len(providers) == 0 {
		logger.Warn("bootstrap: no payment providers configured",
			"hint", "Set RUTAVITY_* variables or PAYMENTS_CONFIG_FILE to seed providers",
		)
		return nil
	}

	for _, cfg := range providers {
		p, creds := cfg.provider()
		if err := store.SaveProvider(ctx, p, creds); err != nil {
			return fmt.Errorf("failed to seed provider %s: %w", cfg.Code, err)
		}
		logger.Info("bootstrap: provider ready",
			"provider", p.Code,
			"state", p.State,
			"methods", p.Methods,
		)
	}
	return nil
}

func (c ProviderConfig) provider() (*domain.Provider, *domain.ProviderCredentials) {
	p := &domain.Provider{
		Code:       c.Code,
		Name:       c.Name,
		State:      c.State,
		CustomerID: c.CustomerID,
		PublicKey:  c.PublicKey,
		Methods:    c.Methods,
	}
	creds := &domain.ProviderCredentials{PrivateKey: c.PrivateKey, SigningSecret: c.SigningSecret}

	if p.Name == "" {
		p.Name = string(p.Code)
	}
	if p.State == "" {
		p.State = domain.ProviderDisabled
	}
	if p.Code == domain.ProviderManual {
		p.CustomerID = orDefault(p.CustomerID, manualKey)
		p.PublicKey = orDefault(p.PublicKey, manualKey)
		creds.PrivateKey = orDefault(creds.PrivateKey, manualKey)
		creds.SigningSecret = orDefault(creds.SigningSecret, manualKey)
	}
	return p, creds
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
