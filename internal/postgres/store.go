package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/payment"
)

// Repo is a payment.Repository over a DBTX.
type Repo struct {
	*Queries
	sealer Sealer
}

var _ payment.Repository = (*Repo)(nil)

// GetProviderCredentials opens the sealed provider secrets.
func (r *Repo) GetProviderCredentials(ctx context.Context, code domain.ProviderCode) (*domain.ProviderCredentials, error) {
	privateKey, signingSecret, err := r.getProviderSecrets(ctx, code)
	if err != nil {
		return nil, err
	}
	creds := &domain.ProviderCredentials{}
	if privateKey != "" {
		if creds.PrivateKey, err = r.sealer.DecryptString(privateKey); err != nil {
			return nil, domain.Internal(err, "postgres.get_provider_credentials", "provider private key cannot be opened")
		}
	}
	if signingSecret != "" {
		if creds.SigningSecret, err = r.sealer.DecryptString(signingSecret); err != nil {
			return nil, domain.Internal(err, "postgres.get_provider_credentials", "provider signing secret cannot be opened")
		}
	}
	return creds, nil
}

// SaveProvider validates and stores a provider, sealing its secrets.
func (r *Repo) SaveProvider(ctx context.Context, p *domain.Provider, creds *domain.ProviderCredentials) error {
	if err := domain.ValidateProvider(p, creds); err != nil {
		return err
	}
	var privateKey, signingSecret string
	if creds != nil {
		var err error
		if privateKey, err = r.seal(creds.PrivateKey); err != nil {
			return fmt.Errorf("seal private key: %w", err)
		}
		if signingSecret, err = r.seal(creds.SigningSecret); err != nil {
			return fmt.Errorf("seal signing secret: %w", err)
		}
	}
	return r.upsertProvider(ctx, p, privateKey, signingSecret)
}

func (r *Repo) seal(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return r.sealer.EncryptString(s)
}

// Store implements payment.Store on a connection pool.
type Store struct {
	*Repo
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ payment.Store = (*Store)(nil)

// NewStore creates a store. Credentials are sealed with sealer.
func NewStore(pool *pgxpool.Pool, sealer Sealer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		Repo:   &Repo{Queries: New(pool), sealer: sealer},
		pool:   pool,
		logger: logger.With("component", "postgres"),
	}
}

// WithinTx runs fn in a database transaction. Row locks taken through the
// passed Repository hold until fn returns.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo payment.Repository) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.ErrorContext(ctx, "Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(ctx, &Repo{Queries: s.Queries.WithTx(tx), sealer: s.sealer}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateTransaction inserts the transaction and its links atomically.
func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	return s.WithinTx(ctx, func(ctx context.Context, repo payment.Repository) error {
		return repo.CreateTransaction(ctx, t)
	})
}

// RegisterPayment locks, checks and posts in one database transaction.
func (s *Store) RegisterPayment(ctx context.Context, p domain.InvoicePayment) error {
	return s.WithinTx(ctx, func(ctx context.Context, repo payment.Repository) error {
		return repo.RegisterPayment(ctx, p)
	})
}
