package postgres

import (
	"context"
	"fmt"

	"github.com/rutavity/payments/internal/domain"
)

// Sealer encrypts credentials at rest. *crypto.AESEncryptor satisfies it.
type Sealer interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(ciphertext string) (string, error)
}

const getProvider = `SELECT code, name, state, customer_id, public_key, methods FROM payment_providers WHERE code = $1`

func (q *Queries) GetProvider(ctx context.Context, code domain.ProviderCode) (*domain.Provider, error) {
	var p domain.Provider
	var pcode, state string
	var methods []string
	err := q.db.QueryRow(ctx, getProvider, string(code)).Scan(&pcode, &p.Name, &state, &p.CustomerID, &p.PublicKey, &methods)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound("postgres.get_provider", "provider", string(code))
		}
		return nil, fmt.Errorf("get provider %s: %w", code, err)
	}
	p.Code = domain.ProviderCode(pcode)
	p.State = domain.ProviderState(state)
	for _, m := range methods {
		p.Methods = append(p.Methods, domain.MethodCode(m))
	}
	return &p, nil
}

const getProviderSecrets = `SELECT private_key_enc, signing_secret_enc FROM payment_providers WHERE code = $1`

func (q *Queries) getProviderSecrets(ctx context.Context, code domain.ProviderCode) (privateKey, signingSecret string, err error) {
	err = q.db.QueryRow(ctx, getProviderSecrets, string(code)).Scan(&privateKey, &signingSecret)
	if err != nil && isNoRows(err) {
		return "", "", domain.NotFound("postgres.get_provider_credentials", "provider", string(code))
	}
	return privateKey, signingSecret, err
}

const upsertProvider = `
INSERT INTO payment_providers (code, name, state, customer_id, public_key, methods, private_key_enc, signing_secret_enc, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::text[], $7, $8, NOW())
ON CONFLICT (code) DO UPDATE SET
    name = EXCLUDED.name,
    state = EXCLUDED.state,
    customer_id = EXCLUDED.customer_id,
    public_key = EXCLUDED.public_key,
    methods = EXCLUDED.methods,
    private_key_enc = EXCLUDED.private_key_enc,
    signing_secret_enc = EXCLUDED.signing_secret_enc,
    updated_at = NOW()`

func (q *Queries) upsertProvider(ctx context.Context, p *domain.Provider, privateKeyEnc, signingSecretEnc string) error {
	methods := make([]string, len(p.Methods))
	for i, m := range p.Methods {
		methods[i] = string(m)
	}
	_, err := q.db.Exec(ctx, upsertProvider, string(p.Code), p.Name, string(p.State), p.CustomerID, p.PublicKey,
		methods, privateKeyEnc, signingSecretEnc)
	if err != nil {
		return fmt.Errorf("upsert provider %s: %w", p.Code, err)
	}
	return nil
}
