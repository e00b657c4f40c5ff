// Package pse talks to the Rutavity PSE processor: it opens transactions,
// queries their state and verifies the signatures the processor sends back.
package pse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/money"
	"github.com/rutavity/payments/internal/telemetry"
)

// Config holds processor endpoints and call limits.
type Config struct {
	// BaseURL is the production processor, SandboxURL the one used by
	// providers in test state.
	BaseURL    string
	SandboxURL string

	ConnectTimeout time.Duration
	Timeout        time.Duration

	// MaxAttempts includes the first call.
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultConfig returns the documented limits without endpoints.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 5 * time.Second,
		Timeout:        30 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Second,
	}
}

// Client is the HTTP processor adapter. It satisfies payment.Gateway.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a processor client. Zero limits fall back to DefaultConfig.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &telemetry.HTTPTransport{Transport: transport},
		},
		logger: logger.With("component", "pse"),
	}
}

// createRequest is the body of POST /v1/transactions.
type createRequest struct {
	CustomerID string       `json:"customer_id"`
	PublicKey  string       `json:"public_key"`
	Reference  string       `json:"reference"`
	Amount     int64        `json:"amount"`
	Currency   string       `json:"currency"`
	Buyer      domain.Buyer `json:"buyer"`
	ReturnURL  string       `json:"return_url"`
}

// transactionResponse is the processor's view of a transaction.
type transactionResponse struct {
	State         string `json:"state"`
	TransactionID string `json:"transaction_id"`
	ReceiptURL    string `json:"receipt_url"`
	RedirectURL   string `json:"redirect_url"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Create opens a transaction at the processor.
func (c *Client) Create(ctx context.Context, req domain.GatewayRequest) (*domain.GatewayResult, error) {
	if req.Credentials == nil || req.Credentials.PrivateKey == "" {
		return nil, ErrMissingCredentials
	}
	base, err := c.endpoint(req.Provider)
	if err != nil {
		return nil, err
	}

	tx := req.Transaction
	amount := money.ToMinor(tx.Amount, tx.Currency)
	body, err := json.Marshal(createRequest{
		CustomerID: req.Provider.CustomerID,
		PublicKey:  req.Provider.PublicKey,
		Reference:  tx.Reference,
		Amount:     amount,
		Currency:   tx.Currency,
		Buyer:      req.Buyer,
		ReturnURL:  req.ReturnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("pse: encode request: %w", err)
	}
	signature := Sign(req.Credentials.PrivateKey, Payload(tx.Reference, amount, tx.Currency, req.Provider.PublicKey))

	resp, err := c.do(ctx, "create", func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/transactions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set(SignatureHeader, signature)
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "Processor transaction created",
		"reference", tx.Reference,
		"transaction_id", resp.TransactionID,
		"state", resp.State,
	)
	return resp.result(), nil
}

// Query reports the processor's state for a reference.
func (c *Client) Query(ctx context.Context, provider *domain.Provider, creds *domain.ProviderCredentials, reference string) (*domain.GatewayResult, error) {
	if creds == nil || creds.PrivateKey == "" {
		return nil, ErrMissingCredentials
	}
	base, err := c.endpoint(provider)
	if err != nil {
		return nil, err
	}
	signature := Sign(creds.PrivateKey, reference+"|"+provider.PublicKey)

	resp, err := c.do(ctx, "query", func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/transactions/"+url.PathEscape(reference), nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Accept", "application/json")
		r.Header.Set("X-Rutavity-Public-Key", provider.PublicKey)
		r.Header.Set(SignatureHeader, signature)
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return resp.result(), nil
}

// MapState maps a processor code onto a transaction state.
func (c *Client) MapState(code string) domain.TransactionState {
	return MapState(code)
}

// VerifyReturn checks the signature of a browser return. A carried state
// and transaction id must be covered by the signature.
func (c *Client) VerifyReturn(provider *domain.Provider, creds *domain.ProviderCredentials, tx *domain.Transaction, state, transactionID, signature string) bool {
	if creds == nil || provider == nil || tx == nil {
		return false
	}
	return Verify(creds.PrivateKey, returnPayload(provider, tx, state, transactionID), signature)
}

func returnPayload(provider *domain.Provider, tx *domain.Transaction, state, transactionID string) string {
	amount := money.ToMinor(tx.Amount, tx.Currency)
	if state == "" {
		return Payload(tx.Reference, amount, tx.Currency, provider.PublicKey)
	}
	return ReturnPayload(tx.Reference, amount, tx.Currency, provider.PublicKey, state, transactionID)
}

// VerifyWebhook checks a notification body against the signing secret.
func (c *Client) VerifyWebhook(creds *domain.ProviderCredentials, body []byte, signature string) bool {
	if creds == nil {
		return false
	}
	return VerifyBytes(creds.SigningSecret, body, signature)
}

// endpoint picks the processor environment from the provider state.
func (c *Client) endpoint(provider *domain.Provider) (string, error) {
	base := c.cfg.BaseURL
	if provider != nil && provider.State == domain.ProviderTest {
		base = c.cfg.SandboxURL
	}
	if base == "" {
		return "", ErrNoEndpoint
	}
	return strings.TrimRight(base, "/"), nil
}

// do sends a request with bounded exponential retry. Network failures, 5xx
// and 429 are retried; other answers are final.
func (c *Client) do(ctx context.Context, op string, build func() (*http.Request, error)) (*transactionResponse, error) {
	started := time.Now()
	attempts := 0

	var out *transactionResponse
	call := func() error {
		attempts++
		req, err := build()
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%w: read body: %v", ErrProcessorUnavailable, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			var body errorResponse
			if json.Unmarshal(raw, &body) == nil {
				apiErr.Code = body.Code
				apiErr.Message = body.Message
			}
			if apiErr.Temporary() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		var decoded transactionResponse
		if err := json.Unmarshal(raw, &decoded); err != nil || decoded.State == "" {
			return backoff.Permanent(ErrMalformedResponse)
		}
		out = &decoded
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.InitialBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	err := backoff.RetryNotify(call,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxAttempts-1)), ctx),
		func(err error, wait time.Duration) {
			c.logger.WarnContext(ctx, "Processor call failed, retrying",
				"operation", op,
				"attempt", attempts,
				"retry_in", wait,
				"error", err,
			)
		},
	)
	telemetry.Payments.ProcessorCall(op, started, attempts, err)

	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Temporary() {
			err = fmt.Errorf("%w: %v", ErrProcessorUnavailable, apiErr)
		}
		c.logger.ErrorContext(ctx, "Processor call failed", "operation", op, "attempts", attempts, "error", err)
		return nil, err
	}
	return out, nil
}

func (r *transactionResponse) result() *domain.GatewayResult {
	return &domain.GatewayResult{
		Code:          r.State,
		State:         MapState(r.State),
		TransactionID: r.TransactionID,
		ReceiptURL:    r.ReceiptURL,
		RedirectURL:   r.RedirectURL,
	}
}
