package pse

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/rutavity/payments/internal/domain"
)

// MockClient is an in-process processor for local development.
// Created transactions start PENDING and redirect straight back to the
// shop with a valid signature and the configured ReturnCode.
type MockClient struct {
	// CreateFunc allows customizing creation behavior
	CreateFunc func(ctx context.Context, req domain.GatewayRequest) (*domain.GatewayResult, error)

	// QueryFunc allows customizing query behavior
	QueryFunc func(ctx context.Context, reference string) (*domain.GatewayResult, error)

	// ReturnCode is the state carried on the simulated redirect.
	// Empty means the shop queries the mock on return.
	ReturnCode string

	mu sync.Mutex

	// Transactions stores the processor view by reference
	Transactions map[string]*domain.GatewayResult

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockClient creates a mock processor that approves on return.
func NewMockClient() *MockClient {
	return &MockClient{
		ReturnCode:   CodeApproved,
		Transactions: make(map[string]*domain.GatewayResult),
		CallLog:      []string{},
	}
}

// Create records a pending transaction.
func (m *MockClient) Create(ctx context.Context, req domain.GatewayRequest) (*domain.GatewayResult, error) {
	m.log(fmt.Sprintf("Create(%s)", req.Transaction.Reference))

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}

	tx := req.Transaction
	externalID := "mock_" + uuid.New().String()

	q := url.Values{}
	if m.ReturnCode != "" {
		q.Set("state", m.ReturnCode)
		q.Set("transaction_id", externalID)
	}
	q.Set("signature", Sign(req.Credentials.PrivateKey, returnPayload(req.Provider, tx, m.ReturnCode, externalID)))

	result := &domain.GatewayResult{
		Code:          CodePending,
		State:         domain.StatePending,
		TransactionID: externalID,
		RedirectURL:   req.ReturnURL + "&" + q.Encode(),
	}

	m.mu.Lock()
	stored := *result
	if m.ReturnCode != "" {
		stored.Code = m.ReturnCode
		stored.State = MapState(m.ReturnCode)
	}
	m.Transactions[tx.Reference] = &stored
	m.mu.Unlock()

	return result, nil
}

// Query returns the stored processor view.
func (m *MockClient) Query(ctx context.Context, provider *domain.Provider, creds *domain.ProviderCredentials, reference string) (*domain.GatewayResult, error) {
	m.log(fmt.Sprintf("Query(%s)", reference))

	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, reference)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Transactions[reference]
	if !ok {
		return nil, &APIError{StatusCode: 404, Code: "not_found", Message: "unknown reference " + reference}
	}
	out := *r
	return &out, nil
}

// SetState changes the processor view of a reference.
func (m *MockClient) SetState(reference, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Transactions[reference]
	if !ok {
		r = &domain.GatewayResult{}
		m.Transactions[reference] = r
	}
	r.Code = code
	r.State = MapState(code)
}

func (m *MockClient) MapState(code string) domain.TransactionState {
	return MapState(code)
}

func (m *MockClient) VerifyReturn(provider *domain.Provider, creds *domain.ProviderCredentials, tx *domain.Transaction, state, transactionID, signature string) bool {
	return Verify(creds.PrivateKey, returnPayload(provider, tx, state, transactionID), signature)
}

func (m *MockClient) VerifyWebhook(creds *domain.ProviderCredentials, body []byte, signature string) bool {
	return VerifyBytes(creds.SigningSecret, body, signature)
}

func (m *MockClient) log(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
}
