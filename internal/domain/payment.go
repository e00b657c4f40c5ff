package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderCode identifies a payment processor configuration.
type ProviderCode string

const (
	ProviderPSE      ProviderCode = "pse"
	ProviderRutavity ProviderCode = "rutavity"
	ProviderManual   ProviderCode = "manual"
)

// ProviderState controls whether a provider accepts transactions and which
// processor environment it talks to.
type ProviderState string

const (
	ProviderDisabled ProviderState = "disabled"
	ProviderTest     ProviderState = "test"
	ProviderEnabled  ProviderState = "enabled"
)

// MethodCode identifies a way to pay.
type MethodCode string

const (
	MethodPSE      MethodCode = "pse"
	MethodCredit   MethodCode = "credit"
	MethodPOSStore MethodCode = "pos_store"
)

// Provider is the non-secret part of a processor configuration.
// Secrets live in ProviderCredentials and are only read under system scope.
type Provider struct {
	Code       ProviderCode
	Name       string
	State      ProviderState
	CustomerID string
	PublicKey  string
	Methods    []MethodCode
}

// IsActive reports whether the provider accepts new transactions.
func (p *Provider) IsActive() bool {
	return p.State == ProviderTest || p.State == ProviderEnabled
}

// Supports reports whether the method is enabled on the provider.
func (p *Provider) Supports(method MethodCode) bool {
	for _, m := range p.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// ProviderCredentials are the secret-scoped keys of a provider.
type ProviderCredentials struct {
	PrivateKey    string
	SigningSecret string
}

// ValidateProvider enforces that an active provider carries its credentials.
func ValidateProvider(p *Provider, creds *ProviderCredentials) error {
	const op = "provider.validate"
	if p.State == ProviderDisabled {
		return nil
	}
	var err error
	if p.CustomerID == "" {
		err = AddFieldError(err, "customer_id", "customer id is required when the provider is not disabled")
	}
	if p.PublicKey == "" {
		err = AddFieldError(err, "public_key", "public key is required when the provider is not disabled")
	}
	if creds == nil || creds.PrivateKey == "" {
		err = AddFieldError(err, "private_key", "private key is required when the provider is not disabled")
	}
	if creds == nil || creds.SigningSecret == "" {
		err = AddFieldError(err, "signing_secret", "signing secret is required when the provider is not disabled")
	}
	if ve, ok := err.(*ValidationError); ok {
		ve.Op = op
		return ve
	}
	return nil
}

// TransactionState is the lifecycle state of a payment transaction.
type TransactionState string

const (
	StateDraft      TransactionState = "draft"
	StatePending    TransactionState = "pending"
	StateAuthorized TransactionState = "authorized"
	StateDone       TransactionState = "done"
	StateCancel     TransactionState = "cancel"
	StateError      TransactionState = "error"
)

// IsTerminal reports whether no further transition is possible.
func (s TransactionState) IsTerminal() bool {
	return s == StateDone || s == StateCancel || s == StateError
}

// Allocation is the residual of one invoice frozen at transaction creation.
type Allocation struct {
	InvoiceID int64           `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Transaction is a single attempt to collect money from a partner.
type Transaction struct {
	ID           int64
	Reference    string
	ProviderCode ProviderCode
	Method       MethodCode
	Amount       decimal.Decimal
	Currency     string
	PartnerID    int64

	Allocations  []Allocation
	SaleOrderIDs []int64

	State        TransactionState
	ExternalID   string
	ReceiptURL   string
	StateMessage string

	// Settled guards invoice posting and order confirmation so they run once.
	Settled bool

	SubmittedAt  *time.Time
	LastPolledAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InvoiceIDs returns the linked invoice ids in allocation order.
func (t *Transaction) InvoiceIDs() []int64 {
	ids := make([]int64, len(t.Allocations))
	for i, a := range t.Allocations {
		ids[i] = a.InvoiceID
	}
	return ids
}

// PendingSince is the moment the transaction started waiting on the processor.
func (t *Transaction) PendingSince() time.Time {
	if t.SubmittedAt != nil {
		return *t.SubmittedAt
	}
	return t.CreatedAt
}

// Buyer is the fiscal identity sent to the processor.
type Buyer struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
}

// GatewayRequest carries everything a processor needs to open a transaction.
type GatewayRequest struct {
	Provider    *Provider
	Credentials *ProviderCredentials
	Transaction *Transaction
	Buyer       Buyer
	ReturnURL   string
}

// GatewayResult is what a processor reports for a transaction.
type GatewayResult struct {
	// Code is the raw processor state, State its internal mapping.
	Code          string
	State         TransactionState
	TransactionID string
	ReceiptURL    string
	RedirectURL   string
}
