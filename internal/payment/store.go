package payment

import (
	"context"
	"time"

	"github.com/rutavity/payments/internal/domain"
)

// Repository is every read and write the payment core performs.
// Lookups of missing rows return a domain ENOTFOUND error.
type Repository interface {
	// Host partners
	GetPartner(ctx context.Context, id int64) (*domain.Partner, error)
	ListPartnerChildren(ctx context.Context, parentID int64) ([]domain.Partner, error)
	ListPOSConfigs(ctx context.Context, partnerID int64) ([]domain.POSConfig, error)

	// Host invoices. RegisterPayment locks the invoice, lowers its residual
	// and fails with EINTEGRITY when the residual no longer covers the amount.
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	ListInvoicesByPartners(ctx context.Context, partnerIDs []int64) ([]domain.Invoice, error)
	RegisterPayment(ctx context.Context, payment domain.InvoicePayment) error

	// Host sale orders. ConfirmSaleOrder with onCredit also adds the order
	// total to the partner's credit_to_invoice.
	GetSaleOrder(ctx context.Context, id int64) (*domain.SaleOrder, error)
	ConfirmSaleOrder(ctx context.Context, id int64, onCredit bool) error

	// Providers. GetProviderCredentials is the only read of secrets.
	GetProvider(ctx context.Context, code domain.ProviderCode) (*domain.Provider, error)
	GetProviderCredentials(ctx context.Context, code domain.ProviderCode) (*domain.ProviderCredentials, error)

	// Transactions
	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	GetTransaction(ctx context.Context, reference string) (*domain.Transaction, error)
	LockTransaction(ctx context.Context, reference string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error
	FindOpenTransactionForOrder(ctx context.Context, orderID int64, method domain.MethodCode) (*domain.Transaction, error)
	ListPollable(ctx context.Context, filter PollFilter) ([]domain.Transaction, error)
	TouchPolled(ctx context.Context, reference string, at time.Time) error
	AddTransactionNote(ctx context.Context, reference, note string, at time.Time) error
}

// Store is a Repository that can run a unit of work atomically.
// LockTransaction is only meaningful inside WithinTx.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

// PollFilter selects transactions awaiting a processor answer.
type PollFilter struct {
	States  []domain.TransactionState
	Methods []domain.MethodCode

	// PolledBefore matches transactions never polled or polled before it.
	PolledBefore time.Time
	Limit        int
}
