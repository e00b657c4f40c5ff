// Package payments serves the payment endpoints of the partner portal and
// the processor callbacks.
package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rutavity/payments/internal/cookie"
	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/payment"
)

// Service is the part of payment.Service the handlers drive.
type Service interface {
	PayMany(ctx context.Context, params payment.PayManyParams) (*payment.CheckoutResult, error)
	PayOrder(ctx context.Context, params payment.PayOrderParams) (*payment.CheckoutResult, error)

	ProcessCredit(ctx context.Context, provider domain.ProviderCode, reference string, partnerID int64) (*domain.Transaction, error)
	ProcessPOSStore(ctx context.Context, reference string, partnerID int64) (*domain.Transaction, error)
	SettlePOSOrder(ctx context.Context, saleOrderID int64) (*payment.Outcome, error)

	HandleReturn(ctx context.Context, provider domain.ProviderCode, params payment.ReturnParams) (*domain.Transaction, error)
	HandleWebhook(ctx context.Context, provider domain.ProviderCode, body []byte, signature string) (*payment.Outcome, error)
	Cancel(ctx context.Context, reference, reason string) (*payment.Outcome, error)

	TransactionForPartner(ctx context.Context, reference string, partnerID int64) (*domain.Transaction, error)
	InlineFormData(ctx context.Context, method domain.MethodCode, partnerID int64) (map[string]any, error)
	MethodsForProvider(ctx context.Context, code domain.ProviderCode) ([]payment.MethodRule, error)
	OverdueInvoices(ctx context.Context, partnerID int64, today time.Time) ([]domain.Invoice, error)
}

var _ Service = (*payment.Service)(nil)

// Config holds the portal URLs the handlers redirect to.
type Config struct {
	// ConfirmationPath is the shop page shown after a payment, relative to
	// the portal origin. The reference is appended as a query parameter.
	ConfirmationPath string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Handler serves every payment endpoint.
type Handler struct {
	svc     Service
	cookies *cookie.Config
	config  Config
	now     func() time.Time
}

// New creates a payment Handler.
func New(svc Service, cookies *cookie.Config, config Config) *Handler {
	if config.ConfirmationPath == "" {
		config.ConfirmationPath = "/shop/payment/confirmation"
	}
	if cookies == nil {
		cookies = cookie.NewConfig("", false)
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		svc:     svc,
		cookies: cookies,
		config:  config,
		now:     now,
	}
}

func (h *Handler) confirmationURL(reference string) string {
	sep := "?"
	if strings.Contains(h.config.ConfirmationPath, "?") {
		sep = "&"
	}
	return h.config.ConfirmationPath + sep + "reference=" + reference
}

// transactionView is the JSON shape of a transaction. Credentials and
// internal ids stay out of it.
type transactionView struct {
	Reference    string                  `json:"reference"`
	Provider     domain.ProviderCode     `json:"provider"`
	Method       domain.MethodCode       `json:"method"`
	State        domain.TransactionState `json:"state"`
	Amount       string                  `json:"amount"`
	Currency     string                  `json:"currency"`
	Message      string                  `json:"message,omitempty"`
	ReceiptURL   string                  `json:"receipt_url,omitempty"`
	InvoiceIDs   []int64                 `json:"invoice_ids,omitempty"`
	SaleOrderIDs []int64                 `json:"sale_order_ids,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func viewOf(tx *domain.Transaction) transactionView {
	return transactionView{
		Reference:    tx.Reference,
		Provider:     tx.ProviderCode,
		Method:       tx.Method,
		State:        tx.State,
		Amount:       tx.Amount.String(),
		Currency:     tx.Currency,
		Message:      tx.StateMessage,
		ReceiptURL:   tx.ReceiptURL,
		InvoiceIDs:   tx.InvoiceIDs(),
		SaleOrderIDs: tx.SaleOrderIDs,
		CreatedAt:    tx.CreatedAt,
		UpdatedAt:    tx.UpdatedAt,
	}
}

// firstOrder is the sale order a transaction pays, if any.
func firstOrder(tx *domain.Transaction) int64 {
	if len(tx.SaleOrderIDs) == 0 {
		return 0
	}
	return tx.SaleOrderIDs[0]
}

// bind reads the request into dst: the JSON body when the client sent
// JSON, otherwise the query and form values through fill.
func bind(r *http.Request, dst any, fill func(form url.Values)) error {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return domain.Invalid("payments.bind", "Malformed JSON body")
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return domain.Invalid("payments.bind", "Malformed form submission")
	}
	fill(r.Form)
	return nil
}

// parseIDs reads ids given as repeated values or comma lists. Malformed
// entries become zero so validation reports them.
func parseIDs(values []string) []int64 {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, _ := strconv.ParseInt(part, 10, 64)
			ids = append(ids, id)
		}
	}
	return ids
}
