package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rutavity/payments/internal/credit"
	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/telemetry"
)

// PayManyParams selects invoices to settle in one transaction.
type PayManyParams struct {
	PartnerID  int64
	InvoiceIDs []int64
	Provider   domain.ProviderCode
	Method     domain.MethodCode
}

// PayOrderParams selects a sale order to pay.
type PayOrderParams struct {
	PartnerID   int64
	SaleOrderID int64
	Provider    domain.ProviderCode
	Method      domain.MethodCode
}

// CheckoutResult is a freshly originated transaction and where to send the
// buyer next. External methods set RedirectURL, offline methods ProcessURL.
type CheckoutResult struct {
	Transaction *domain.Transaction
	RedirectURL string
	ProcessURL  string
}

// checkout is a validated payment intent ready to be originated.
type checkout struct {
	partner     *domain.Partner
	rule        MethodRule
	provider    domain.ProviderCode
	amount      decimal.Decimal
	currency    string
	allocations []domain.Allocation
	orders      []int64
}

// PayMany originates one transaction covering several invoices of the
// partner's credit group. The summed residuals are frozen on the transaction.
func (s *Service) PayMany(ctx context.Context, params PayManyParams) (*CheckoutResult, error) {
	const op = "payment.pay_many"

	rule, err := s.checkoutRule(op, params.Method)
	if err != nil {
		return nil, err
	}
	if !rule.AllowsInvoices {
		return nil, s.reject(op, rule, "invoices_not_allowed", ErrInvoicesNotAllowed)
	}

	ids := uniqueIDs(params.InvoiceIDs)
	if len(ids) == 0 {
		return nil, s.reject(op, rule, "no_invoices", ErrNoInvoices)
	}

	partner, err := s.checkoutPartner(ctx, params.PartnerID)
	if err != nil {
		return nil, err
	}

	res, err := credit.NewResolver(s.store).Resolve(ctx, partner.ID)
	if err != nil {
		return nil, err
	}
	group := make(map[int64]bool, len(res.Group))
	for _, id := range res.GroupIDs() {
		group[id] = true
	}

	c := checkout{
		partner:  partner,
		rule:     rule,
		provider: params.Provider,
		amount:   decimal.Zero,
	}
	for _, id := range ids {
		inv, err := s.store.GetInvoice(ctx, id)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				return nil, s.reject(op, rule, "foreign_invoice", ErrForeignInvoice)
			}
			return nil, err
		}
		if !group[inv.PartnerID] {
			return nil, s.reject(op, rule, "foreign_invoice", ErrForeignInvoice)
		}
		if !inv.IsPayable() {
			return nil, s.reject(op, rule, "not_payable",
				domain.WrapError(ErrInvoiceNotPayable, domain.EINVALID, op,
					fmt.Sprintf("Invoice %s cannot be paid online", inv.Name)))
		}
		if c.currency == "" {
			c.currency = inv.Currency
		} else if inv.Currency != c.currency {
			return nil, s.reject(op, rule, "mixed_currency", ErrMixedCurrency)
		}

		c.amount = c.amount.Add(inv.Residual)
		c.allocations = append(c.allocations, domain.Allocation{InvoiceID: inv.ID, Amount: inv.Residual})
	}

	return s.originate(ctx, c)
}

// PayOrder originates a transaction for a sale order's total.
func (s *Service) PayOrder(ctx context.Context, params PayOrderParams) (*CheckoutResult, error) {
	const op = "payment.pay_order"

	rule, err := s.checkoutRule(op, params.Method)
	if err != nil {
		return nil, err
	}

	partner, err := s.checkoutPartner(ctx, params.PartnerID)
	if err != nil {
		return nil, err
	}

	order, err := s.store.GetSaleOrder(ctx, params.SaleOrderID)
	if err != nil {
		return nil, err
	}
	if order.PartnerID != partner.ID {
		return nil, s.reject(op, rule, "foreign_order", ErrForeignOrder)
	}
	if !order.IsReady() {
		return nil, s.reject(op, rule, "order_not_ready", ErrOrderNotReady)
	}
	if rule.RequiresShipping && order.CarrierID == nil {
		return nil, s.reject(op, rule, "carrier_required", ErrCarrierRequired)
	}

	return s.originate(ctx, checkout{
		partner:  partner,
		rule:     rule,
		provider: params.Provider,
		amount:   order.Total,
		currency: order.Currency,
		orders:   []int64{order.ID},
	})
}

// originate runs the method preconditions, creates the draft and, for
// external methods, submits it to the processor. A processor failure leaves
// the draft in place and surfaces an upstream error.
func (s *Service) originate(ctx context.Context, c checkout) (*CheckoutResult, error) {
	const op = "payment.originate"

	provider, err := s.store.GetProvider(ctx, c.provider)
	if err != nil {
		return nil, err
	}
	if !provider.IsActive() {
		return nil, s.reject(op, c.rule, "provider_inactive", ErrProviderInactive)
	}
	if !c.rule.supportedBy(provider.Code) || !provider.Supports(c.rule.Method) {
		return nil, s.reject(op, c.rule, "method_unavailable", ErrMethodUnavailable)
	}

	if c.rule.RequiresCreditCheck {
		if err := s.checkCredit(ctx, c.partner.ID, c.amount); err != nil {
			return nil, s.reject(op, c.rule, rejectReason(err), err)
		}
	}
	if c.rule.RequiresPOSCustomer {
		if err := s.checkPOSCustomer(ctx, c.partner); err != nil {
			return nil, s.reject(op, c.rule, rejectReason(err), err)
		}
	}

	now := s.now()
	tx := &domain.Transaction{
		Reference:    s.newReference(),
		ProviderCode: provider.Code,
		Method:       c.rule.Method,
		Amount:       c.amount,
		Currency:     c.currency,
		PartnerID:    c.partner.ID,
		Allocations:  c.allocations,
		SaleOrderIDs: c.orders,
		State:        domain.StateDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	telemetry.Payments.TransactionCreated(string(provider.Code), string(tx.Method))

	s.logger.InfoContext(ctx, "Transaction created",
		"reference", tx.Reference,
		"provider", tx.ProviderCode,
		"method", tx.Method,
		"partner_id", tx.PartnerID,
		"amount", tx.Amount.String(),
		"currency", tx.Currency,
	)

	if !c.rule.ExternalLeg {
		return &CheckoutResult{Transaction: tx, ProcessURL: s.processURL(tx.Method, tx.Reference)}, nil
	}

	creds, err := s.store.GetProviderCredentials(ctx, provider.Code)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.Create(ctx, domain.GatewayRequest{
		Provider:    provider,
		Credentials: creds,
		Transaction: tx,
		Buyer:       c.partner.Buyer(),
		ReturnURL:   s.returnURL(provider.Code, tx.Reference),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Processor rejected transaction creation",
			"reference", tx.Reference,
			"error", err,
		)
		return nil, domain.Upstream(err, op, domain.ErrorMessage(ErrProcessorUnavailable)+", please try again later")
	}

	out, err := s.Apply(ctx, tx.Reference, EventSubmit, EventInput{
		ExternalID: result.TransactionID,
		ReceiptURL: result.ReceiptURL,
	})
	if err != nil {
		return nil, err
	}

	// The processor may answer creation with a final state already.
	if ev, ok := EventForState(result.State); ok {
		if out, err = s.Apply(ctx, tx.Reference, ev, EventInput{}); err != nil {
			return nil, err
		}
	}

	return &CheckoutResult{Transaction: out.Transaction, RedirectURL: result.RedirectURL}, nil
}

// checkCredit runs the portfolio and available-credit checks for a credit
// payment of amount.
func (s *Service) checkCredit(ctx context.Context, partnerID int64, amount decimal.Decimal) error {
	const op = "payment.check_credit"

	resolver := credit.NewResolver(s.store)
	if err := resolver.CheckPortfolio(ctx, partnerID); err != nil {
		return err
	}
	ok, err := resolver.HasCredit(ctx, partnerID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return domain.WrapError(credit.ErrInsufficientCredit, domain.EINVALID, op, domain.ErrorMessage(credit.ErrInsufficientCredit))
	}
	return nil
}

func (s *Service) checkPOSCustomer(ctx context.Context, partner *domain.Partner) error {
	if !partner.IsPOSCustomer {
		return ErrNotPOSCustomer
	}
	configs, err := s.store.ListPOSConfigs(ctx, partner.ID)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return ErrNoPOSConfig
	}
	return nil
}

func (s *Service) checkoutRule(op string, method domain.MethodCode) (MethodRule, error) {
	rule, ok := RuleFor(method)
	if !ok {
		return MethodRule{}, domain.WrapError(ErrUnknownMethod, domain.EINVALID, op,
			fmt.Sprintf("Unknown payment method %q", method))
	}
	return rule, nil
}

func (s *Service) checkoutPartner(ctx context.Context, partnerID int64) (*domain.Partner, error) {
	if partnerID == 0 {
		return nil, ErrAnonymousPartner
	}
	partner, err := s.store.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if partner.IsPublic {
		return nil, ErrAnonymousPartner
	}
	return partner, nil
}

// reject records a refused checkout and returns err unchanged.
func (s *Service) reject(op string, rule MethodRule, reason string, err error) error {
	telemetry.Payments.CheckoutRejected(string(rule.Method), reason)
	s.logger.Debug("Checkout rejected", "op", op, "method", rule.Method, "reason", reason, "error", err)
	return err
}

func rejectReason(err error) string {
	switch {
	case domain.IsCode(err, domain.EINTEGRITY):
		return "hierarchy"
	case errors.Is(err, credit.ErrPortfolioBlocked):
		return "portfolio_blocked"
	case errors.Is(err, credit.ErrInsufficientCredit):
		return "insufficient_credit"
	case errors.Is(err, ErrNotPOSCustomer):
		return "not_pos_customer"
	case errors.Is(err, ErrNoPOSConfig):
		return "no_pos_config"
	}
	return "other"
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
