package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceState is the accounting state of an invoice.
type InvoiceState string

const (
	InvoiceStateDraft  InvoiceState = "draft"
	InvoiceStatePosted InvoiceState = "posted"
	InvoiceStateCancel InvoiceState = "cancel"
)

// PaymentState tracks how much of an invoice has been paid.
type PaymentState string

const (
	PaymentStateNotPaid   PaymentState = "not_paid"
	PaymentStatePartial   PaymentState = "partial"
	PaymentStateInPayment PaymentState = "in_payment"
	PaymentStatePaid      PaymentState = "paid"
	PaymentStateReversed  PaymentState = "reversed"
	PaymentStateBlocked   PaymentState = "blocked"
	PaymentStateLegacy    PaymentState = "invoicing_legacy"
)

// Invoice is a host-owned customer invoice.
type Invoice struct {
	ID           int64
	Name         string
	PartnerID    int64
	State        InvoiceState
	PaymentState PaymentState
	Currency     string
	Residual     decimal.Decimal
	DueDate      time.Time

	// ExtendedDueDate is set only when a due date extension was approved.
	ExtendedDueDate *time.Time
}

// IsPayable reports whether the invoice can be selected for payment.
func (i *Invoice) IsPayable() bool {
	if i.State != InvoiceStatePosted {
		return false
	}
	switch i.PaymentState {
	case PaymentStateNotPaid, PaymentStatePartial:
		return i.Residual.IsPositive()
	}
	return false
}

// EffectiveDueDate is the extended due date when one exists, else the original.
func (i *Invoice) EffectiveDueDate() time.Time {
	if i.ExtendedDueDate != nil {
		return *i.ExtendedDueDate
	}
	return i.DueDate
}

// IsOverdue reports whether the effective due date falls strictly before the
// calendar day of today. Due dates are calendar dates: their year, month
// and day are read as stored, whatever zone the scan attached.
func (i *Invoice) IsOverdue(today time.Time) bool {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	dy, dm, dd := i.EffectiveDueDate().Date()
	return time.Date(dy, dm, dd, 0, 0, 0, 0, today.Location()).Before(start)
}

// SaleOrderState is the lifecycle of a quotation/order.
type SaleOrderState string

const (
	SaleOrderDraft  SaleOrderState = "draft"
	SaleOrderSent   SaleOrderState = "sent"
	SaleOrderSale   SaleOrderState = "sale"
	SaleOrderCancel SaleOrderState = "cancel"
)

// SaleOrder is a host-owned order. The core confirms it once paid.
type SaleOrder struct {
	ID        int64
	Name      string
	PartnerID int64
	State     SaleOrderState
	Currency  string
	Total     decimal.Decimal
	LineCount int
	CarrierID *int64
}

// IsReady reports whether the order can be paid: it has lines and has not
// been confirmed or cancelled.
func (o *SaleOrder) IsReady() bool {
	return (o.State == SaleOrderDraft || o.State == SaleOrderSent) && o.LineCount > 0
}

// InvoicePayment is one payment entry registered against an invoice.
type InvoicePayment struct {
	InvoiceID int64
	Reference string
	Method    MethodCode
	Amount    decimal.Decimal

	// OnCredit posts the amount to the partner's credit balance.
	OnCredit bool
}
