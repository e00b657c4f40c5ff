package payment

import (
	"github.com/rutavity/payments/internal/domain"
)

// State machine errors
var (
	ErrTransactionTerminal = domain.Errorf(domain.ESTATE, "", "Transaction is already finalized")
	ErrInvalidTransition   = domain.Errorf(domain.ESTATE, "", "This action does not apply to the transaction in its current state")
)

// Caller precondition errors
var (
	ErrUnknownMethod        = domain.Errorf(domain.EINVALID, "", "Unknown payment method")
	ErrMethodUnavailable    = domain.Errorf(domain.EINVALID, "", "This payment method is not available for the selected provider")
	ErrProviderInactive     = domain.Errorf(domain.EINVALID, "", "This payment provider is not accepting payments")
	ErrNoInvoices           = domain.Errorf(domain.EINVALID, "", "Select at least one invoice to pay")
	ErrForeignInvoice       = domain.Errorf(domain.EINVALID, "", "One of the selected invoices does not belong to your account")
	ErrInvoiceNotPayable    = domain.Errorf(domain.EINVALID, "", "One of the selected invoices cannot be paid online")
	ErrMixedCurrency        = domain.Errorf(domain.EINVALID, "", "All selected invoices must share the same currency")
	ErrInvoicesNotAllowed   = domain.Errorf(domain.EINVALID, "", "This payment method cannot be used to pay invoices")
	ErrNotPOSCustomer       = domain.Errorf(domain.EINVALID, "", "Pay at store is only available to store customers")
	ErrNoPOSConfig          = domain.Errorf(domain.EINVALID, "", "No store is configured for your account")
	ErrForeignOrder         = domain.Errorf(domain.EFORBIDDEN, "", "This order belongs to another account")
	ErrOrderNotReady        = domain.Errorf(domain.EINVALID, "", "This order cannot be paid yet")
	ErrCarrierRequired      = domain.Errorf(domain.EINVALID, "", "Select a shipping method before paying")
	ErrWrongMethod          = domain.Errorf(domain.EINVALID, "", "Transaction was started with a different payment method")
	ErrWrongProvider        = domain.Errorf(domain.EINVALID, "", "Transaction belongs to a different payment provider")
	ErrAnonymousPartner     = domain.Errorf(domain.EUNAUTHORIZED, "", "Sign in to pay")
	ErrTransactionNotOwned  = domain.Errorf(domain.EFORBIDDEN, "", "This transaction belongs to another account")
	ErrNoOpenPOSTransaction = domain.Errorf(domain.ENOTFOUND, "", "No pending store payment for this order")
)

// Processor errors
var (
	ErrProcessorUnavailable = domain.Errorf(domain.EUPSTREAM, "", "Payment processor unavailable")
	ErrSignature            = domain.Errorf(domain.ESIGNATURE, "", "Payment response signature is invalid")
	ErrMalformedNotice      = domain.Errorf(domain.EINVALID, "", "Payment notification is malformed")
)

// Integrity errors move a transaction to error for human review.
var (
	ErrResidualChanged = domain.Errorf(domain.EINTEGRITY, "", "Invoice residual changed since the payment was started")
	ErrCreditExceeded  = domain.Errorf(domain.EINTEGRITY, "", "Posting this payment would exceed the credit limit")
)
