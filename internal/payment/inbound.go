package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rutavity/payments/internal/credit"
	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/telemetry"
)

// ReturnParams is what the processor carries on the browser redirect.
type ReturnParams struct {
	Reference     string
	State         string
	TransactionID string
	ReceiptURL    string
	Signature     string
}

// webhookNotice is the JSON body of a processor notification.
type webhookNotice struct {
	Reference     string `json:"reference"`
	State         string `json:"state"`
	TransactionID string `json:"transaction_id"`
	ReceiptURL    string `json:"receipt_url"`
}

// HandleReturn processes the browser coming back from the processor. A bad
// signature changes nothing, and a carried state is only trusted when the
// signature covers it. Without a carried state the processor is queried.
func (s *Service) HandleReturn(ctx context.Context, provider domain.ProviderCode, params ReturnParams) (*domain.Transaction, error) {
	const op = "payment.handle_return"

	tx, err := s.store.GetTransaction(ctx, params.Reference)
	if err != nil {
		return nil, err
	}
	if tx.ProviderCode != provider {
		return nil, ErrWrongProvider
	}

	p, creds, err := s.providerWithCredentials(ctx, provider)
	if err != nil {
		return nil, err
	}

	if !s.gateway.VerifyReturn(p, creds, tx, params.State, params.TransactionID, params.Signature) {
		s.logger.WarnContext(ctx, "Return signature mismatch", "reference", tx.Reference, "provider", provider)
		telemetry.Payments.SignatureFailure("return")
		return nil, domain.WrapError(ErrSignature, domain.ESIGNATURE, op, domain.ErrorMessage(ErrSignature))
	}

	in := EventInput{ExternalID: params.TransactionID, ReceiptURL: params.ReceiptURL}

	var state domain.TransactionState
	if params.State != "" {
		state = s.gateway.MapState(params.State)
	} else {
		result, err := s.gateway.Query(ctx, p, creds, tx.Reference)
		if err != nil {
			// The poller converges it later.
			s.logger.WarnContext(ctx, "Processor query failed on return", "reference", tx.Reference, "error", err)
			return tx, nil
		}
		state = result.State
		if in.ExternalID == "" {
			in.ExternalID = result.TransactionID
		}
		if in.ReceiptURL == "" {
			in.ReceiptURL = result.ReceiptURL
		}
	}

	ev, ok := EventForState(state)
	if !ok {
		return tx, nil
	}
	out, err := s.Apply(ctx, tx.Reference, ev, in)
	if err != nil {
		return nil, err
	}
	return out.Transaction, nil
}

// HandleWebhook processes a signed server-to-server notification.
func (s *Service) HandleWebhook(ctx context.Context, provider domain.ProviderCode, body []byte, signature string) (*Outcome, error) {
	const op = "payment.handle_webhook"

	creds, err := s.store.GetProviderCredentials(ctx, provider)
	if err != nil {
		return nil, err
	}
	if !s.gateway.VerifyWebhook(creds, body, signature) {
		s.logger.WarnContext(ctx, "Webhook signature mismatch", "provider", provider)
		telemetry.Payments.SignatureFailure("webhook")
		return nil, domain.WrapError(ErrSignature, domain.ESIGNATURE, op, domain.ErrorMessage(ErrSignature))
	}

	var notice webhookNotice
	if err := json.Unmarshal(body, &notice); err != nil || notice.Reference == "" || notice.State == "" {
		return nil, domain.WrapError(ErrMalformedNotice, domain.EINVALID, op, domain.ErrorMessage(ErrMalformedNotice))
	}

	tx, err := s.store.GetTransaction(ctx, notice.Reference)
	if err != nil {
		return nil, err
	}
	if tx.ProviderCode != provider {
		return nil, ErrWrongProvider
	}

	ev, ok := EventForState(s.gateway.MapState(notice.State))
	if !ok {
		return &Outcome{Transaction: tx, From: tx.State, To: tx.State}, nil
	}
	return s.Apply(ctx, tx.Reference, ev, EventInput{
		ExternalID: notice.TransactionID,
		ReceiptURL: notice.ReceiptURL,
	})
}

// Cancel is the administrative cancel. The reason is kept in the audit trail.
func (s *Service) Cancel(ctx context.Context, reference, reason string) (*Outcome, error) {
	if reason == "" {
		reason = "cancelled by administrator"
	}
	return s.Apply(ctx, reference, EventCancel, EventInput{Message: reason})
}

// Sync asks the processor for a transaction's state and applies it. The
// poll timestamp is recorded whether or not the processor answers.
func (s *Service) Sync(ctx context.Context, reference string, now time.Time) (*Outcome, error) {
	const op = "payment.sync"

	tx, err := s.store.GetTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	unchanged := &Outcome{Transaction: tx, From: tx.State, To: tx.State}
	if tx.State.IsTerminal() {
		return unchanged, nil
	}

	p, creds, err := s.providerWithCredentials(ctx, tx.ProviderCode)
	if err != nil {
		return nil, err
	}

	result, qerr := s.gateway.Query(ctx, p, creds, tx.Reference)
	if err := s.store.TouchPolled(ctx, tx.Reference, now); err != nil {
		return nil, err
	}
	if qerr != nil {
		return nil, domain.Upstream(qerr, op, domain.ErrorMessage(ErrProcessorUnavailable))
	}

	ev, ok := EventForState(result.State)
	if !ok {
		return unchanged, nil
	}
	return s.Apply(ctx, tx.Reference, ev, EventInput{
		ExternalID: result.TransactionID,
		ReceiptURL: result.ReceiptURL,
	})
}

// Expire moves a transaction that waited past the staleness horizon to error.
func (s *Service) Expire(ctx context.Context, reference string) (*Outcome, error) {
	return s.Apply(ctx, reference, EventExpire, EventInput{Message: "no final answer from the processor"})
}

// Pollable lists transactions the reconciliation poller should look at.
func (s *Service) Pollable(ctx context.Context, filter PollFilter) ([]domain.Transaction, error) {
	return s.store.ListPollable(ctx, filter)
}

// TransactionForPartner returns a transaction owned by the partner.
func (s *Service) TransactionForPartner(ctx context.Context, reference string, partnerID int64) (*domain.Transaction, error) {
	if partnerID == 0 {
		return nil, ErrAnonymousPartner
	}
	tx, err := s.store.GetTransaction(ctx, reference)
	if err != nil {
		return nil, err
	}
	if tx.PartnerID != partnerID {
		return nil, ErrTransactionNotOwned
	}
	return tx, nil
}

// OverdueInvoices lists payable invoices of the partner's credit group whose
// effective due date is before today.
func (s *Service) OverdueInvoices(ctx context.Context, partnerID int64, today time.Time) ([]domain.Invoice, error) {
	if partnerID == 0 {
		return nil, ErrAnonymousPartner
	}
	res, err := credit.NewResolver(s.store).Resolve(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.store.ListInvoicesByPartners(ctx, res.GroupIDs())
	if err != nil {
		return nil, err
	}

	overdue := make([]domain.Invoice, 0, len(invoices))
	for i := range invoices {
		if invoices[i].IsPayable() && invoices[i].IsOverdue(today) {
			overdue = append(overdue, invoices[i])
		}
	}
	return overdue, nil
}
