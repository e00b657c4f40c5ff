package payment

import (
	"context"

	"github.com/rutavity/payments/internal/domain"
)

// ProcessCredit settles a credit transaction. The portfolio and credit
// checks run again while the transaction is still a draft; processing an
// already settled transaction is a no-op.
func (s *Service) ProcessCredit(ctx context.Context, provider domain.ProviderCode, reference string, partnerID int64) (*domain.Transaction, error) {
	tx, err := s.ownedTransaction(ctx, reference, partnerID, domain.MethodCredit)
	if err != nil {
		return nil, err
	}
	if tx.ProviderCode != provider {
		return nil, ErrWrongProvider
	}

	if tx.State == domain.StateDraft {
		if err := s.checkCredit(ctx, tx.PartnerID, tx.Amount); err != nil {
			rule, _ := RuleFor(tx.Method)
			return nil, s.reject("payment.process_credit", rule, rejectReason(err), err)
		}
	}

	out, err := s.Apply(ctx, reference, EventOfflineSettle, EventInput{})
	if err != nil {
		return nil, err
	}
	if out.Integrity != nil {
		return out.Transaction, out.Integrity
	}
	return out.Transaction, nil
}

// ProcessPOSStore moves a pay-at-store draft to pending, where it waits for
// the cashier. Repeated calls leave the transaction as it is.
func (s *Service) ProcessPOSStore(ctx context.Context, reference string, partnerID int64) (*domain.Transaction, error) {
	if _, err := s.ownedTransaction(ctx, reference, partnerID, domain.MethodPOSStore); err != nil {
		return nil, err
	}

	out, err := s.Apply(ctx, reference, EventOfflineSettle, EventInput{})
	if err != nil {
		return nil, err
	}
	return out.Transaction, nil
}

// SettlePOSOrder is called when a cashier settles a sale order at the store.
// It drives the order's pending pay-at-store transaction to done, which
// confirms the order.
func (s *Service) SettlePOSOrder(ctx context.Context, saleOrderID int64) (*Outcome, error) {
	const op = "payment.settle_pos_order"

	tx, err := s.store.FindOpenTransactionForOrder(ctx, saleOrderID, domain.MethodPOSStore)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, domain.WrapError(ErrNoOpenPOSTransaction, domain.ENOTFOUND, op, domain.ErrorMessage(ErrNoOpenPOSTransaction))
		}
		return nil, err
	}

	out, err := s.Apply(ctx, tx.Reference, EventApprove, EventInput{Message: "settled at store"})
	if err != nil {
		return nil, err
	}
	return out, out.Integrity
}

// ownedTransaction loads a transaction and checks it belongs to the partner
// and was started with method.
func (s *Service) ownedTransaction(ctx context.Context, reference string, partnerID int64, method domain.MethodCode) (*domain.Transaction, error) {
	tx, err := s.TransactionForPartner(ctx, reference, partnerID)
	if err != nil {
		return nil, err
	}
	if tx.Method != method {
		return nil, ErrWrongMethod
	}
	return tx, nil
}
