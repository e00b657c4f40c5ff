package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rutavity/payments/internal/credit"
	"github.com/rutavity/payments/internal/domain"
	"github.com/rutavity/payments/internal/money"
	"github.com/rutavity/payments/internal/telemetry"
)

//go:generate mockgen -destination=mocks/gateway.go -package=mocks . Gateway

// Gateway is the processor port used for external-leg methods.
type Gateway interface {
	// Create opens a transaction at the processor.
	Create(ctx context.Context, req domain.GatewayRequest) (*domain.GatewayResult, error)

	// Query reports the processor's current view of a reference.
	Query(ctx context.Context, provider *domain.Provider, creds *domain.ProviderCredentials, reference string) (*domain.GatewayResult, error)

	// MapState maps a raw processor state code onto a transaction state.
	MapState(code string) domain.TransactionState

	// VerifyReturn checks the signature carried by a browser return,
	// including the carried state and transaction id when present.
	VerifyReturn(provider *domain.Provider, creds *domain.ProviderCredentials, tx *domain.Transaction, state, transactionID, signature string) bool

	// VerifyWebhook checks the signature of a server-to-server notification body.
	VerifyWebhook(creds *domain.ProviderCredentials, body []byte, signature string) bool
}

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	// BaseURL is the public origin used to build return and process URLs.
	BaseURL string

	Now          func() time.Time
	NewReference money.ReferenceGenerator
	Publisher    Publisher
	Notifier     Notifier
}

// Service is the payment orchestration core. Every state change goes
// through Apply.
type Service struct {
	store     Store
	gateway   Gateway
	publisher Publisher
	notifier  Notifier
	logger    *slog.Logger

	baseURL      string
	now          func() time.Time
	newReference money.ReferenceGenerator
}

// NewService creates a payment Service.
func NewService(store Store, gateway Gateway, opts Options, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("payment: store is required")
	}
	if gateway == nil {
		return nil, errors.New("payment: gateway is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		store:        store,
		gateway:      gateway,
		publisher:    opts.Publisher,
		notifier:     opts.Notifier,
		logger:       logger.With("component", "payment"),
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		now:          opts.Now,
		newReference: opts.NewReference,
	}
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newReference == nil {
		s.newReference = money.NewReference
	}
	return s, nil
}

// EventInput carries processor data recorded alongside a transition.
type EventInput struct {
	ExternalID string
	ReceiptURL string
	Message    string
}

// Outcome describes what Apply did.
type Outcome struct {
	Transaction *domain.Transaction
	From        domain.TransactionState
	To          domain.TransactionState
	Event       Event

	// Changed is false when the event was already in effect or was ignored
	// because the transaction is terminal.
	Changed bool

	// Integrity is set when settlement was aborted and the transaction moved
	// to error instead of done.
	Integrity error
}

// Apply feeds an event into the state machine for one transaction.
//
// The transaction row is locked for the whole unit of work, so concurrent
// callers (poller, browser return, webhook) serialize and exactly one of
// them performs a given transition. Events aimed at a terminal transaction
// are logged and ignored.
func (s *Service) Apply(ctx context.Context, reference string, ev Event, in EventInput) (*Outcome, error) {
	const op = "payment.apply"

	out := &Outcome{Event: ev}
	ignored := false

	err := s.store.WithinTx(ctx, func(ctx context.Context, repo Repository) error {
		tx, err := repo.LockTransaction(ctx, reference)
		if err != nil {
			return err
		}
		out.Transaction = tx
		out.From = tx.State
		out.To = tx.State

		rule, ok := RuleFor(tx.Method)
		if !ok {
			return domain.Internal(nil, op, fmt.Sprintf("transaction %s has unknown method %q", tx.Reference, tx.Method))
		}

		next, err := Next(tx.State, ev, rule)
		if err != nil {
			if errors.Is(err, ErrTransactionTerminal) {
				ignored = true
				return nil
			}
			return err
		}
		if next == tx.State {
			return nil
		}

		now := s.now()
		message := in.Message

		if next == domain.StateDone && !tx.Settled {
			if err := checkSettlement(ctx, repo, tx, rule); err != nil {
				if !domain.IsCode(err, domain.EINTEGRITY) {
					return err
				}
				out.Integrity = err
				next = domain.StateError
				message = domain.ErrorMessage(err)
			} else if err := settle(ctx, repo, tx, rule); err != nil {
				return err
			}
		}

		if next == domain.StatePending && tx.SubmittedAt == nil {
			tx.SubmittedAt = &now
		}
		if in.ExternalID != "" {
			tx.ExternalID = in.ExternalID
		}
		if in.ReceiptURL != "" {
			tx.ReceiptURL = in.ReceiptURL
		}
		if message != "" {
			tx.StateMessage = message
		}
		tx.State = next
		tx.UpdatedAt = now

		if err := repo.UpdateTransaction(ctx, tx); err != nil {
			return err
		}

		note := fmt.Sprintf("%s: %s -> %s", ev, out.From, next)
		if message != "" {
			note += " (" + message + ")"
		}
		if err := repo.AddTransactionNote(ctx, tx.Reference, note, now); err != nil {
			return err
		}

		out.To = next
		out.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ignored {
		s.logger.InfoContext(ctx, "Event ignored on finalized transaction",
			"reference", reference,
			"method", out.Transaction.Method,
			"state", out.From,
			"event", ev,
		)
		telemetry.Payments.EventIgnored(string(out.Transaction.Method), string(ev))
		return out, nil
	}

	if out.Changed {
		s.afterCommit(ctx, out)
	}
	return out, nil
}

// checkSettlement verifies that a transaction can still be posted exactly as
// frozen. It runs before any write so a failure leaves no partial posting.
func checkSettlement(ctx context.Context, repo Repository, tx *domain.Transaction, rule MethodRule) error {
	const op = "payment.check_settlement"

	for _, a := range tx.Allocations {
		inv, err := repo.GetInvoice(ctx, a.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Residual.LessThan(a.Amount) {
			return domain.WrapError(ErrResidualChanged, domain.EINTEGRITY, op,
				fmt.Sprintf("invoice %s residual %s is below the frozen amount %s", inv.Name, inv.Residual, a.Amount))
		}
	}

	if rule.RequiresCreditCheck {
		res, err := credit.NewResolver(repo).Resolve(ctx, tx.PartnerID)
		if err != nil {
			return err
		}
		if res.Exposure.Add(tx.Amount).GreaterThan(res.Limit) {
			return domain.WrapError(ErrCreditExceeded, domain.EINTEGRITY, op,
				fmt.Sprintf("exposure %s plus %s exceeds limit %s", res.Exposure, tx.Amount, res.Limit))
		}
	}
	return nil
}

// settle posts the frozen allocations and confirms linked orders. Credit
// methods raise the group exposure by what they post. The Settled flag
// makes it run at most once per transaction.
func settle(ctx context.Context, repo Repository, tx *domain.Transaction, rule MethodRule) error {
	for _, a := range tx.Allocations {
		err := repo.RegisterPayment(ctx, domain.InvoicePayment{
			InvoiceID: a.InvoiceID,
			Reference: tx.Reference,
			Method:    tx.Method,
			Amount:    a.Amount,
			OnCredit:  rule.RequiresCreditCheck,
		})
		if err != nil {
			return err
		}
	}
	for _, id := range tx.SaleOrderIDs {
		if err := repo.ConfirmSaleOrder(ctx, id, rule.RequiresCreditCheck); err != nil {
			return err
		}
	}
	tx.Settled = true
	return nil
}

// afterCommit runs best-effort side effects. Failures are logged and never
// undo the committed transition.
func (s *Service) afterCommit(ctx context.Context, out *Outcome) {
	tx := out.Transaction
	method := string(tx.Method)

	s.logger.InfoContext(ctx, "Transaction transitioned",
		"reference", tx.Reference,
		"method", tx.Method,
		"from", out.From,
		"to", out.To,
		"event", out.Event,
	)
	telemetry.Payments.Transition(method, string(out.From), string(out.To))

	if out.Integrity != nil {
		s.logger.ErrorContext(ctx, "Settlement aborted, transaction needs review",
			"reference", tx.Reference,
			"method", tx.Method,
			"error", out.Integrity,
		)
		telemetry.Payments.IntegrityFailure(method)
		telemetry.CaptureTransactionError(ctx, out.Integrity, tx.Reference, method)
	}

	if out.To == domain.StateDone {
		amount, _ := tx.Amount.Float64()
		telemetry.Payments.AmountSettled(method, tx.Currency, amount)
	}

	err := s.publisher.PublishTransition(ctx, TransitionEvent{
		Reference: tx.Reference,
		Provider:  tx.ProviderCode,
		Method:    tx.Method,
		PartnerID: tx.PartnerID,
		Amount:    tx.Amount.String(),
		Currency:  tx.Currency,
		From:      out.From,
		To:        out.To,
		Event:     out.Event,
		Message:   tx.StateMessage,
		At:        tx.UpdatedAt,
	})
	telemetry.Payments.EventPublished(err)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish transition", "reference", tx.Reference, "error", err)
	}

	if out.To == domain.StateCancel {
		partner, err := s.store.GetPartner(ctx, tx.PartnerID)
		if err == nil {
			err = s.notifier.NotifyCancelled(ctx, partner, tx)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to notify partner of cancellation", "reference", tx.Reference, "error", err)
		}
	}
}

func (s *Service) returnURL(provider domain.ProviderCode, reference string) string {
	return fmt.Sprintf("%s/payment/%s/return?reference=%s", s.baseURL, provider, reference)
}

func (s *Service) processURL(method domain.MethodCode, reference string) string {
	switch method {
	case domain.MethodPOSStore:
		return fmt.Sprintf("%s/payment/pos_store/process?reference=%s", s.baseURL, reference)
	default:
		return fmt.Sprintf("%s/payment/%s/process", s.baseURL, method)
	}
}

// providerWithCredentials loads a provider and its secrets under system scope.
func (s *Service) providerWithCredentials(ctx context.Context, code domain.ProviderCode) (*domain.Provider, *domain.ProviderCredentials, error) {
	provider, err := s.store.GetProvider(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	creds, err := s.store.GetProviderCredentials(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	return provider, creds, nil
}
