package payment

import (
	"context"
	"time"

	"github.com/rutavity/payments/internal/domain"
)

// TransitionEvent is published after a state change commits.
type TransitionEvent struct {
	Reference string                  `json:"reference"`
	Provider  domain.ProviderCode     `json:"provider"`
	Method    domain.MethodCode       `json:"method"`
	PartnerID int64                   `json:"partner_id"`
	Amount    string                  `json:"amount"`
	Currency  string                  `json:"currency"`
	From      domain.TransactionState `json:"from"`
	To        domain.TransactionState `json:"to"`
	Event     Event                   `json:"event"`
	Message   string                  `json:"message,omitempty"`
	At        time.Time               `json:"at"`
}

// Publisher broadcasts committed transitions.
type Publisher interface {
	PublishTransition(ctx context.Context, ev TransitionEvent) error
}

// Notifier tells a partner about a transaction outcome.
type Notifier interface {
	NotifyCancelled(ctx context.Context, partner *domain.Partner, tx *domain.Transaction) error
}

type noopPublisher struct{}

func (noopPublisher) PublishTransition(context.Context, TransitionEvent) error { return nil }

type noopNotifier struct{}

func (noopNotifier) NotifyCancelled(context.Context, *domain.Partner, *domain.Transaction) error {
	return nil
}
