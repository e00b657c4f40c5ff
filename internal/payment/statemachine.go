package payment

import (
	"fmt"

	"github.com/rutavity/payments/internal/domain"
)

// Event is something that happened to a transaction.
type Event string

const (
	EventSubmit        Event = "submit"
	EventOfflineSettle Event = "offline_settle"
	EventAuthorize     Event = "authorize"
	EventApprove       Event = "approve"
	EventDecline       Event = "decline"
	EventFail          Event = "fail"
	EventExpire        Event = "expire"
	EventCancel        Event = "cancel"
)

// transitions is the full lifecycle table. Offline settle is resolved
// through the method rule since its target depends on the method.
var transitions = map[domain.TransactionState]map[Event]domain.TransactionState{
	domain.StateDraft: {
		EventSubmit: domain.StatePending,
		EventCancel: domain.StateCancel,
	},
	domain.StatePending: {
		EventAuthorize: domain.StateAuthorized,
		EventApprove:   domain.StateDone,
		EventDecline:   domain.StateCancel,
		EventFail:      domain.StateError,
		EventExpire:    domain.StateError,
		EventCancel:    domain.StateCancel,
	},
	domain.StateAuthorized: {
		EventApprove: domain.StateDone,
		EventDecline: domain.StateCancel,
		EventFail:    domain.StateError,
		EventExpire:  domain.StateError,
		EventCancel:  domain.StateCancel,
	},
}

// Next computes the state an event moves a transaction to.
//
// A terminal transaction yields ErrTransactionTerminal. Re-applying an event
// whose effect already holds (submit on pending, offline settle on the
// method's offline target) returns the current state unchanged.
func Next(from domain.TransactionState, ev Event, rule MethodRule) (domain.TransactionState, error) {
	const op = "payment.next_state"

	if from.IsTerminal() {
		return from, domain.WrapError(ErrTransactionTerminal, domain.ESTATE, op,
			fmt.Sprintf("transaction is %s, ignoring %s", from, ev))
	}

	switch ev {
	case EventOfflineSettle:
		if rule.ExternalLeg {
			return from, invalidTransition(op, from, ev, rule)
		}
		if from == rule.OfflineTarget {
			return from, nil
		}
		if from == domain.StateDraft {
			return rule.OfflineTarget, nil
		}
		return from, invalidTransition(op, from, ev, rule)

	case EventSubmit:
		if !rule.ExternalLeg {
			return from, invalidTransition(op, from, ev, rule)
		}
		if from == domain.StatePending || from == domain.StateAuthorized {
			return from, nil
		}
	}

	to, ok := transitions[from][ev]
	if !ok {
		return from, invalidTransition(op, from, ev, rule)
	}
	return to, nil
}

func invalidTransition(op string, from domain.TransactionState, ev Event, rule MethodRule) error {
	return domain.WrapError(ErrInvalidTransition, domain.ESTATE, op,
		fmt.Sprintf("%s does not apply to a %s %s transaction", ev, rule.Method, from))
}

// EventForState maps a processor-reported state onto the event it implies.
// Pending and draft imply nothing.
func EventForState(state domain.TransactionState) (Event, bool) {
	switch state {
	case domain.StateAuthorized:
		return EventAuthorize, true
	case domain.StateDone:
		return EventApprove, true
	case domain.StateCancel:
		return EventDecline, true
	case domain.StateError:
		return EventFail, true
	}
	return "", false
}
