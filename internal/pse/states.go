package pse

import (
	"strings"

	"github.com/rutavity/payments/internal/domain"
)

// Processor state codes.
const (
	CodeApproved   = "APPROVED"
	CodeRejected   = "REJECTED"
	CodeFailed     = "FAILED"
	CodePending    = "PENDING"
	CodeInProgress = "IN_PROGRESS"
)

var stateTable = map[string]domain.TransactionState{
	CodeApproved:   domain.StateDone,
	CodeRejected:   domain.StateCancel,
	CodeFailed:     domain.StateCancel,
	CodePending:    domain.StatePending,
	CodeInProgress: domain.StatePending,
}

// MapState maps a processor code onto a transaction state. Unknown codes
// map to error so the transaction is reviewed by hand.
func MapState(code string) domain.TransactionState {
	if s, ok := stateTable[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return s
	}
	return domain.StateError
}
