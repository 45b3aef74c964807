package service

import (
	"fmt"

	"github.com/pixgo-gateway/internal/constants"
)

var allowedPaymentTransitions = map[string]map[string]bool{
	constants.PaymentStatusPending: {
		constants.PaymentStatusCompleted: true,
		constants.PaymentStatusExpired:   true,
		constants.PaymentStatusCancelled: true,
	},
	constants.PaymentStatusCompleted: {
		constants.PaymentStatusRefunded: true,
	},
}

// CheckTransition returns nil for a legal move or a same-state no-op
func CheckTransition(from, to string) error {
	if from == to {
		return nil
	}
	if allowedPaymentTransitions[from][to] {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// IsFinalStatus statuses that never change again
func IsFinalStatus(status string) bool {
	switch status {
	case constants.PaymentStatusExpired, constants.PaymentStatusCancelled, constants.PaymentStatusRefunded:
		return true
	default:
		return false
	}
}
