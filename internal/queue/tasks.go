package queue

import (
	"encoding/json"

	"github.com/pixgo-gateway/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskIntentRecover re-drives a creation intent
	TaskIntentRecover = constants.TaskIntentRecover
	// TaskPaymentReconcile queries the provider for one payment
	TaskPaymentReconcile = constants.TaskPaymentReconcile
	// TaskPendingSweep reconciles stale pending payments
	TaskPendingSweep = constants.TaskPendingSweep
)

// IntentRecoverPayload intent recovery payload
type IntentRecoverPayload struct {
	IntentID uint `json:"intent_id"`
}

// PaymentReconcilePayload reconcile payload
type PaymentReconcilePayload struct {
	PaymentID string `json:"payment_id"`
}

// NewIntentRecoverTask builds an intent recovery task
func NewIntentRecoverTask(payload IntentRecoverPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntentRecover, body), nil
}

// NewPaymentReconcileTask builds a reconcile task
func NewPaymentReconcileTask(payload PaymentReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentReconcile, body), nil
}

// NewPendingSweepTask builds a sweep task
func NewPendingSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPendingSweep, nil)
}
