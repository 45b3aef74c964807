package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/pixgo-gateway/internal/logger"
	"github.com/pixgo-gateway/internal/provider"
	"github.com/pixgo-gateway/internal/queue"
	"github.com/pixgo-gateway/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer asynq task consumer
type Consumer struct {
	*provider.Container
	now func() time.Time
}

// NewConsumer creates the consumer
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
		now:       time.Now,
	}
}

// Register binds task handlers
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskIntentRecover, c.handleIntentRecover)
	mux.HandleFunc(queue.TaskPaymentReconcile, c.handlePaymentReconcile)
	mux.HandleFunc(queue.TaskPendingSweep, c.handlePendingSweep)
}

func (c *Consumer) handleIntentRecover(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.PaymentService == nil {
		logger.Debugw("worker_intent_recover_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.IntentRecoverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_intent_recover_unmarshal_failed", "error", err)
		return err
	}
	if payload.IntentID == 0 {
		logger.Debugw("worker_intent_recover_skip_invalid_payload")
		return nil
	}
	if err := c.PaymentService.RecoverIntent(ctx, payload.IntentID); err != nil {
		logger.Warnw("worker_intent_recover_failed", "intent_id", payload.IntentID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handlePaymentReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.PaymentService == nil {
		logger.Debugw("worker_payment_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_reconcile_unmarshal_failed", "error", err)
		return err
	}
	id := strings.TrimSpace(payload.PaymentID)
	if id == "" {
		logger.Debugw("worker_payment_reconcile_skip_invalid_payload")
		return nil
	}
	result, err := c.PaymentService.ReconcilePayment(ctx, id)
	if errors.Is(err, service.ErrPaymentNotFound) {
		logger.Debugw("worker_payment_reconcile_skip_not_found", "payment_id", id)
		return nil
	}
	if err != nil {
		logger.Warnw("worker_payment_reconcile_failed", "payment_id", id, "error", err)
		return err
	}
	logger.Debugw("worker_payment_reconcile_done", "payment_id", id, "status", result.Status, "cached", result.Cached)
	return nil
}

func (c *Consumer) handlePendingSweep(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.PaymentService == nil {
		return nil
	}
	if _, err := c.PaymentService.ReconcilePending(ctx, c.now()); err != nil {
		logger.Warnw("worker_pending_sweep_failed", "error", err)
		return err
	}
	return nil
}
