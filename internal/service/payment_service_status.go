package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pixgo-gateway/internal/cache"
	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/payment/pixgo"
	"github.com/pixgo-gateway/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/spf13/cast"
	"golang.org/x/time/rate"
)

// PaymentStatusResult status answer. Cached marks a value read from the store
// without asking the provider.
type PaymentStatusResult struct {
	Status string `json:"status"`
	Cached bool   `json:"cached,omitempty"`
}

// GetPaymentStatus returns the current status, reconciling with the provider
// according to the reconcile mode. Provider trouble never fails the call.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, id string) (*PaymentStatusResult, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if IsFinalStatus(payment.Status) {
		return &PaymentStatusResult{Status: payment.Status}, nil
	}
	if !s.allowReconcile(ctx, payment.ID) {
		return &PaymentStatusResult{Status: payment.Status, Cached: true}, nil
	}
	return s.reconcile(ctx, payment), nil
}

// ReconcilePayment queries the provider for one payment regardless of the
// read throttle
func (s *PaymentService) ReconcilePayment(ctx context.Context, id string) (*PaymentStatusResult, error) {
	payment, err := s.paymentRepo.FindByAnyID(strings.TrimSpace(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if IsFinalStatus(payment.Status) {
		return &PaymentStatusResult{Status: payment.Status}, nil
	}
	return s.reconcile(ctx, payment), nil
}

func (s *PaymentService) reconcile(ctx context.Context, payment *models.PixPayment) *PaymentStatusResult {
	log := paymentLogger("id", payment.ID, "payment_id", payment.PaymentID)
	stored := &PaymentStatusResult{Status: payment.Status, Cached: true}
	if strings.TrimSpace(payment.PaymentID) == "" {
		return stored
	}
	data, err := s.provider.GetPaymentStatus(ctx, payment.PaymentID)
	if err != nil {
		log.Warnw("payment_reconcile_provider_failed", "error", err)
		s.scheduleReconcile(payment.ID)
		return stored
	}
	raw := cast.ToString(data["status"])
	status, ok := pixgo.NormalizeStatus(raw)
	if !ok {
		log.Warnw("payment_reconcile_unknown_status", "provider_status", raw)
		return stored
	}

	updated, _, err := s.transition(ctx, payment, status, parseProviderTime(data["completed_at"]))
	if err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			log.Warnw("payment_reconcile_transition_rejected", "from", updated.Status, "to", status)
			return &PaymentStatusResult{Status: updated.Status}
		}
		log.Warnw("payment_reconcile_update_failed", "to", status, "error", err)
		return stored
	}
	return &PaymentStatusResult{Status: updated.Status}
}

// scheduleReconcile queues a later provider query after a failed one
func (s *PaymentService) scheduleReconcile(localID string) {
	if !s.queueClient.Enabled() {
		return
	}
	err := s.queueClient.EnqueuePaymentReconcile(
		queue.PaymentReconcilePayload{PaymentID: localID},
		asynq.ProcessIn(s.reconcileGap),
		asynq.TaskID("payment-reconcile-"+localID),
	)
	if err != nil {
		paymentLogger("id", localID).Warnw("payment_reconcile_enqueue_failed", "error", err)
	}
}

// allowReconcile applies the reconcile mode to one status read
func (s *PaymentService) allowReconcile(ctx context.Context, localID string) bool {
	switch s.reconcileMode {
	case config.ReconcileAlways:
		return true
	case config.ReconcileDisabled:
		return false
	}
	if cache.Enabled() {
		acquired, err := cache.AcquireReconcileSlot(ctx, localID, s.reconcileGap)
		if err == nil {
			return acquired
		}
		paymentLogger("id", localID).Warnw("payment_reconcile_slot_failed", "error", err)
	}
	return s.localLimiter(localID).Allow()
}

func (s *PaymentService) localLimiter(localID string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	if limiter, ok := s.limiters[localID]; ok {
		return limiter
	}
	if len(s.limiters) >= maxLocalLimiters {
		s.limiters = make(map[string]*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Every(s.reconcileGap), 1)
	s.limiters[localID] = limiter
	return limiter
}

// ReconcilePending reconciles pending payments that passed their expiry or
// sat pending longer than the sweep window. Provider calls are paced.
func (s *PaymentService) ReconcilePending(ctx context.Context, now time.Time) (int, error) {
	payments, err := s.paymentRepo.ListPendingBefore(now.Add(-s.sweepAfter), now, s.sweepBatch)
	if err != nil {
		return 0, err
	}
	if len(payments) == 0 {
		return 0, nil
	}
	limiter := rate.NewLimiter(rate.Limit(s.sweepRate), 1)
	changed := 0
	for i := range payments {
		if err := limiter.Wait(ctx); err != nil {
			return changed, err
		}
		payment := payments[i]
		result := s.reconcile(ctx, &payment)
		if result.Status != payment.Status {
			changed++
		}
	}
	paymentLogger().Infow("payment_pending_sweep_done", "scanned", len(payments), "changed", changed)
	return changed, nil
}
