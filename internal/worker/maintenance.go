package worker

import (
	"context"
	"time"

	"github.com/pixgo-gateway/internal/logger"
	"github.com/pixgo-gateway/internal/queue"

	"github.com/hibiken/asynq"
)

const defaultMaintenanceInterval = time.Minute

// Maintenance periodic outbox recovery and pending sweep. With the queue
// enabled the sweep is handed to the worker pool as a unique task so only
// one instance runs it per interval.
type Maintenance struct {
	name     string
	consumer *Consumer
	queue    *queue.Client
	interval time.Duration
	stop     chan struct{}
}

// NewMaintenance creates the maintenance loop
func NewMaintenance(consumer *Consumer, interval time.Duration) *Maintenance {
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	m := &Maintenance{
		name:     "maintenance",
		consumer: consumer,
		interval: interval,
		stop:     make(chan struct{}),
	}
	if consumer != nil && consumer.Container != nil {
		m.queue = consumer.QueueClient
	}
	return m
}

// Name service name
func (m *Maintenance) Name() string {
	if m == nil || m.name == "" {
		return "maintenance"
	}
	return m.name
}

// Start runs one pass immediately and then one per interval
func (m *Maintenance) Start(ctx context.Context) error {
	if m == nil || m.consumer == nil || m.consumer.PaymentService == nil {
		<-ctx.Done()
		return nil
	}
	m.runOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.stop:
			return nil
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

// Stop ends the loop
func (m *Maintenance) Stop(_ context.Context) error {
	if m == nil {
		return nil
	}
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	return nil
}

func (m *Maintenance) runOnce(ctx context.Context) {
	svc := m.consumer.PaymentService
	now := m.consumer.now()
	if handled, err := svc.RecoverStaleIntents(ctx, now); err != nil {
		logger.Warnw("worker_recover_stale_intents_failed", "error", err)
	} else if handled > 0 {
		logger.Infow("worker_recover_stale_intents_done", "handled", handled)
	}

	if m.queue.Enabled() {
		if err := m.queue.EnqueuePendingSweep(asynq.Unique(m.interval)); err != nil {
			logger.Warnw("worker_enqueue_pending_sweep_failed", "error", err)
		}
		return
	}
	if _, err := svc.ReconcilePending(ctx, now); err != nil {
		logger.Warnw("worker_pending_sweep_failed", "error", err)
	}
}
