package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/provider"
	"github.com/pixgo-gateway/internal/queue"
	"github.com/pixgo-gateway/internal/repository"
	"github.com/pixgo-gateway/internal/service"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var workerNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type statusProvider struct {
	status string
	calls  int
}

func (p *statusProvider) CreatePayment(context.Context, map[string]interface{}, string) (map[string]interface{}, error) {
	return nil, fmt.Errorf("not used")
}

func (p *statusProvider) GetPaymentStatus(context.Context, string) (map[string]interface{}, error) {
	p.calls++
	return map[string]interface{}{"status": p.status}, nil
}

func newTestConsumer(t *testing.T, status string) (*Consumer, *statusProvider) {
	t.Helper()
	db, err := models.OpenDB(models.DBOptions{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano()),
		Pool:   models.DBPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1},
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = models.CloseDB(db) })

	stub := &statusProvider{status: status}
	queueClient, err := queue.NewClient(&config.QueueConfig{Enabled: false})
	require.NoError(t, err)
	c := &provider.Container{
		DB:                db,
		QueueClient:       queueClient,
		PaymentRepo:       repository.NewPaymentRepository(db),
		PaymentIntentRepo: repository.NewPaymentIntentRepository(db),
		WebhookEventRepo:  repository.NewWebhookEventRepository(db),
	}
	c.PaymentService = service.NewPaymentService(service.PaymentServiceOptions{
		DB:               db,
		PaymentRepo:      c.PaymentRepo,
		IntentRepo:       c.PaymentIntentRepo,
		WebhookEventRepo: c.WebhookEventRepo,
		Provider:         stub,
		ProviderName:     constants.ProviderPixGo,
		QueueClient:      queueClient,
		Payment: config.PaymentConfig{
			MinAmount: "10.00",
			Reconcile: config.ReconcileConfig{Mode: config.ReconcileThrottled, SweepRatePerSecond: 1000},
		},
		Now: func() time.Time { return workerNow },
	})
	consumer := NewConsumer(c)
	consumer.now = func() time.Time { return workerNow }
	return consumer, stub
}

func seedPending(t *testing.T, c *Consumer, id, providerID string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, c.PaymentRepo.Create(&models.PixPayment{
		ID:        id,
		PaymentID: providerID,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		Status:    constants.PaymentStatusPending,
		ExpiresAt: &expiresAt,
		CreatedAt: workerNow.Add(-time.Minute),
	}))
}

func TestHandlePaymentReconcile(t *testing.T) {
	consumer, stub := newTestConsumer(t, "completed")
	seedPending(t, consumer, "local-1", "pix_1", workerNow.Add(10*time.Minute))

	task, err := queue.NewPaymentReconcileTask(queue.PaymentReconcilePayload{PaymentID: "local-1"})
	require.NoError(t, err)
	require.NoError(t, consumer.handlePaymentReconcile(context.Background(), task))

	stored, err := consumer.PaymentRepo.FindByAnyID("local-1")
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusCompleted, stored.Status)
	assert.Equal(t, 1, stub.calls)
}

func TestHandlePaymentReconcileSkipsMissingAndRejectsGarbage(t *testing.T) {
	consumer, stub := newTestConsumer(t, "completed")

	task, err := queue.NewPaymentReconcileTask(queue.PaymentReconcilePayload{PaymentID: "missing"})
	require.NoError(t, err)
	assert.NoError(t, consumer.handlePaymentReconcile(context.Background(), task))
	assert.Zero(t, stub.calls)

	bad := asynq.NewTask(queue.TaskPaymentReconcile, []byte("{"))
	assert.Error(t, consumer.handlePaymentReconcile(context.Background(), bad))
}

func TestHandleIntentRecoverSkipsEmptyPayload(t *testing.T) {
	consumer, _ := newTestConsumer(t, "pending")
	task, err := queue.NewIntentRecoverTask(queue.IntentRecoverPayload{})
	require.NoError(t, err)
	assert.NoError(t, consumer.handleIntentRecover(context.Background(), task))
}

func TestHandlePendingSweep(t *testing.T) {
	consumer, stub := newTestConsumer(t, "expired")
	seedPending(t, consumer, "local-old", "pix_old", workerNow.Add(-time.Minute))

	require.NoError(t, consumer.handlePendingSweep(context.Background(), queue.NewPendingSweepTask()))
	stored, err := consumer.PaymentRepo.FindByAnyID("pix_old")
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusExpired, stored.Status)
	assert.Equal(t, 1, stub.calls)
}

func TestMaintenanceRunsSweepInlineWithoutQueue(t *testing.T) {
	consumer, stub := newTestConsumer(t, "expired")
	seedPending(t, consumer, "local-old", "pix_old", workerNow.Add(-time.Minute))
	seedPending(t, consumer, "local-new", "pix_new", workerNow.Add(10*time.Minute))

	m := NewMaintenance(consumer, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	require.Eventually(t, func() bool {
		stored, err := consumer.PaymentRepo.FindByAnyID("local-old")
		return err == nil && stored.Status == constants.PaymentStatusExpired
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Stop(context.Background()))
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("maintenance loop did not stop")
	}

	fresh, err := consumer.PaymentRepo.FindByAnyID("local-new")
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPending, fresh.Status)
	assert.Equal(t, 1, stub.calls)
}

func TestNewServiceRequiresQueue(t *testing.T) {
	_, err := NewService(&config.QueueConfig{Enabled: false}, &Consumer{})
	assert.Error(t, err)
}
