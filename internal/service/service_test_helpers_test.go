package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu          sync.Mutex
	createFn    func(payload map[string]interface{}, key string) (map[string]interface{}, error)
	statusFn    func(providerID string) (map[string]interface{}, error)
	createCalls int
	statusCalls int
	payloads    []map[string]interface{}
	keys        []string
}

func (f *fakeProvider) CreatePayment(_ context.Context, payload map[string]interface{}, key string) (map[string]interface{}, error) {
	f.mu.Lock()
	f.createCalls++
	f.payloads = append(f.payloads, payload)
	f.keys = append(f.keys, key)
	fn := f.createFn
	n := f.createCalls
	f.mu.Unlock()
	if fn == nil {
		return map[string]interface{}{
			"payment_id":   fmt.Sprintf("pix_%d", n),
			"status":       "pending",
			"qr_code":      "00020126580014br.gov.bcb.pix",
			"qr_image_url": "https://pixgo.org/qr/1.png",
			"expires_at":   "2026-03-10T12:20:00Z",
		}, nil
	}
	return fn(payload, key)
}

func (f *fakeProvider) GetPaymentStatus(_ context.Context, providerID string) (map[string]interface{}, error) {
	f.mu.Lock()
	f.statusCalls++
	fn := f.statusFn
	f.mu.Unlock()
	if fn == nil {
		return map[string]interface{}{"status": "pending"}, nil
	}
	return fn(providerID)
}

type serviceFixture struct {
	db       *gorm.DB
	svc      *PaymentService
	provider *fakeProvider
	payments *repository.GormPaymentRepository
	intents  *repository.GormPaymentIntentRepository
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.OpenDB(models.DBOptions{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:payment_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano()),
		Pool:   models.DBPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1},
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() {
		_ = models.CloseDB(db)
	})
	return db
}

func newServiceFixture(t *testing.T, mutate func(*PaymentServiceOptions)) *serviceFixture {
	t.Helper()
	db := setupServiceTestDB(t)
	provider := &fakeProvider{}
	fx := &serviceFixture{
		db:       db,
		provider: provider,
		payments: repository.NewPaymentRepository(db),
		intents:  repository.NewPaymentIntentRepository(db),
	}
	opts := PaymentServiceOptions{
		DB:               db,
		PaymentRepo:      fx.payments,
		IntentRepo:       fx.intents,
		WebhookEventRepo: repository.NewWebhookEventRepository(db),
		Provider:         provider,
		ProviderName:     constants.ProviderPixGo,
		Payment: config.PaymentConfig{
			MinAmount: "10.00",
			Reconcile: config.ReconcileConfig{Mode: config.ReconcileAlways, SweepRatePerSecond: 1000},
		},
		Webhook: config.WebhookConfig{Secret: "whsec_test", ToleranceSeconds: 300},
		StoreBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
		},
		Now: func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	fx.svc = NewPaymentService(opts)
	return fx
}

func (fx *serviceFixture) seedPayment(t *testing.T, localID, providerID, status string) *models.PixPayment {
	t.Helper()
	payment := &models.PixPayment{
		ID:        localID,
		PaymentID: providerID,
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:    status,
		QRCode:    "00020126580014br.gov.bcb.pix0136seed",
		CreatedAt: testNow.Add(-time.Minute),
	}
	if err := fx.payments.Create(payment); err != nil {
		t.Fatalf("seed payment failed: %v", err)
	}
	return payment
}

func (fx *serviceFixture) reload(t *testing.T, id string) *models.PixPayment {
	t.Helper()
	payment, err := fx.payments.FindByAnyID(id)
	if err != nil || payment == nil {
		t.Fatalf("reload %s failed: %v", id, err)
	}
	return payment
}

func (fx *serviceFixture) countPayments(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := fx.db.Model(&models.PixPayment{}).Count(&count).Error; err != nil {
		t.Fatalf("count payments failed: %v", err)
	}
	return count
}
