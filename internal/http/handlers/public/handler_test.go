package public

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/payment/pixgo"
	"github.com/pixgo-gateway/internal/provider"
	"github.com/pixgo-gateway/internal/repository"
	"github.com/pixgo-gateway/internal/service"

	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handlerNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubProvider struct {
	mu       sync.Mutex
	createFn func(payload map[string]interface{}) (map[string]interface{}, error)
	statusFn func(providerID string) (map[string]interface{}, error)
	payloads []map[string]interface{}
}

func (p *stubProvider) CreatePayment(_ context.Context, payload map[string]interface{}, _ string) (map[string]interface{}, error) {
	p.mu.Lock()
	p.payloads = append(p.payloads, payload)
	n := len(p.payloads)
	fn := p.createFn
	p.mu.Unlock()
	if fn != nil {
		return fn(payload)
	}
	return map[string]interface{}{
		"payment_id":   fmt.Sprintf("pix_h%d", n),
		"status":       "pending",
		"qr_code":      "00020126580014br.gov.bcb.pix0136handler",
		"qr_image_url": "https://pixgo.org/qr/h.png",
		"expires_at":   "2026-03-10T12:20:00Z",
	}, nil
}

func (p *stubProvider) GetPaymentStatus(_ context.Context, providerID string) (map[string]interface{}, error) {
	p.mu.Lock()
	fn := p.statusFn
	p.mu.Unlock()
	if fn != nil {
		return fn(providerID)
	}
	return map[string]interface{}{"status": "pending"}, nil
}

type handlerFixture struct {
	engine   *gin.Engine
	provider *stubProvider
	payments repository.PaymentRepository
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := models.OpenDB(models.DBOptions{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:public_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano()),
		Pool:   models.DBPoolConfig{MaxOpenConns: 1, MaxIdleConns: 1},
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() { _ = models.CloseDB(db) })

	stub := &stubProvider{}
	cfg := &config.Config{
		Provider: config.ProviderConfig{Name: constants.ProviderPixGo},
		Webhook:  config.WebhookConfig{Secret: "whsec_handler", ToleranceSeconds: 300},
		Payment: config.PaymentConfig{
			MinAmount: "10.00",
			Reconcile: config.ReconcileConfig{Mode: config.ReconcileAlways, SweepRatePerSecond: 1000},
		},
	}
	container := &provider.Container{
		Config:            cfg,
		DB:                db,
		PaymentRepo:       repository.NewPaymentRepository(db),
		PaymentIntentRepo: repository.NewPaymentIntentRepository(db),
		WebhookEventRepo:  repository.NewWebhookEventRepository(db),
		StoreProbe:        repository.NewStoreProbe(db),
	}
	container.PaymentService = service.NewPaymentService(service.PaymentServiceOptions{
		DB:               db,
		PaymentRepo:      container.PaymentRepo,
		IntentRepo:       container.PaymentIntentRepo,
		WebhookEventRepo: container.WebhookEventRepo,
		Provider:         stub,
		ProviderName:     cfg.Provider.Name,
		Payment:          cfg.Payment,
		Webhook:          cfg.Webhook,
		StoreBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
		},
		Now: func() time.Time { return handlerNow },
	})

	h := New(container)
	engine := gin.New()
	engine.GET("/", h.Health)
	engine.GET("/test-db", h.TestDB)
	engine.POST("/api/create-payment", h.CreatePayment)
	engine.GET("/api/payment/:id", h.GetPayment)
	engine.GET("/api/payment/:id/status", h.GetPaymentStatus)
	engine.GET("/api/payment/:id/qrcode", h.GetPaymentQRCode)
	engine.POST("/webhook/:provider", h.ProviderWebhook)

	return &handlerFixture{engine: engine, provider: stub, payments: container.PaymentRepo}
}

func (fx *handlerFixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	fx.engine.ServeHTTP(w, req)
	var body map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w, body
}

func (fx *handlerFixture) create(t *testing.T, payload string, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/create-payment", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return fx.do(t, req)
}

func TestHealth(t *testing.T) {
	fx := newHandlerFixture(t)
	w, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "PixGo API is running", body["message"])
}

func TestTestDBReportsTable(t *testing.T) {
	fx := newHandlerFixture(t)
	w, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/test-db", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Database connection OK", body["message"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["table_exists"])
}

func TestCreatePaymentHandler(t *testing.T) {
	fx := newHandlerFixture(t)
	w, body := fx.create(t, `{"amount": 25.5, "description": "Pedido 1", "unknown": "x"}`, map[string]string{
		"X-Forwarded-Proto": "https",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Payment created successfully", body["message"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "pix_h1", data["payment_id"])
	assert.Equal(t, "25.50", data["amount"])
	assert.Equal(t, "pending", data["status"])
	assert.NotEmpty(t, data["id"])
	assert.Contains(t, w.Body.String(), `"qr_image_url":"https://pixgo.org/qr/h.png"`)

	require.Len(t, fx.provider.payloads, 1)
	sent := fx.provider.payloads[0]
	assert.Equal(t, "https://example.com/webhook/pixgo", sent["webhook_url"])
	assert.NotContains(t, sent, "unknown")
}

func TestCreatePaymentHandlerErrors(t *testing.T) {
	fx := newHandlerFixture(t)

	w, body := fx.create(t, `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_JSON", body["error"])

	w, body = fx.create(t, `{"amount": 5}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", body["error"])
	assert.Equal(t, "Minimum amount is R$ 10.00", body["message"])

	fx.provider.createFn = func(map[string]interface{}) (map[string]interface{}, error) {
		return nil, &pixgo.APIError{
			Message:    "Limite excedido",
			HTTPStatus: http.StatusBadRequest,
			Details: map[string]interface{}{
				"error":            "LIMIT_EXCEEDED",
				"message":          "Limite excedido",
				"current_limit":    300,
				"amount_requested": 500,
			},
		}
	}
	w, body = fx.create(t, `{"amount": 500}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LIMIT_EXCEEDED", body["error"])
	assert.Equal(t, "Limite excedido", body["message"])
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 300, data["current_limit"])
	assert.EqualValues(t, 500, data["amount_requested"])

	fx.provider.createFn = func(map[string]interface{}) (map[string]interface{}, error) {
		return nil, &pixgo.APIError{Message: "API key invalid", HTTPStatus: http.StatusUnauthorized}
	}
	w, body = fx.create(t, `{"amount": 50}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "UPSTREAM_ERROR", body["error"])
	assert.Equal(t, "API key invalid", body["message"])
}

func TestCreatePaymentHandlerIdempotencyReplay(t *testing.T) {
	fx := newHandlerFixture(t)
	headers := map[string]string{constants.HeaderIdempotencyKey: "order-77"}

	w, first := fx.create(t, `{"amount": 40}`, headers)
	require.Equal(t, http.StatusCreated, w.Code)
	w, second := fx.create(t, `{"amount": 40}`, headers)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, first["data"].(map[string]interface{})["id"], second["data"].(map[string]interface{})["id"])
	assert.Len(t, fx.provider.payloads, 1)
}

func TestGetPaymentHandlers(t *testing.T) {
	fx := newHandlerFixture(t)
	w, created := fx.create(t, `{"amount": 30}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	localID := created["data"].(map[string]interface{})["id"].(string)

	w, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/api/payment/pix_h1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, localID, body["data"].(map[string]interface{})["id"])

	fx.provider.statusFn = func(string) (map[string]interface{}, error) {
		return map[string]interface{}{"status": "completed", "completed_at": "2026-03-10 12:05:00"}, nil
	}
	w, body = fx.do(t, httptest.NewRequest(http.MethodGet, "/api/payment/"+localID+"/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", body["data"].(map[string]interface{})["status"])

	w, body = fx.do(t, httptest.NewRequest(http.MethodGet, "/api/payment/missing/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Payment not found", body["message"])

	w, body = fx.do(t, httptest.NewRequest(http.MethodGet, "/api/payment/bad.id", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found: /api/payment/bad.id", body["message"])
}

func TestGetPaymentQRCode(t *testing.T) {
	fx := newHandlerFixture(t)
	w, _ := fx.create(t, `{"amount": 30}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = fx.do(t, httptest.NewRequest(http.MethodGet, "/api/payment/pix_h1/qrcode?size=200", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\x89PNG"))
}

func TestProviderWebhookHandler(t *testing.T) {
	fx := newHandlerFixture(t)
	w, _ := fx.create(t, `{"amount": 30}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	payload := `{"event":"payment.completed","data":{"payment_id":"pix_h1","completed_at":"2026-03-10T12:03:00Z"}}`
	ts := strconv.FormatInt(handlerNow.Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhook/pixgo", strings.NewReader(payload))
	req.Header.Set(constants.HeaderWebhookEvent, "payment.completed")
	req.Header.Set(constants.HeaderWebhookTimestamp, ts)
	req.Header.Set(constants.HeaderWebhookSignature, "sha256="+pixgo.Sign("whsec_handler", ts, []byte(payload)))
	w, body := fx.do(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["data"].(map[string]interface{})["received"])

	stored, err := fx.payments.FindByAnyID("pix_h1")
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Status)

	req = httptest.NewRequest(http.MethodPost, "/webhook/pixgo", strings.NewReader(payload))
	req.Header.Set(constants.HeaderWebhookTimestamp, ts)
	req.Header.Set(constants.HeaderWebhookSignature, "sha256=deadbeef")
	w, body = fx.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", body["error"])

	w, body = fx.do(t, httptest.NewRequest(http.MethodPost, "/webhook/stripe", strings.NewReader(payload)))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["error"])
}
