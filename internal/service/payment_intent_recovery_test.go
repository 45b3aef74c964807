package service

import (
	"context"
	"testing"
	"time"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/payment/pixgo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverIntentMaterializesProviderCreated(t *testing.T) {
	fx := newServiceFixture(t, nil)
	intent := &models.PaymentIntent{
		LocalID:           "recover-local",
		IdempotencyKey:    "recover-key",
		RequestPayload:    models.JSON{"amount": 42.0, "description": "late insert"},
		ProviderPaymentID: "pix_late",
		ProviderResponse:  models.JSON{"payment_id": "pix_late", "status": "pending", "qr_code": "000201"},
		Status:            constants.IntentStatusProviderCreated,
	}
	require.NoError(t, fx.intents.Create(intent))

	require.NoError(t, fx.svc.RecoverIntent(context.Background(), intent.ID))

	payment := fx.reload(t, "pix_late")
	assert.Equal(t, "recover-local", payment.ID)
	assert.Equal(t, "42.00", payment.Amount.String())
	assert.Equal(t, "late insert", payment.Description)
	assert.Zero(t, fx.provider.createCalls)

	// a second run is a no-op
	require.NoError(t, fx.svc.RecoverIntent(context.Background(), intent.ID))
	assert.Equal(t, int64(1), fx.countPayments(t))
}

func TestRecoverIntentReplaysPendingWithSameKey(t *testing.T) {
	fx := newServiceFixture(t, nil)
	intent := &models.PaymentIntent{
		LocalID:        "pending-local",
		IdempotencyKey: "pending-key",
		RequestPayload: models.JSON{"amount": 12.0},
		Status:         constants.IntentStatusPending,
	}
	require.NoError(t, fx.intents.Create(intent))

	require.NoError(t, fx.svc.RecoverIntent(context.Background(), intent.ID))
	assert.Equal(t, []string{"pending-key"}, fx.provider.keys)
	payment := fx.reload(t, "pending-local")
	assert.Equal(t, "pix_1", payment.PaymentID)
}

func TestRecoverIntentProviderRejectionFailsIntent(t *testing.T) {
	fx := newServiceFixture(t, nil)
	fx.provider.createFn = func(map[string]interface{}, string) (map[string]interface{}, error) {
		return nil, &pixgo.APIError{Message: "bad request", HTTPStatus: 422}
	}
	intent := &models.PaymentIntent{LocalID: "rej", IdempotencyKey: "rej-key", RequestPayload: models.JSON{"amount": 12.0}, Status: constants.IntentStatusPending}
	require.NoError(t, fx.intents.Create(intent))

	require.NoError(t, fx.svc.RecoverIntent(context.Background(), intent.ID))
	stored, err := fx.intents.GetByID(intent.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.IntentStatusFailed, stored.Status)
}

func TestRecoverIntentWithoutProviderIDFailsIntent(t *testing.T) {
	fx := newServiceFixture(t, nil)
	fx.provider.createFn = func(map[string]interface{}, string) (map[string]interface{}, error) {
		return map[string]interface{}{"status": "pending"}, nil
	}
	intent := &models.PaymentIntent{LocalID: "noid", IdempotencyKey: "noid-key", RequestPayload: models.JSON{"amount": 12.0}, Status: constants.IntentStatusPending}
	require.NoError(t, fx.intents.Create(intent))

	require.NoError(t, fx.svc.RecoverIntent(context.Background(), intent.ID))
	stored, err := fx.intents.GetByID(intent.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.IntentStatusFailed, stored.Status)
	assert.Zero(t, fx.countPayments(t))

	require.NoError(t, fx.svc.RecoverIntent(context.Background(), intent.ID))
	assert.Equal(t, 1, fx.provider.createCalls)
}

func TestRecoverStaleIntents(t *testing.T) {
	fx := newServiceFixture(t, nil)
	exhausted := &models.PaymentIntent{LocalID: "ex", IdempotencyKey: "ex-key", RequestPayload: models.JSON{"amount": 12.0}, Status: constants.IntentStatusPending, Attempts: 5}
	stale := &models.PaymentIntent{LocalID: "st", IdempotencyKey: "st-key", RequestPayload: models.JSON{"amount": 12.0}, Status: constants.IntentStatusPending}
	fresh := &models.PaymentIntent{LocalID: "fr", IdempotencyKey: "fr-key", RequestPayload: models.JSON{"amount": 12.0}, Status: constants.IntentStatusPending}
	for _, intent := range []*models.PaymentIntent{exhausted, stale, fresh} {
		require.NoError(t, fx.intents.Create(intent))
	}
	old := testNow.Add(-time.Hour)
	require.NoError(t, fx.db.Model(&models.PaymentIntent{}).Where("local_id IN ?", []string{"ex", "st"}).UpdateColumn("updated_at", old).Error)
	require.NoError(t, fx.db.Model(&models.PaymentIntent{}).Where("local_id = ?", "fr").UpdateColumn("updated_at", testNow).Error)

	handled, err := fx.svc.RecoverStaleIntents(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, handled)

	got, err := fx.intents.GetByID(exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.IntentStatusFailed, got.Status)
	got, err = fx.intents.GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.IntentStatusCompleted, got.Status)
	got, err = fx.intents.GetByID(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.IntentStatusPending, got.Status)
}
