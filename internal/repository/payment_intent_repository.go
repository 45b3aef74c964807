package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"

	"gorm.io/gorm"
)

const maxIntentErrorLength = 500

// PaymentIntentRepository creation outbox access
type PaymentIntentRepository interface {
	Create(intent *models.PaymentIntent) error
	GetByID(id uint) (*models.PaymentIntent, error)
	GetByIdempotencyKey(key string) (*models.PaymentIntent, error)
	MarkProviderCreated(id uint, providerPaymentID string, response models.JSON) error
	MarkCompleted(id uint, localID string) error
	MarkFailed(id uint, reason string) error
	RecordAttempt(id uint, reason string) error
	Reopen(id uint, payload models.JSON) error
	ListRecoverable(staleBefore time.Time, maxAttempts int, limit int) ([]models.PaymentIntent, error)
	WithTx(tx *gorm.DB) *GormPaymentIntentRepository
}

// GormPaymentIntentRepository GORM implementation
type GormPaymentIntentRepository struct {
	db *gorm.DB
}

// NewPaymentIntentRepository creates the repository
func NewPaymentIntentRepository(db *gorm.DB) *GormPaymentIntentRepository {
	return &GormPaymentIntentRepository{db: db}
}

// WithTx binds a transaction
func (r *GormPaymentIntentRepository) WithTx(tx *gorm.DB) *GormPaymentIntentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentIntentRepository{db: tx}
}

// Create inserts the intent. A reused local id or idempotency key returns ErrDuplicateKey.
func (r *GormPaymentIntentRepository) Create(intent *models.PaymentIntent) error {
	return wrapWriteError(r.db.Create(intent).Error)
}

// GetByID loads one intent
func (r *GormPaymentIntentRepository) GetByID(id uint) (*models.PaymentIntent, error) {
	if id == 0 {
		return nil, nil
	}
	var intent models.PaymentIntent
	if err := r.db.First(&intent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// GetByIdempotencyKey loads the intent owning a key
func (r *GormPaymentIntentRepository) GetByIdempotencyKey(key string) (*models.PaymentIntent, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var intent models.PaymentIntent
	if err := r.db.Where("idempotency_key = ?", key).First(&intent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

// MarkProviderCreated stores the provider answer
func (r *GormPaymentIntentRepository) MarkProviderCreated(id uint, providerPaymentID string, response models.JSON) error {
	return r.db.Model(&models.PaymentIntent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":              constants.IntentStatusProviderCreated,
		"provider_payment_id": providerPaymentID,
		"provider_response":   response,
		"last_error":          "",
		"updated_at":          time.Now(),
	}).Error
}

// MarkCompleted closes the intent once the local record exists. The local id
// may differ from the reserved one after a collision.
func (r *GormPaymentIntentRepository) MarkCompleted(id uint, localID string) error {
	return r.db.Model(&models.PaymentIntent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     constants.IntentStatusCompleted,
		"local_id":   localID,
		"last_error": "",
		"updated_at": time.Now(),
	}).Error
}

// MarkFailed closes the intent without a local record
func (r *GormPaymentIntentRepository) MarkFailed(id uint, reason string) error {
	return r.db.Model(&models.PaymentIntent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     constants.IntentStatusFailed,
		"last_error": truncate(reason, maxIntentErrorLength),
		"updated_at": time.Now(),
	}).Error
}

// RecordAttempt bumps the recovery attempt counter
func (r *GormPaymentIntentRepository) RecordAttempt(id uint, reason string) error {
	return r.db.Model(&models.PaymentIntent{}).Where("id = ?", id).Updates(map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": truncate(reason, maxIntentErrorLength),
		"updated_at": time.Now(),
	}).Error
}

// Reopen puts a failed intent back to pending so a client retry with the
// same idempotency key can run again
func (r *GormPaymentIntentRepository) Reopen(id uint, payload models.JSON) error {
	return r.db.Model(&models.PaymentIntent{}).
		Where("id = ? AND status = ?", id, constants.IntentStatusFailed).
		Updates(map[string]interface{}{
			"status":          constants.IntentStatusPending,
			"request_payload": payload,
			"attempts":        0,
			"last_error":      "",
			"updated_at":      time.Now(),
		}).Error
}

// ListRecoverable open intents untouched since staleBefore
func (r *GormPaymentIntentRepository) ListRecoverable(staleBefore time.Time, maxAttempts int, limit int) ([]models.PaymentIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.Where("status IN ?", []string{constants.IntentStatusPending, constants.IntentStatusProviderCreated}).
		Where("updated_at < ?", staleBefore)
	if maxAttempts > 0 {
		query = query.Where("attempts < ?", maxAttempts)
	}
	var intents []models.PaymentIntent
	if err := query.Order("id asc").Limit(limit).Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
