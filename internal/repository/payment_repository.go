package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository payment record access
type PaymentRepository interface {
	Create(payment *models.PixPayment) error
	FindByAnyID(id string) (*models.PixPayment, error)
	FindByProviderID(providerID string) (*models.PixPayment, error)
	UpdateStatus(update StatusUpdate) (bool, error)
	ListPendingBefore(cutoff, now time.Time, limit int) ([]models.PixPayment, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// StatusUpdate compare-and-set status change. The row changes only while it
// still holds From.
type StatusUpdate struct {
	LocalID     string
	From        string
	To          string
	At          time.Time
	ConfirmedAt *time.Time
}

// GormPaymentRepository GORM implementation
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates the repository
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx binds a transaction
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create inserts one record. A unique violation on id or payment_id returns ErrDuplicateKey.
func (r *GormPaymentRepository) Create(payment *models.PixPayment) error {
	return wrapWriteError(r.db.Create(payment).Error)
}

// FindByAnyID matches the local id or the provider id in one query
func (r *GormPaymentRepository) FindByAnyID(id string) (*models.PixPayment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var payment models.PixPayment
	err := r.db.Where("id = ? OR payment_id = ?", id, id).Order("created_at asc").First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// FindByProviderID matches the provider id only
func (r *GormPaymentRepository) FindByProviderID(providerID string) (*models.PixPayment, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, nil
	}
	var payment models.PixPayment
	if err := r.db.Where("payment_id = ?", providerID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// UpdateStatus applies a compare-and-set transition and reports whether a row changed
func (r *GormPaymentRepository) UpdateStatus(update StatusUpdate) (bool, error) {
	at := update.At
	if at.IsZero() {
		at = time.Now()
	}
	values := map[string]interface{}{
		"status":     update.To,
		"updated_at": at,
	}
	if update.ConfirmedAt != nil {
		values["confirmed_at"] = *update.ConfirmedAt
	}
	result := r.db.Model(&models.PixPayment{}).
		Where("id = ? AND status = ?", update.LocalID, update.From).
		UpdateColumns(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListPendingBefore pending records created before cutoff or already past their expiry
func (r *GormPaymentRepository) ListPendingBefore(cutoff, now time.Time, limit int) ([]models.PixPayment, error) {
	if limit <= 0 {
		limit = 50
	}
	var payments []models.PixPayment
	err := r.db.Where("status = ?", constants.PaymentStatusPending).
		Where("created_at < ? OR (expires_at IS NOT NULL AND expires_at < ?)", cutoff, now).
		Order("created_at asc").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
