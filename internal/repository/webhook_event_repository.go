package repository

import (
	"errors"

	"github.com/pixgo-gateway/internal/models"

	"gorm.io/gorm"
)

// WebhookEventRepository webhook delivery log access
type WebhookEventRepository interface {
	Record(event *models.WebhookEvent) (bool, error)
	UpdateOutcome(id uint, outcome string) error
	Forget(id uint) error
}

// GormWebhookEventRepository GORM implementation
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates the repository
func NewWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Record inserts the event and returns false when the same body was seen before
func (r *GormWebhookEventRepository) Record(event *models.WebhookEvent) (bool, error) {
	if err := wrapWriteError(r.db.Create(event).Error); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateOutcome stores how the event was handled
func (r *GormWebhookEventRepository) UpdateOutcome(id uint, outcome string) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Update("outcome", outcome).Error
}

// Forget removes the event so a redelivery of the same body is processed again
func (r *GormWebhookEventRepository) Forget(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.WebhookEvent{}, id).Error
}
