package models

import (
	"time"

	"github.com/pixgo-gateway/internal/constants"
)

// PaymentIntent durable creation intent written before the provider is called.
// A provider_created intent without a completed marker means the local insert
// never happened and must be replayed.
type PaymentIntent struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	LocalID           string    `gorm:"type:varchar(36);uniqueIndex:uk_pixgo_intent_local_id;not null" json:"local_id"`
	IdempotencyKey    string    `gorm:"type:varchar(100);uniqueIndex:uk_pixgo_intent_idem_key;not null" json:"idempotency_key"`
	RequestPayload    JSON      `gorm:"type:text" json:"request_payload"`
	ProviderPaymentID string    `gorm:"type:varchar(100);index" json:"provider_payment_id"`
	ProviderResponse  JSON      `gorm:"type:text" json:"provider_response"`
	Status            string    `gorm:"type:varchar(20);index;not null" json:"status"`
	Attempts          int       `gorm:"not null;default:0" json:"attempts"`
	LastError         string    `gorm:"type:varchar(500)" json:"last_error"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time `gorm:"index" json:"updated_at"`
}

// TableName table name
func (PaymentIntent) TableName() string {
	return constants.PaymentIntentsTableName
}
