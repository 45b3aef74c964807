package models

import (
	"time"

	"github.com/pixgo-gateway/internal/constants"
)

// WebhookEvent delivery log, one row per distinct body
type WebhookEvent struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	Provider          string    `gorm:"type:varchar(32);uniqueIndex:uk_pixgo_webhook_event,priority:1;not null" json:"provider"`
	EventKey          string    `gorm:"type:varchar(64);uniqueIndex:uk_pixgo_webhook_event,priority:2;not null" json:"event_key"`
	EventType         string    `gorm:"type:varchar(64);index" json:"event_type"`
	ProviderPaymentID string    `gorm:"type:varchar(100);index" json:"provider_payment_id"`
	Outcome           string    `gorm:"type:varchar(20)" json:"outcome"`
	ReceivedAt        time.Time `gorm:"index" json:"received_at"`
}

// TableName table name
func (WebhookEvent) TableName() string {
	return constants.WebhookEventsTableName
}
