package models

import (
	"time"

	"github.com/pixgo-gateway/internal/constants"
)

// PixPayment local record of a provider payment
type PixPayment struct {
	ID              string     `gorm:"primaryKey;type:varchar(36)" json:"id"`                              // local id, never changes
	PaymentID       string     `gorm:"type:varchar(100);uniqueIndex:uk_pixgo_payment_id" json:"payment_id"` // provider id
	ExternalID      string     `gorm:"type:varchar(50);index" json:"external_id"`                          // merchant reference
	Amount          Money      `gorm:"type:decimal(10,2);not null" json:"amount"`
	Description     string     `gorm:"type:varchar(200)" json:"description"`
	CustomerName    string     `gorm:"type:varchar(100)" json:"customer_name"`
	CustomerCPF     string     `gorm:"type:varchar(14);index" json:"customer_cpf"`
	CustomerEmail   string     `gorm:"type:varchar(255);index" json:"customer_email"`
	CustomerPhone   string     `gorm:"type:varchar(20)" json:"customer_phone"`
	CustomerAddress string     `gorm:"type:varchar(500)" json:"customer_address"`
	Status          string     `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	QRCode          string     `gorm:"type:text" json:"qr_code"`
	QRImageURL      string     `gorm:"type:varchar(255)" json:"qr_image_url"`
	ExpiresAt       *time.Time `json:"expires_at"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	ConfirmedAt     *time.Time `json:"confirmed_at"`
	UpdatedAt       *time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// TableName table name
func (PixPayment) TableName() string {
	return constants.PaymentsTableName
}
