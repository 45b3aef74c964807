package main

import (
	"fmt"
	"time"

	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/logger"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/repository"

	"github.com/shopspring/decimal"
)

type seedPayment struct {
	localID     string
	providerID  string
	externalID  string
	amount      string
	status      string
	description string
}

// demo records, one per status, for exercising the read endpoints locally
var seedPayments = []seedPayment{
	{localID: "seed-pending-0001", providerID: "dev_pix_pending", externalID: "ORDER-1001", amount: "10.00", status: constants.PaymentStatusPending, description: "Pending demo payment"},
	{localID: "seed-completed-0001", providerID: "dev_pix_completed", externalID: "ORDER-1002", amount: "49.90", status: constants.PaymentStatusCompleted, description: "Completed demo payment"},
	{localID: "seed-expired-0001", providerID: "dev_pix_expired", externalID: "ORDER-1003", amount: "15.00", status: constants.PaymentStatusExpired, description: "Expired demo payment"},
	{localID: "seed-refunded-0001", providerID: "dev_pix_refunded", externalID: "ORDER-1004", amount: "120.00", status: constants.PaymentStatusRefunded, description: "Refunded demo payment"},
	{localID: "seed-cancelled-0001", providerID: "dev_pix_cancelled", externalID: "ORDER-1005", amount: "22.35", status: constants.PaymentStatusCancelled, description: "Cancelled demo payment"},
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()

	db, err := models.OpenDB(models.DBOptions{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.ResolveDSN(),
		Pool: models.DBPoolConfig{
			MaxOpenConns: cfg.Database.Pool.MaxOpenConns,
			MaxIdleConns: cfg.Database.Pool.MaxIdleConns,
		},
	})
	if err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	defer func() { _ = models.CloseDB(db) }()

	if err := models.AutoMigrate(db); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	repo := repository.NewPaymentRepository(db)
	now := time.Now().UTC()
	created := 0
	for _, item := range seedPayments {
		existing, err := repo.FindByAnyID(item.localID)
		if err != nil {
			stdLog.Printf("Failed to look up %s: %v", item.localID, err)
			continue
		}
		if existing != nil {
			stdLog.Printf("Payment already exists: %s", item.localID)
			continue
		}
		payment := buildSeedPayment(item, now)
		if err := repo.Create(payment); err != nil {
			stdLog.Printf("Failed to create payment %s: %v", item.localID, err)
			continue
		}
		created++
		stdLog.Printf("Created payment: %s (%s)", item.localID, item.status)
	}
	fmt.Printf("Seed finished: %d created, %d total\n", created, len(seedPayments))
}

func buildSeedPayment(item seedPayment, now time.Time) *models.PixPayment {
	expiresAt := now.Add(20 * time.Minute)
	if item.status != constants.PaymentStatusPending {
		expiresAt = now.Add(-time.Hour)
	}
	payment := &models.PixPayment{
		ID:            item.localID,
		PaymentID:     item.providerID,
		ExternalID:    item.externalID,
		Amount:        models.NewMoneyFromDecimal(decimal.RequireFromString(item.amount)),
		Description:   item.description,
		CustomerName:  "Cliente Demo",
		CustomerEmail: "demo@example.com",
		Status:        item.status,
		QRCode:        "00020126580014br.gov.bcb.pix0136" + item.providerID,
		QRImageURL:    "https://pixgo.org/qr/" + item.providerID + ".png",
		ExpiresAt:     &expiresAt,
		CreatedAt:     now.Add(-2 * time.Hour),
	}
	if item.status == constants.PaymentStatusCompleted || item.status == constants.PaymentStatusRefunded {
		confirmed := now.Add(-90 * time.Minute)
		payment.ConfirmedAt = &confirmed
	}
	return payment
}
