package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pixgo-gateway/internal/models"
)

const paymentSnapshotTTL = 10 * time.Minute

// PaymentSnapshot cached copy of a payment in a final state
type PaymentSnapshot struct {
	Payment  models.PixPayment `json:"payment"`
	CachedAt int64             `json:"cached_at"`
}

func paymentSnapshotKey(id string) string {
	return fmt.Sprintf("payment:snapshot:%s", strings.TrimSpace(id))
}

func reconcileThrottleKey(localID string) string {
	return fmt.Sprintf("payment:reconcile:%s", strings.TrimSpace(localID))
}

// GetPaymentSnapshot looks up a snapshot by local or provider id
func GetPaymentSnapshot(ctx context.Context, id string) (*models.PixPayment, bool, error) {
	var snapshot PaymentSnapshot
	hit, err := GetJSON(ctx, paymentSnapshotKey(id), &snapshot)
	if err != nil || !hit {
		return nil, false, err
	}
	return &snapshot.Payment, true, nil
}

// SetPaymentSnapshot stores the payment under both identifiers
func SetPaymentSnapshot(ctx context.Context, payment *models.PixPayment) error {
	if payment == nil {
		return nil
	}
	snapshot := PaymentSnapshot{Payment: *payment, CachedAt: time.Now().Unix()}
	if err := SetJSON(ctx, paymentSnapshotKey(payment.ID), snapshot, paymentSnapshotTTL); err != nil {
		return err
	}
	if payment.PaymentID == "" {
		return nil
	}
	return SetJSON(ctx, paymentSnapshotKey(payment.PaymentID), snapshot, paymentSnapshotTTL)
}

// DeletePaymentSnapshot drops both identifiers
func DeletePaymentSnapshot(ctx context.Context, payment *models.PixPayment) error {
	if payment == nil {
		return nil
	}
	if err := Del(ctx, paymentSnapshotKey(payment.ID)); err != nil {
		return err
	}
	if payment.PaymentID == "" {
		return nil
	}
	return Del(ctx, paymentSnapshotKey(payment.PaymentID))
}

// AcquireReconcileSlot returns true when no provider query ran for this
// payment within interval
func AcquireReconcileSlot(ctx context.Context, localID string, interval time.Duration) (bool, error) {
	if interval <= 0 {
		return true, nil
	}
	return SetNX(ctx, reconcileThrottleKey(localID), interval)
}
