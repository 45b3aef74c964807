package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/payment/pixgo"
)

// RecoverIntent drives one creation intent to a stored payment. A
// provider_created intent is materialized from the stored provider answer; a
// pending intent replays the create call with its original idempotency key.
func (s *PaymentService) RecoverIntent(ctx context.Context, intentID uint) error {
	intent, err := s.intentRepo.GetByID(intentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if intent == nil {
		return nil
	}
	log := paymentLogger("intent_id", intent.ID, "local_id", intent.LocalID, "status", intent.Status)

	switch intent.Status {
	case constants.IntentStatusCompleted, constants.IntentStatusFailed:
		return nil
	case constants.IntentStatusProviderCreated:
		return s.finishIntent(ctx, intent, intent.ProviderResponse)
	}

	if intent.Attempts >= s.intentAttempts {
		log.Warnw("payment_intent_recovery_exhausted", "attempts", intent.Attempts)
		return s.intentRepo.MarkFailed(intent.ID, "recovery attempts exhausted")
	}
	data, err := s.provider.CreatePayment(ctx, intent.RequestPayload, intent.IdempotencyKey)
	if err != nil {
		var apiErr *pixgo.APIError
		if errors.As(err, &apiErr) {
			log.Warnw("payment_intent_recovery_rejected", "error", err)
			return s.intentRepo.MarkFailed(intent.ID, err.Error())
		}
		if recordErr := s.intentRepo.RecordAttempt(intent.ID, err.Error()); recordErr != nil {
			log.Warnw("payment_intent_record_attempt_failed", "error", recordErr)
		}
		return err
	}
	providerID, err := s.acceptProviderAnswer(intent, data)
	if err != nil {
		return nil
	}
	if err := s.intentRepo.MarkProviderCreated(intent.ID, providerID, models.JSON(data)); err != nil {
		log.Warnw("payment_intent_mark_provider_created_failed", "payment_id", providerID, "error", err)
	}
	intent.ProviderPaymentID = providerID
	return s.finishIntent(ctx, intent, data)
}

func (s *PaymentService) finishIntent(ctx context.Context, intent *models.PaymentIntent, data map[string]interface{}) error {
	log := paymentLogger("intent_id", intent.ID, "local_id", intent.LocalID)
	if len(data) == 0 {
		if err := s.intentRepo.RecordAttempt(intent.ID, "provider response missing"); err != nil {
			log.Warnw("payment_intent_record_attempt_failed", "error", err)
		}
		return ErrProviderUnavailable
	}
	if _, err := s.acceptProviderAnswer(intent, data); err != nil {
		return nil
	}
	payment, err := s.materialize(ctx, intent, data)
	if err != nil {
		if recordErr := s.intentRepo.RecordAttempt(intent.ID, err.Error()); recordErr != nil {
			log.Warnw("payment_intent_record_attempt_failed", "error", recordErr)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	log.Infow("payment_intent_recovered", "id", payment.ID, "payment_id", payment.PaymentID)
	return nil
}

// RecoverStaleIntents drives intents left open longer than the stale window
// and returns how many reached a terminal state
func (s *PaymentService) RecoverStaleIntents(ctx context.Context, now time.Time) (int, error) {
	intents, err := s.intentRepo.ListRecoverable(now.Add(-s.intentStaleAfter), s.intentAttempts+1, s.intentBatch)
	if err != nil {
		return 0, err
	}
	handled := 0
	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		if err := s.RecoverIntent(ctx, intent.ID); err != nil {
			paymentLogger("intent_id", intent.ID).Warnw("payment_intent_recovery_failed", "error", err)
			continue
		}
		handled++
	}
	if len(intents) > 0 {
		paymentLogger().Infow("payment_intent_sweep_done", "scanned", len(intents), "handled", handled)
	}
	return handled, nil
}
