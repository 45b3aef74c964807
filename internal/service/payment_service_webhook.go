package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/payment/pixgo"

	"github.com/spf13/cast"
)

// WebhookInput raw webhook delivery
type WebhookInput struct {
	Provider    string
	Body        []byte
	EventHeader string
	Timestamp   string
	Signature   string
}

// WebhookResult acknowledgement body
type WebhookResult struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
}

// webhookTargetStatus maps an event type to the status it moves a payment to
func webhookTargetStatus(event string) (string, bool) {
	switch event {
	case constants.WebhookEventPaymentCompleted:
		return constants.PaymentStatusCompleted, true
	case constants.WebhookEventPaymentExpired:
		return constants.PaymentStatusExpired, true
	case constants.WebhookEventPaymentRefunded:
		return constants.PaymentStatusRefunded, true
	case constants.WebhookEventPaymentCancelled:
		return constants.PaymentStatusCancelled, true
	default:
		return "", false
	}
}

// HandleWebhook authenticates and applies a provider event. Once the
// delivery is authenticated and parsed it is always acknowledged, except
// when the store is unreachable so the provider retries.
func (s *PaymentService) HandleWebhook(ctx context.Context, input WebhookInput) (*WebhookResult, error) {
	provider := strings.ToLower(strings.TrimSpace(input.Provider))
	if provider != s.providerName {
		return nil, ErrProviderNotSupported
	}
	log := paymentLogger("provider", provider, "event_header", input.EventHeader)
	if err := s.verifyWebhook(input); err != nil {
		log.Warnw("webhook_unauthorized", "error", err)
		return nil, err
	}

	var body map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(input.Body))
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil || body == nil {
		return nil, ErrWebhookPayloadInvalid
	}
	eventType := strings.TrimSpace(cast.ToString(body["event"]))
	if eventType == "" {
		return nil, ErrWebhookPayloadInvalid
	}
	data := cast.ToStringMap(body["data"])
	providerID := strings.TrimSpace(cast.ToString(data["payment_id"]))
	log = log.With("event", eventType, "payment_id", providerID)
	log.Infow("webhook_received")

	sum := sha256.Sum256(input.Body)
	event := &models.WebhookEvent{
		Provider:          provider,
		EventKey:          hex.EncodeToString(sum[:]),
		EventType:         eventType,
		ProviderPaymentID: providerID,
		Outcome:           constants.WebhookOutcomeReceived,
		ReceivedAt:        s.now(),
	}
	inserted, err := s.webhookEventRepo.Record(event)
	if err != nil {
		log.Errorw("webhook_event_record_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !inserted {
		log.Infow("webhook_duplicate")
		return &WebhookResult{Received: true, Duplicate: true}, nil
	}

	outcome, err := s.applyWebhookEvent(ctx, eventType, providerID, data)
	if err != nil {
		log.Errorw("webhook_apply_failed", "error", err)
		if forgetErr := s.webhookEventRepo.Forget(event.ID); forgetErr != nil {
			log.Warnw("webhook_event_forget_failed", "error", forgetErr)
		}
		return nil, err
	}
	if err := s.webhookEventRepo.UpdateOutcome(event.ID, outcome); err != nil {
		log.Warnw("webhook_event_outcome_failed", "outcome", outcome, "error", err)
	}
	log.Infow("webhook_processed", "outcome", outcome)
	return &WebhookResult{Received: true, Outcome: outcome}, nil
}

func (s *PaymentService) verifyWebhook(input WebhookInput) error {
	if s.webhookSecret == "" {
		if s.allowUnsigned {
			return nil
		}
		return fmt.Errorf("%w: webhook secret not configured", ErrWebhookUnauthorized)
	}
	err := pixgo.VerifySignature(s.webhookSecret, input.Timestamp, input.Body, input.Signature, s.webhookTolerance, s.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookUnauthorized, err)
	}
	return nil
}

func (s *PaymentService) applyWebhookEvent(ctx context.Context, eventType, providerID string, data map[string]interface{}) (string, error) {
	target, ok := webhookTargetStatus(eventType)
	if !ok {
		return constants.WebhookOutcomeIgnored, nil
	}
	if providerID == "" {
		return constants.WebhookOutcomeUnmatched, nil
	}
	payment, err := s.paymentRepo.FindByProviderID(providerID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if payment == nil {
		return constants.WebhookOutcomeUnmatched, nil
	}

	_, changed, err := s.transition(ctx, payment, target, parseProviderTime(data["completed_at"]))
	if err != nil {
		if errors.Is(err, ErrIllegalTransition) {
			paymentLogger("id", payment.ID, "payment_id", providerID).
				Warnw("webhook_transition_rejected", "from", payment.Status, "to", target)
			return constants.WebhookOutcomeRejected, nil
		}
		if errors.Is(err, ErrPaymentNotFound) {
			return constants.WebhookOutcomeUnmatched, nil
		}
		return "", err
	}
	if !changed {
		return constants.WebhookOutcomeNoop, nil
	}
	return constants.WebhookOutcomeApplied, nil
}
