package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/payment/pixgo"
	"github.com/pixgo-gateway/internal/queue"
	"github.com/pixgo-gateway/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"gorm.io/gorm"
)

const maxLocalIDAttempts = 3

var (
	errLocalIDExhausted  = errors.New("local id collided on every attempt")
	errProviderIDMissing = errors.New("provider response missing payment_id")
)

// optionalPayloadFields forwarded to the provider when non-empty
var optionalPayloadFields = []string{
	"description",
	"customer_name",
	"customer_cpf",
	"customer_email",
	"customer_phone",
	"customer_address",
	"external_id",
}

// CreatePaymentInput create request
type CreatePaymentInput struct {
	Amount          interface{} `json:"amount" validate:"-"`
	Description     string      `json:"description" validate:"max=200"`
	CustomerName    string      `json:"customer_name" validate:"max=100"`
	CustomerCPF     string      `json:"customer_cpf" validate:"max=14"`
	CustomerEmail   string      `json:"customer_email" validate:"max=255"`
	CustomerPhone   string      `json:"customer_phone" validate:"max=20"`
	CustomerAddress string      `json:"customer_address" validate:"max=500"`
	ExternalID      string      `json:"external_id" validate:"max=50"`
	WebhookURL      string      `json:"webhook_url" validate:"omitempty,url,max=255"`
	IdempotencyKey  string      `json:"idempotency_key" validate:"max=100"`
	// Scheme and Host of the inbound request, used for the default webhook URL
	Scheme string `json:"-" validate:"-"`
	Host   string `json:"-" validate:"-"`
}

// CreatePaymentResult created or replayed payment
type CreatePaymentResult struct {
	Payment  *models.PixPayment
	Replayed bool
}

func newInputValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeCreatePaymentInput reads a create body. Unknown fields are dropped;
// an empty or malformed body is ErrInvalidJSON.
func DecodeCreatePaymentInput(raw []byte) (CreatePaymentInput, error) {
	var body map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil || len(body) == 0 {
		return CreatePaymentInput{}, ErrInvalidJSON
	}
	return CreatePaymentInput{
		Amount:          body["amount"],
		Description:     optionalString(body["description"]),
		CustomerName:    optionalString(body["customer_name"]),
		CustomerCPF:     optionalString(body["customer_cpf"]),
		CustomerEmail:   optionalString(body["customer_email"]),
		CustomerPhone:   optionalString(body["customer_phone"]),
		CustomerAddress: optionalString(body["customer_address"]),
		ExternalID:      optionalString(body["external_id"]),
		WebhookURL:      optionalString(body["webhook_url"]),
		IdempotencyKey:  optionalString(body["idempotency_key"]),
	}, nil
}

func optionalString(value interface{}) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(value))
}

// CreatePayment validates the request, records a creation intent, calls the
// provider and stores the local record.
func (s *PaymentService) CreatePayment(ctx context.Context, input CreatePaymentInput) (*CreatePaymentResult, error) {
	amount, err := s.validateCreateInput(input)
	if err != nil {
		return nil, err
	}
	payload := s.buildProviderPayload(input, amount)

	key := strings.TrimSpace(input.IdempotencyKey)
	var intent *models.PaymentIntent
	if key != "" {
		existing, replay, err := s.resolveIdempotencyKey(key, payload)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return replay, nil
		}
		intent = existing
	} else {
		key = uuid.NewString()
	}
	if intent == nil {
		intent = &models.PaymentIntent{
			LocalID:        uuid.NewString(),
			IdempotencyKey: key,
			RequestPayload: payload,
			Status:         constants.IntentStatusPending,
		}
		if err := s.intentRepo.Create(intent); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return nil, ErrIdempotencyConflict
			}
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	log := paymentLogger("intent_id", intent.ID, "local_id", intent.LocalID)

	data, err := s.provider.CreatePayment(ctx, payload, key)
	if err != nil {
		return nil, s.handleCreateProviderError(intent, amount, err)
	}
	providerID, err := s.acceptProviderAnswer(intent, data)
	if err != nil {
		return nil, err
	}
	if err := s.intentRepo.MarkProviderCreated(intent.ID, providerID, models.JSON(data)); err != nil {
		log.Warnw("payment_intent_mark_provider_created_failed", "payment_id", providerID, "error", err)
	}
	intent.ProviderPaymentID = providerID
	intent.ProviderResponse = models.JSON(data)

	payment, err := s.materialize(ctx, intent, data)
	if err != nil {
		log.Errorw("payment_store_after_provider_failed", "payment_id", providerID, "error", err)
		if recordErr := s.intentRepo.RecordAttempt(intent.ID, err.Error()); recordErr != nil {
			log.Warnw("payment_intent_record_attempt_failed", "error", recordErr)
		}
		if queueErr := s.queueClient.EnqueueIntentRecover(queue.IntentRecoverPayload{IntentID: intent.ID}, defaultRecoverDelay); queueErr != nil {
			log.Warnw("payment_intent_recover_enqueue_failed", "error", queueErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	log.Infow("payment_created", "id", payment.ID, "payment_id", payment.PaymentID, "amount", payment.Amount.String())
	return &CreatePaymentResult{Payment: payment}, nil
}

func (s *PaymentService) validateCreateInput(input CreatePaymentInput) (models.Money, error) {
	raw, err := models.ParseDecimal(input.Amount)
	if err != nil || !raw.IsPositive() || raw.LessThan(s.minAmount) {
		return models.Money{}, &ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("Minimum amount is R$ %s", s.minAmount.StringFixed(2)),
			Err:     ErrAmountInvalid,
		}
	}
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return models.Money{}, &ValidationError{
				Field:   fieldErrs[0].Field(),
				Message: validationMessage(fieldErrs[0]),
			}
		}
		return models.Money{}, &ValidationError{Message: err.Error()}
	}
	return models.NewMoneyFromDecimal(raw), nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func (s *PaymentService) buildProviderPayload(input CreatePaymentInput, amount models.Money) models.JSON {
	values := map[string]string{
		"description":      input.Description,
		"customer_name":    input.CustomerName,
		"customer_cpf":     input.CustomerCPF,
		"customer_email":   input.CustomerEmail,
		"customer_phone":   input.CustomerPhone,
		"customer_address": input.CustomerAddress,
		"external_id":      input.ExternalID,
	}
	payload := models.JSON{"amount": amount.Float64()}
	for _, field := range optionalPayloadFields {
		if value := strings.TrimSpace(values[field]); value != "" {
			payload[field] = value
		}
	}
	if webhookURL := strings.TrimSpace(input.WebhookURL); webhookURL != "" {
		payload["webhook_url"] = webhookURL
	} else {
		payload["webhook_url"] = s.defaultWebhookURL(input.Scheme, input.Host)
	}
	return payload
}

func (s *PaymentService) defaultWebhookURL(scheme, host string) string {
	path := "/webhook/" + s.providerName
	if s.webhookBaseURL != "" {
		return s.webhookBaseURL + path
	}
	scheme = strings.ToLower(strings.TrimSpace(scheme))
	if scheme != "https" {
		scheme = "http"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host + path
}

// resolveIdempotencyKey returns a replay result for a finished key, a
// reopened intent for a failed key, or nil for an unused key
func (s *PaymentService) resolveIdempotencyKey(key string, payload models.JSON) (*models.PaymentIntent, *CreatePaymentResult, error) {
	existing, err := s.intentRepo.GetByIdempotencyKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existing == nil {
		return nil, nil, nil
	}
	switch existing.Status {
	case constants.IntentStatusCompleted:
		if !sameCreateRequest(existing.RequestPayload, payload) {
			paymentLogger("intent_id", existing.ID).Warnw("payment_create_key_reused", "idempotency_key", key)
			return nil, nil, ErrIdempotencyConflict
		}
		payment, err := s.paymentRepo.FindByAnyID(existing.LocalID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if payment == nil {
			return nil, nil, ErrIdempotencyConflict
		}
		paymentLogger("intent_id", existing.ID, "id", payment.ID).Infow("payment_create_replayed")
		return nil, &CreatePaymentResult{Payment: payment, Replayed: true}, nil
	case constants.IntentStatusFailed:
		if err := s.intentRepo.Reopen(existing.ID, payload); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		existing.Status = constants.IntentStatusPending
		existing.RequestPayload = payload
		existing.Attempts = 0
		return existing, nil, nil
	default:
		return nil, nil, ErrIdempotencyConflict
	}
}

// acceptProviderAnswer returns the provider payment id. An answer without
// one cannot be stored or reconciled, so the intent is closed as failed.
func (s *PaymentService) acceptProviderAnswer(intent *models.PaymentIntent, data map[string]interface{}) (string, error) {
	providerID := strings.TrimSpace(cast.ToString(data["payment_id"]))
	if providerID != "" {
		return providerID, nil
	}
	log := paymentLogger("intent_id", intent.ID, "local_id", intent.LocalID)
	log.Errorw("payment_provider_answer_missing_id", "status", cast.ToString(data["status"]))
	if err := s.intentRepo.MarkFailed(intent.ID, errProviderIDMissing.Error()); err != nil {
		log.Warnw("payment_intent_mark_failed_failed", "error", err)
	}
	return "", &ProviderError{Message: "Invalid response from PixGo", Err: errProviderIDMissing}
}

// sameCreateRequest reports whether two provider payloads ask for the same
// charge: equal amount and external_id
func sameCreateRequest(stored, incoming models.JSON) bool {
	storedAmount, err := models.ParseMoney(stored["amount"])
	if err != nil {
		return false
	}
	incomingAmount, err := models.ParseMoney(incoming["amount"])
	if err != nil || !storedAmount.Equal(incomingAmount.Decimal) {
		return false
	}
	return cast.ToString(stored["external_id"]) == cast.ToString(incoming["external_id"])
}

// handleCreateProviderError closes the intent on a definitive rejection. A
// transport failure leaves it pending so recovery can replay the same key.
func (s *PaymentService) handleCreateProviderError(intent *models.PaymentIntent, amount models.Money, err error) error {
	log := paymentLogger("intent_id", intent.ID, "local_id", intent.LocalID)
	var apiErr *pixgo.APIError
	if errors.As(err, &apiErr) {
		if markErr := s.intentRepo.MarkFailed(intent.ID, err.Error()); markErr != nil {
			log.Warnw("payment_intent_mark_failed_failed", "error", markErr)
		}
	} else if recordErr := s.intentRepo.RecordAttempt(intent.ID, err.Error()); recordErr != nil {
		log.Warnw("payment_intent_record_attempt_failed", "error", recordErr)
	}
	log.Warnw("payment_create_provider_failed", "error", err)

	if limitErr, ok := pixgo.IsLimitExceeded(err); ok {
		message := cast.ToString(limitErr.Details["message"])
		if strings.TrimSpace(message) == "" {
			message = "Limit exceeded"
		}
		requested := limitErr.Details["amount_requested"]
		if requested == nil {
			requested = amount
		}
		return &LimitExceededError{
			Message:         message,
			CurrentLimit:    limitErr.Details["current_limit"],
			AmountRequested: requested,
			Err:             err,
		}
	}
	message := err.Error()
	if apiErr != nil {
		message = apiErr.Message
	}
	return &ProviderError{Message: message, Err: err}
}

// materialize inserts the local record and completes the intent in one
// transaction. A local id collision draws a new id; other store failures are
// retried with backoff.
func (s *PaymentService) materialize(ctx context.Context, intent *models.PaymentIntent, data map[string]interface{}) (*models.PixPayment, error) {
	providerID := cast.ToString(data["payment_id"])
	localID := intent.LocalID
	var stored *models.PixPayment

	operation := func() error {
		for attempt := 0; attempt < maxLocalIDAttempts; attempt++ {
			record := buildPaymentRecord(localID, intent.RequestPayload, data, s.now())
			err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := s.paymentRepo.WithTx(tx).Create(record); err != nil {
					return err
				}
				return s.intentRepo.WithTx(tx).MarkCompleted(intent.ID, record.ID)
			})
			if err == nil {
				stored = record
				return nil
			}
			if !errors.Is(err, repository.ErrDuplicateKey) {
				return err
			}
			if providerID != "" {
				existing, findErr := s.paymentRepo.FindByProviderID(providerID)
				if findErr != nil {
					return findErr
				}
				if existing != nil {
					stored = existing
					return s.intentRepo.MarkCompleted(intent.ID, existing.ID)
				}
			}
			paymentLogger("intent_id", intent.ID).Warnw("payment_local_id_collision", "local_id", localID)
			localID = uuid.NewString()
		}
		return backoff.Permanent(errLocalIDExhausted)
	}

	if err := backoff.Retry(operation, backoff.WithContext(s.storeBackOff(), ctx)); err != nil {
		return nil, err
	}
	return stored, nil
}

// buildPaymentRecord maps the request payload and provider answer onto a record
func buildPaymentRecord(localID string, request models.JSON, data map[string]interface{}, now time.Time) *models.PixPayment {
	amount, _ := models.ParseMoney(request["amount"])
	status, ok := pixgo.NormalizeStatus(cast.ToString(data["status"]))
	if !ok {
		status = constants.PaymentStatusPending
	}
	externalID := cast.ToString(data["external_id"])
	if externalID == "" {
		externalID = cast.ToString(request["external_id"])
	}
	return &models.PixPayment{
		ID:              localID,
		PaymentID:       cast.ToString(data["payment_id"]),
		ExternalID:      externalID,
		Amount:          amount,
		Description:     cast.ToString(request["description"]),
		CustomerName:    cast.ToString(request["customer_name"]),
		CustomerCPF:     cast.ToString(request["customer_cpf"]),
		CustomerEmail:   cast.ToString(request["customer_email"]),
		CustomerPhone:   cast.ToString(request["customer_phone"]),
		CustomerAddress: cast.ToString(request["customer_address"]),
		Status:          status,
		QRCode:          cast.ToString(data["qr_code"]),
		QRImageURL:      cast.ToString(data["qr_image_url"]),
		ExpiresAt:       parseProviderTime(data["expires_at"]),
		CreatedAt:       now,
	}
}

// parseProviderTime reads RFC3339, "2006-01-02 15:04:05" and similar layouts
func parseProviderTime(value interface{}) *time.Time {
	if value == nil {
		return nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	parsed, err := cast.ToTimeE(value)
	if err != nil || parsed.IsZero() {
		return nil
	}
	return &parsed
}
