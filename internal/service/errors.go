package service

import (
	"errors"
)

var (
	ErrInvalidJSON           = errors.New("invalid JSON")
	ErrValidationFailed      = errors.New("validation failed")
	ErrAmountInvalid         = errors.New("amount invalid")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrIdempotencyConflict   = errors.New("idempotency key is already in use by another request")
	ErrProviderUnavailable   = errors.New("communication with PixGo failed")
	ErrStoreUnavailable      = errors.New("payment store unavailable")
	ErrWebhookUnauthorized   = errors.New("webhook authentication failed")
	ErrWebhookPayloadInvalid = errors.New("invalid payload")
	ErrProviderNotSupported  = errors.New("provider not supported")
	ErrIllegalTransition     = errors.New("illegal status transition")
	ErrTransitionContended   = errors.New("status transition lost every compare-and-set race")
	ErrQRCodeUnavailable     = errors.New("qr code unavailable")
)

// ValidationError rejected input field
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrValidationFailed
	}
	return e.Err
}

// LimitExceededError provider refused the amount for the account limit
type LimitExceededError struct {
	Message         string
	CurrentLimit    interface{}
	AmountRequested interface{}
	Err             error
}

func (e *LimitExceededError) Error() string {
	return e.Message
}

func (e *LimitExceededError) Unwrap() error {
	return e.Err
}

// ProviderError provider call failed. Message is safe to return to the caller.
type ProviderError struct {
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches ErrProviderUnavailable
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderUnavailable
}
