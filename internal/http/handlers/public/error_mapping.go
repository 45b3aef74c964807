package public

import (
	"errors"
	"net/http"

	"github.com/pixgo-gateway/internal/http/handlers/shared"
	"github.com/pixgo-gateway/internal/http/response"
	"github.com/pixgo-gateway/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError maps a service sentinel to an envelope response
type mappedHandlerError struct {
	target  error
	status  int
	code    string
	message string
	logged  bool
}

var paymentErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidJSON, status: http.StatusBadRequest, code: response.CodeInvalidJSON, message: "Invalid JSON"},
	{target: service.ErrPaymentNotFound, status: http.StatusNotFound, code: response.CodeNotFound, message: "Payment not found"},
	{target: service.ErrQRCodeUnavailable, status: http.StatusNotFound, code: response.CodeNotFound, message: "QR code not available"},
	{target: service.ErrIdempotencyConflict, status: http.StatusConflict, code: response.CodeIdempotencyConflict, message: "Idempotency key is already in use by another request"},
	{target: service.ErrStoreUnavailable, status: http.StatusInternalServerError, code: response.CodeStoreUnavailable, message: "Payment store unavailable", logged: true},
	{target: service.ErrValidationFailed, status: http.StatusUnprocessableEntity, code: response.CodeValidationFailed, message: "Validation failed"},
}

var webhookErrorRules = []mappedHandlerError{
	{target: service.ErrProviderNotSupported, status: http.StatusNotFound, code: response.CodeNotFound, message: "Provider not supported"},
	{target: service.ErrWebhookUnauthorized, status: http.StatusUnauthorized, code: response.CodeUnauthorized, message: "Unauthorized"},
	{target: service.ErrWebhookPayloadInvalid, status: http.StatusBadRequest, code: response.CodeInvalidPayload, message: "Invalid payload"},
	{target: service.ErrStoreUnavailable, status: http.StatusInternalServerError, code: response.CodeStoreUnavailable, message: "Payment store unavailable", logged: true},
}

// respondWithMappedError resolves typed errors first, then sentinels, then falls back to 500
func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError) {
	if appErr := typedServiceError(err); appErr != nil {
		shared.RespondAppError(c, appErr)
		return
	}
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			var cause error
			if rule.logged {
				cause = err
			}
			shared.RespondError(c, rule.status, rule.code, rule.message, cause)
			return
		}
	}
	shared.RespondError(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error", err)
}

// typedServiceError handles errors that carry their own message or details
func typedServiceError(err error) *response.AppError {
	var limitErr *service.LimitExceededError
	if errors.As(err, &limitErr) {
		appErr := response.WrapError(http.StatusBadRequest, response.CodeLimitExceeded, limitErr.Message, nil)
		appErr.Data = gin.H{
			"current_limit":    limitErr.CurrentLimit,
			"amount_requested": limitErr.AmountRequested,
		}
		return appErr
	}
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return response.WrapError(http.StatusUnprocessableEntity, response.CodeValidationFailed, validationErr.Message, nil)
	}
	var providerErr *service.ProviderError
	if errors.As(err, &providerErr) {
		message := providerErr.Message
		if message == "" {
			message = service.ErrProviderUnavailable.Error()
		}
		return response.WrapError(http.StatusInternalServerError, response.CodeUpstreamError, message, providerErr.Err)
	}
	if errors.Is(err, service.ErrProviderUnavailable) {
		return response.WrapError(http.StatusInternalServerError, response.CodeUpstreamError, service.ErrProviderUnavailable.Error(), err)
	}
	return nil
}
