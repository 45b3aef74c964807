package response

// Error codes carried in the envelope's error field
const (
	CodeInvalidJSON         = "INVALID_JSON"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeLimitExceeded       = "LIMIT_EXCEEDED"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidPayload      = "INVALID_PAYLOAD"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)
