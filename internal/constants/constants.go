package constants

// Payment status
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusExpired   = "expired"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusRefunded  = "refunded"
)

// Provider webhook event types
const (
	WebhookEventPaymentCompleted = "payment.completed"
	WebhookEventPaymentExpired   = "payment.expired"
	WebhookEventPaymentRefunded  = "payment.refunded"
	WebhookEventPaymentCancelled = "payment.cancelled"
)

// Webhook event log outcomes
const (
	WebhookOutcomeReceived  = "received"
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeNoop      = "noop"
	WebhookOutcomeRejected  = "rejected"
	WebhookOutcomeUnmatched = "unmatched"
	WebhookOutcomeIgnored   = "ignored"
)

// Creation intent status
const (
	IntentStatusPending         = "pending"
	IntentStatusProviderCreated = "provider_created"
	IntentStatusCompleted       = "completed"
	IntentStatusFailed          = "failed"
)

// Providers
const (
	ProviderPixGo = "pixgo"
)

// Provider error codes
const (
	ProviderErrorLimitExceeded = "LIMIT_EXCEEDED"
)

// Webhook headers
const (
	HeaderWebhookEvent     = "X-Webhook-Event"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderIdempotencyKey   = "Idempotency-Key"
)

// Queue and tasks
const (
	QueueDefault         = "default"
	TaskIntentRecover    = "pixgo:intent:recover"
	TaskPaymentReconcile = "pixgo:payment:reconcile"
	TaskPendingSweep     = "pixgo:payment:pending_sweep"
)

// Table names
const (
	PaymentsTableName       = "pixgo_payments"
	PaymentIntentsTableName = "pixgo_payment_intents"
	WebhookEventsTableName  = "pixgo_webhook_events"
)
