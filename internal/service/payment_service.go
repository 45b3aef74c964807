package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pixgo-gateway/internal/cache"
	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/constants"
	"github.com/pixgo-gateway/internal/logger"
	"github.com/pixgo-gateway/internal/models"
	"github.com/pixgo-gateway/internal/queue"
	"github.com/pixgo-gateway/internal/repository"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	defaultMinAmount        = "10.00"
	defaultReconcileGap     = 5 * time.Second
	defaultSweepAfter       = 15 * time.Minute
	defaultSweepBatch       = 50
	defaultSweepRate        = 2.0
	defaultIntentStaleAfter = time.Minute
	defaultIntentAttempts   = 5
	defaultIntentBatch      = 50
	defaultRecoverDelay     = 30 * time.Second
	defaultWebhookWindow    = 5 * time.Minute
	maxLocalLimiters        = 10000
)

// ProviderClient PixGo API calls the service depends on
type ProviderClient interface {
	CreatePayment(ctx context.Context, payload map[string]interface{}, idempotencyKey string) (map[string]interface{}, error)
	GetPaymentStatus(ctx context.Context, providerID string) (map[string]interface{}, error)
}

// PaymentServiceOptions dependencies and settings
type PaymentServiceOptions struct {
	DB               *gorm.DB
	PaymentRepo      repository.PaymentRepository
	IntentRepo       repository.PaymentIntentRepository
	WebhookEventRepo repository.WebhookEventRepository
	Provider         ProviderClient
	ProviderName     string
	QueueClient      *queue.Client
	Payment          config.PaymentConfig
	Webhook          config.WebhookConfig
	WebhookBaseURL   string
	// StoreBackOff builds the retry policy for the local insert after provider success
	StoreBackOff func() backoff.BackOff
	Now          func() time.Time
}

// PaymentService payment lifecycle
type PaymentService struct {
	db               *gorm.DB
	paymentRepo      repository.PaymentRepository
	intentRepo       repository.PaymentIntentRepository
	webhookEventRepo repository.WebhookEventRepository
	provider         ProviderClient
	providerName     string
	queueClient      *queue.Client
	validate         *validator.Validate

	minAmount        decimal.Decimal
	reconcileMode    string
	reconcileGap     time.Duration
	sweepAfter       time.Duration
	sweepBatch       int
	sweepRate        float64
	intentStaleAfter time.Duration
	intentAttempts   int
	intentBatch      int

	webhookSecret    string
	webhookTolerance time.Duration
	allowUnsigned    bool
	webhookBaseURL   string

	storeBackOff func() backoff.BackOff
	now          func() time.Time

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// NewPaymentService builds the service
func NewPaymentService(opts PaymentServiceOptions) *PaymentService {
	minAmount, err := decimal.NewFromString(strings.TrimSpace(opts.Payment.MinAmount))
	if err != nil || !minAmount.IsPositive() {
		minAmount = decimal.RequireFromString(defaultMinAmount)
	}
	providerName := strings.ToLower(strings.TrimSpace(opts.ProviderName))
	if providerName == "" {
		providerName = constants.ProviderPixGo
	}
	mode := strings.TrimSpace(opts.Payment.Reconcile.Mode)
	if mode == "" {
		mode = config.ReconcileThrottled
	}
	s := &PaymentService{
		db:               opts.DB,
		paymentRepo:      opts.PaymentRepo,
		intentRepo:       opts.IntentRepo,
		webhookEventRepo: opts.WebhookEventRepo,
		provider:         opts.Provider,
		providerName:     providerName,
		queueClient:      opts.QueueClient,
		validate:         newInputValidator(),
		minAmount:        minAmount.Round(2),
		reconcileMode:    mode,
		reconcileGap:     secondsOr(opts.Payment.Reconcile.MinIntervalSeconds, defaultReconcileGap),
		sweepAfter:       secondsOr(opts.Payment.Reconcile.SweepAfterSeconds, defaultSweepAfter),
		sweepBatch:       intOr(opts.Payment.Reconcile.SweepBatchSize, defaultSweepBatch),
		sweepRate:        opts.Payment.Reconcile.SweepRatePerSecond,
		intentStaleAfter: secondsOr(opts.Payment.Intent.StaleAfterSeconds, defaultIntentStaleAfter),
		intentAttempts:   intOr(opts.Payment.Intent.MaxAttempts, defaultIntentAttempts),
		intentBatch:      intOr(opts.Payment.Intent.BatchSize, defaultIntentBatch),
		webhookSecret:    strings.TrimSpace(opts.Webhook.Secret),
		webhookTolerance: secondsOr(opts.Webhook.ToleranceSeconds, defaultWebhookWindow),
		allowUnsigned:    opts.Webhook.AllowUnsigned,
		webhookBaseURL:   strings.TrimRight(strings.TrimSpace(opts.WebhookBaseURL), "/"),
		storeBackOff:     opts.StoreBackOff,
		now:              opts.Now,
		limiters:         make(map[string]*rate.Limiter),
	}
	if s.sweepRate <= 0 {
		s.sweepRate = defaultSweepRate
	}
	if s.storeBackOff == nil {
		s.storeBackOff = defaultStoreBackOff
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func defaultStoreBackOff() backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 3 * time.Second
	return policy
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func intOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// ProviderName configured provider path segment
func (s *PaymentService) ProviderName() string {
	return s.providerName
}

// MinAmount smallest accepted amount
func (s *PaymentService) MinAmount() decimal.Decimal {
	return s.minAmount
}

// GetPayment loads a payment by local or provider id
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.PixPayment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrPaymentNotFound
	}
	if cached, hit, err := cache.GetPaymentSnapshot(ctx, id); err != nil {
		paymentLogger("id", id).Warnw("payment_snapshot_read_failed", "error", err)
	} else if hit {
		return cached, nil
	}

	payment, err := s.paymentRepo.FindByAnyID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if IsFinalStatus(payment.Status) {
		if err := cache.SetPaymentSnapshot(ctx, payment); err != nil {
			paymentLogger("id", payment.ID).Warnw("payment_snapshot_write_failed", "error", err)
		}
	}
	return payment, nil
}

// transition applies a status change through the FSM with a compare-and-set
// write. A lost race reloads the row and evaluates once more.
func (s *PaymentService) transition(ctx context.Context, payment *models.PixPayment, to string, confirmedAt *time.Time) (*models.PixPayment, bool, error) {
	current := payment
	for attempt := 0; attempt < 2; attempt++ {
		if current.Status == to {
			return current, false, nil
		}
		if err := CheckTransition(current.Status, to); err != nil {
			return current, false, err
		}
		now := s.now()
		update := repository.StatusUpdate{
			LocalID: current.ID,
			From:    current.Status,
			To:      to,
			At:      now,
		}
		if to == constants.PaymentStatusCompleted {
			confirmed := now
			if confirmedAt != nil {
				confirmed = *confirmedAt
			}
			update.ConfirmedAt = &confirmed
		}
		changed, err := s.paymentRepo.UpdateStatus(update)
		if err != nil {
			return current, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if changed {
			updated := *current
			updated.Status = to
			updated.UpdatedAt = &now
			if update.ConfirmedAt != nil {
				updated.ConfirmedAt = update.ConfirmedAt
			}
			if err := cache.DeletePaymentSnapshot(ctx, current); err != nil {
				paymentLogger("id", current.ID).Warnw("payment_snapshot_delete_failed", "error", err)
			}
			paymentLogger("id", current.ID, "payment_id", current.PaymentID).
				Infow("payment_status_changed", "from", current.Status, "to", to)
			return &updated, true, nil
		}

		reloaded, err := s.paymentRepo.FindByAnyID(current.ID)
		if err != nil {
			return current, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if reloaded == nil {
			return current, false, ErrPaymentNotFound
		}
		current = reloaded
	}
	if current.Status == to {
		return current, false, nil
	}
	if err := CheckTransition(current.Status, to); err != nil {
		return current, false, err
	}
	paymentLogger("id", current.ID, "payment_id", current.PaymentID).
		Warnw("payment_transition_contended", "from", current.Status, "to", to)
	return current, false, fmt.Errorf("%w: %w", ErrStoreUnavailable, ErrTransitionContended)
}
