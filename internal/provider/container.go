package provider

import (
	"time"

	"github.com/pixgo-gateway/internal/cache"
	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/logger"
	"github.com/pixgo-gateway/internal/payment/pixgo"
	"github.com/pixgo-gateway/internal/queue"
	"github.com/pixgo-gateway/internal/repository"
	"github.com/pixgo-gateway/internal/service"

	"gorm.io/gorm"
)

// Container dependency container
type Container struct {
	Config      *config.Config
	DB          *gorm.DB
	QueueClient *queue.Client
	PixGoClient *pixgo.Client

	// Repositories
	PaymentRepo       repository.PaymentRepository
	PaymentIntentRepo repository.PaymentIntentRepository
	WebhookEventRepo  repository.WebhookEventRepository
	StoreProbe        repository.StoreProbe

	// Services
	PaymentService *service.PaymentService
}

// NewContainer wires repositories and services around an open store handle
func NewContainer(cfg *config.Config, db *gorm.DB) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
	}

	c := &Container{
		Config:      cfg,
		DB:          db,
		QueueClient: queueClient,
		PixGoClient: pixgo.NewClient(pixgo.Config{
			APIKey:  cfg.Provider.APIKey,
			BaseURL: cfg.Provider.BaseURL,
			Timeout: time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
		}),
	}
	if !c.PixGoClient.Configured() {
		logger.Warnw("provider_pixgo_api_key_missing")
	}

	c.initRepositories()
	c.initServices()
	return c
}

func (c *Container) initRepositories() {
	c.PaymentRepo = repository.NewPaymentRepository(c.DB)
	c.PaymentIntentRepo = repository.NewPaymentIntentRepository(c.DB)
	c.WebhookEventRepo = repository.NewWebhookEventRepository(c.DB)
	c.StoreProbe = repository.NewStoreProbe(c.DB)
}

func (c *Container) initServices() {
	c.PaymentService = service.NewPaymentService(service.PaymentServiceOptions{
		DB:               c.DB,
		PaymentRepo:      c.PaymentRepo,
		IntentRepo:       c.PaymentIntentRepo,
		WebhookEventRepo: c.WebhookEventRepo,
		Provider:         c.PixGoClient,
		ProviderName:     c.Config.Provider.Name,
		QueueClient:      c.QueueClient,
		Payment:          c.Config.Payment,
		Webhook:          c.Config.Webhook,
		WebhookBaseURL:   c.Config.Provider.WebhookBaseURL,
	})
}

// Close releases the queue client and redis. The store handle belongs to the caller.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
