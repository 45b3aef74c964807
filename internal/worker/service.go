package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pixgo-gateway/internal/config"
	"github.com/pixgo-gateway/internal/logger"
	"github.com/pixgo-gateway/internal/queue"

	"github.com/hibiken/asynq"
)

// Service asynq server
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
	queues   map[string]int
	stopOnce sync.Once
}

// NewService creates the asynq server
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
		queues:   serverCfg.Queues,
	}, nil
}

// Name service name
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start launches the task processors and blocks until ctx ends. Signals
// are handled by the app runner, not by asynq.
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	logger.Infow("worker_started", "queues", s.queues)
	<-ctx.Done()
	return nil
}

// Stop waits for in-flight tasks up to the server shutdown timeout
func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.stopOnce.Do(s.server.Shutdown)
	return nil
}
