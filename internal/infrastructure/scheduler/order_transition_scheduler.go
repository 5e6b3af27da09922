package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// OrderAdvancer advances time-driven order states. Implemented by the
// ordering application service.
type OrderAdvancer interface {
	AdvanceScheduled(ctx context.Context, now time.Time) (int, error)
}

// OrderTransitionSchedulerConfig holds configuration for the order
// transition scheduler
type OrderTransitionSchedulerConfig struct {
	// Enabled indicates if the scheduler runs at all
	Enabled bool
	// CheckInterval is the ticker cadence
	CheckInterval time.Duration
	// RunTimeout bounds a single advance pass
	RunTimeout time.Duration
}

// DefaultOrderTransitionSchedulerConfig returns default configuration
func DefaultOrderTransitionSchedulerConfig() OrderTransitionSchedulerConfig {
	return OrderTransitionSchedulerConfig{
		Enabled:       true,
		CheckInterval: 5 * time.Minute,
		RunTimeout:    time.Minute,
	}
}

// OrderTransitionScheduler periodically advances orders through their
// preparation states as the delivery window approaches
type OrderTransitionScheduler struct {
	config   OrderTransitionSchedulerConfig
	advancer OrderAdvancer
	logger   *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewOrderTransitionScheduler creates a new scheduler
func NewOrderTransitionScheduler(
	config OrderTransitionSchedulerConfig,
	advancer OrderAdvancer,
	logger *zap.Logger,
) *OrderTransitionScheduler {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 5 * time.Minute
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = time.Minute
	}
	return &OrderTransitionScheduler{
		config:   config,
		advancer: advancer,
		logger:   logger,
	}
}

// Start begins the ticker loop. It is a no-op when disabled or already
// running.
func (s *OrderTransitionScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info("order transition scheduler disabled")
		return
	}
	if s.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.isRunning = true

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("order transition scheduler started",
		zap.Duration("check_interval", s.config.CheckInterval))
}

// Stop stops the ticker loop and waits for an in-flight pass to finish
func (s *OrderTransitionScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("order transition scheduler stopped")
}

func (s *OrderTransitionScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.advanceOnce(ctx, now)
		}
	}
}

func (s *OrderTransitionScheduler) advanceOnce(ctx context.Context, now time.Time) {
	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	advanced, err := s.advancer.AdvanceScheduled(runCtx, now)
	if err != nil {
		s.logger.Error("order advance pass failed", zap.Error(err))
		return
	}
	if advanced > 0 {
		s.logger.Info("orders advanced", zap.Int("count", advanced))
	}
}
