package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/kevin07696/slot-billing/internal/domain/ports"
	"github.com/kevin07696/slot-billing/pkg/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepLockKey = "billing:notification-sweep:lock"

// SweeperConfig holds retry sweep settings
type SweeperConfig struct {
	Schedule  string        // cron spec, e.g. "*/5 * * * *"
	BatchSize int           // records per run
	LockTTL   time.Duration // upper bound on one run across replicas
	MinAge    time.Duration // records paid more recently are left to the dispatcher
}

// Sweeper periodically retries receipts for paid records whose notification
// never went out (process crash, provider outage).
type Sweeper struct {
	dispatcher *Dispatcher
	records    ports.PaymentRecordRepository
	locker     ports.Locker
	cron       *cron.Cron
	cfg        SweeperConfig
	now        func() time.Time
	logger     *zap.Logger
}

// NewSweeper creates a new retry sweep. locker may be nil for single replica deployments.
func NewSweeper(dispatcher *Dispatcher, records ports.PaymentRecordRepository, locker ports.Locker, cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "*/5 * * * *"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Sweeper{
		dispatcher: dispatcher,
		records:    records,
		locker:     locker,
		cron:       cron.New(),
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// Start schedules the sweep
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := s.dispatcher.cfg.Timeouts.SweepContext(context.Background())
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("notification sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule notification sweep %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.logger.Info("notification sweep scheduled", zap.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire
func (s *Sweeper) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce delivers pending receipts once. Returns how many were delivered.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		acquired, err := s.locker.TryLock(ctx, sweepLockKey, s.cfg.LockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !acquired {
			s.logger.Debug("notification sweep already running on another replica")
			return 0, nil
		}
		defer func() {
			if err := s.locker.Unlock(context.Background(), sweepLockKey); err != nil {
				s.logger.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	pending, err := s.records.ListPendingNotifications(ctx, nil, s.now().Add(-s.cfg.MinAge), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending notifications: %w", err)
	}
	observability.SetNotificationBacklog(len(pending))

	delivered := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			break
		}
		if s.dispatcher.Deliver(ctx, rec.ID) {
			delivered++
		}
	}

	if len(pending) > 0 {
		s.logger.Info("notification sweep finished",
			zap.Int("pending", len(pending)),
			zap.Int("delivered", delivered))
	}
	return delivered, nil
}
