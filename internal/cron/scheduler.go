package cron

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PaymentSweeper is the part of the checkout service the sweeps drive.
type PaymentSweeper interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
	ExpireStale(ctx context.Context, maxAge time.Duration, limit int) (int64, error)
}

type Config struct {
	// ReconcileAfter is how long an online order may sit unpaid before the
	// sweep asks its gateway.
	ReconcileAfter time.Duration
	ReconcileBatch int
	// ExpireAfter cancels online orders still unpaid after this long.
	ExpireAfter time.Duration
	JobTimeout  time.Duration
}

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron    *cron.Cron
	sweeper PaymentSweeper
	cfg     Config
	logger  *zap.Logger
}

func New(sweeper PaymentSweeper, cfg Config, logger *zap.Logger) *Scheduler {
	if cfg.ReconcileAfter <= 0 {
		cfg.ReconcileAfter = 2 * time.Minute
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = 100
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = 24 * time.Hour
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 4 * time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...")

	// Pending payment reconciliation - every 5 minutes
	if _, err := s.cron.AddFunc("0 */5 * * * *", func() {
		s.logger.Debug("Running: reconcile pending payments")
		s.reconcilePending()
	}); err != nil {
		return err
	}

	// Payment expire - every 10 minutes
	if _, err := s.cron.AddFunc("0 */10 * * * *", func() {
		s.logger.Debug("Running: payment expire")
		s.paymentExpire()
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) reconcilePending() {
	defer s.recoverFromPanic("reconcilePending")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	changed, err := s.sweeper.ReconcilePending(ctx, s.cfg.ReconcileAfter, s.cfg.ReconcileBatch)
	if err != nil {
		s.logger.Error("Reconcile pending payments failed", zap.Int("changed", changed), zap.Error(err))
		return
	}
	if changed > 0 {
		s.logger.Info("Reconciled pending payments", zap.Int("changed", changed))
	}
}

func (s *Scheduler) paymentExpire() {
	defer s.recoverFromPanic("paymentExpire")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	if _, err := s.sweeper.ExpireStale(ctx, s.cfg.ExpireAfter, s.cfg.ReconcileBatch); err != nil {
		s.logger.Error("Payment expire failed", zap.Error(err))
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
