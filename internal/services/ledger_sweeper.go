package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"goodies-platform/internal/repository"
	"goodies-platform/pkg/logger"
)

// LedgerSweeper deletes ledger rows older than the retention window.
// Providers stop redelivering long before the window closes.
type LedgerSweeper struct {
	repo      repository.LedgerRepository
	retention time.Duration
	interval  time.Duration
	clock     func() time.Time
	log       *logger.Logger
}

func NewLedgerSweeper(repo repository.LedgerRepository, retention, interval time.Duration, log *logger.Logger) *LedgerSweeper {
	return &LedgerSweeper{
		repo:      repo,
		retention: retention,
		interval:  interval,
		clock:     time.Now,
		log:       log,
	}
}

func (s *LedgerSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.log.Warn(ctx, "ledger sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *LedgerSweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.clock().Add(-s.retention)
	n, err := s.repo.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info(ctx, "ledger swept", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}
