package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goodies-platform/internal/domain/ledger"
	"goodies-platform/internal/payments"
	"goodies-platform/internal/repository"
	goodies_errors "goodies-platform/pkg/errors"
	"goodies-platform/pkg/logger"
)

// ReplayService reapplies recorded reconciliation failures. The ledger is
// not consulted: the event was claimed when it first arrived.
type ReplayService struct {
	failures   repository.FailureRepository
	providers  *payments.Registry
	reconciler *Reconciler
	totals     TotalsPublisher
	log        *logger.Logger
	clock      func() time.Time
}

func NewReplayService(failures repository.FailureRepository, providers *payments.Registry, reconciler *Reconciler, totals TotalsPublisher, log *logger.Logger) *ReplayService {
	return &ReplayService{
		failures:   failures,
		providers:  providers,
		reconciler: reconciler,
		totals:     totals,
		log:        log,
		clock:      time.Now,
	}
}

func (s *ReplayService) List(ctx context.Context, onlyOpen bool, limit int) ([]ledger.ReconciliationFailure, error) {
	return s.failures.List(ctx, onlyOpen, limit)
}

func (s *ReplayService) Replay(ctx context.Context, id uuid.UUID) (Reconciliation, error) {
	f, err := s.failures.GetByID(ctx, id)
	if err != nil {
		return Reconciliation{}, err
	}
	if f.ResolvedAt.Valid {
		return Reconciliation{}, fmt.Errorf("%w: failure %s already resolved", goodies_errors.ErrConflict, id)
	}

	provider, err := s.providers.Get(f.Provider)
	if err != nil {
		return Reconciliation{}, err
	}
	ctx = logger.WithEvent(ctx, f.Provider, f.EventID)

	ev, err := provider.Decode(f.Payload)
	if err != nil {
		return Reconciliation{}, err
	}
	intent, err := provider.Classify(ev)
	if err != nil {
		return Reconciliation{}, err
	}
	rec, err := s.reconciler.Apply(ctx, intent)
	if err != nil {
		s.log.Error(ctx, "replay failed", zap.String("failure_id", id.String()), zap.Error(err))
		return Reconciliation{}, fmt.Errorf("%w: %v", ErrReconciliationFailed, err)
	}

	if err := s.failures.MarkResolved(ctx, id, s.clock().UTC()); err != nil {
		return rec, fmt.Errorf("mark failure resolved: %w", err)
	}
	if rec.Totals != nil && s.totals != nil {
		if err := s.totals.PublishTotals(ctx, *rec.Totals); err != nil {
			s.log.Warn(ctx, "publish campaign totals failed", zap.Error(err))
		}
	}
	s.log.Info(ctx, "reconciliation failure replayed", zap.String("failure_id", id.String()), zap.String("outcome", string(rec.Outcome)))
	return rec, nil
}
