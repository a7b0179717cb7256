package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"goodies-platform/internal/domain/ledger"
	"goodies-platform/internal/repository"
	"goodies-platform/pkg/logger"
)

// Failure is a claimed event whose reconciliation did not commit.
type Failure struct {
	Provider  string
	EventID   string
	EventType string
	Payload   []byte
	Err       error
	At        time.Time
}

// FailureSink is the alert and replay hook. Report is called exactly once
// per failed reconciliation and must not return an error to the caller.
type FailureSink interface {
	Report(ctx context.Context, f Failure)
}

type AlertPublisher interface {
	PublishReconciliationAlert(ctx context.Context, f ledger.ReconciliationFailure) error
}

type PayloadArchive interface {
	Put(ctx context.Context, key string, body []byte) error
}

type SinkConfig struct {
	// Timeout bounds the failure record write and each alert or archive
	// call.
	Timeout   time.Duration
	QueueSize int
}

// FanoutSink records the failure for replay within Timeout, then hands
// the alert and payload archive to a background worker. Report never
// waits on redis or S3. Any of alerts and archive may be nil.
type FanoutSink struct {
	store   repository.FailureRepository
	alerts  AlertPublisher
	archive PayloadArchive
	cfg     SinkConfig
	log     *logger.Logger

	queue   chan ledger.ReconciliationFailure
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewFanoutSink(store repository.FailureRepository, alerts AlertPublisher, archive PayloadArchive, cfg SinkConfig, log *logger.Logger) *FanoutSink {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &FanoutSink{
		store:   store,
		alerts:  alerts,
		archive: archive,
		cfg:     cfg,
		log:     log,
		queue:   make(chan ledger.ReconciliationFailure, cfg.QueueSize),
	}
}

// ArchiveKey is the object key a failed payload is stored under.
func ArchiveKey(provider, eventID string) string {
	return fmt.Sprintf("webhooks/failed/%s/%s.json", provider, eventID)
}

func (s *FanoutSink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	s.wg.Add(1)
	go s.run()
}

// Stop rejects new notifications and waits for queued ones until ctx
// expires.
func (s *FanoutSink) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *FanoutSink) Report(ctx context.Context, f Failure) {
	if f.At.IsZero() {
		f.At = time.Now().UTC()
	}
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	rec := ledger.ReconciliationFailure{
		Provider:  f.Provider,
		EventID:   f.EventID,
		EventType: f.EventType,
		Payload:   f.Payload,
		Error:     msg,
		CreatedAt: f.At,
	}
	if s.store != nil {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
		err := s.store.Create(writeCtx, &rec)
		cancel()
		if err != nil {
			s.log.Error(ctx, "failed to record reconciliation failure", zap.Error(err))
		}
	}
	if s.alerts == nil && s.archive == nil {
		return
	}
	s.enqueue(ctx, rec)
}

func (s *FanoutSink) enqueue(ctx context.Context, rec ledger.ReconciliationFailure) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.log.Warn(ctx, "failure sink stopped, alert dropped")
		return
	}
	select {
	case s.queue <- rec:
	default:
		s.log.Warn(ctx, "failure sink queue full, alert dropped", zap.Int("queue_size", s.cfg.QueueSize))
	}
}

func (s *FanoutSink) run() {
	defer s.wg.Done()
	for rec := range s.queue {
		s.notify(rec)
	}
}

func (s *FanoutSink) notify(rec ledger.ReconciliationFailure) {
	base := logger.WithEvent(context.Background(), rec.Provider, rec.EventID)

	if s.alerts != nil {
		ctx, cancel := context.WithTimeout(base, s.cfg.Timeout)
		if err := s.alerts.PublishReconciliationAlert(ctx, rec); err != nil {
			s.log.Error(ctx, "failed to publish reconciliation alert", zap.Error(err))
		}
		cancel()
	}
	if s.archive != nil {
		ctx, cancel := context.WithTimeout(base, s.cfg.Timeout)
		key := ArchiveKey(rec.Provider, rec.EventID)
		if err := s.archive.Put(ctx, key, rec.Payload); err != nil {
			s.log.Error(ctx, "failed to archive webhook payload", zap.String("key", key), zap.Error(err))
		}
		cancel()
	}
}
