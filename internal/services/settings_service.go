package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"goodies-platform/internal/domain/settings"
	"goodies-platform/pkg/logger"
)

// SettingsStore shares runtime settings between instances. Watch blocks,
// calling fn for every change published by any instance, until ctx ends.
type SettingsStore interface {
	Load(ctx context.Context) (settings.Runtime, bool, error)
	Save(ctx context.Context, s settings.Runtime) error
	Watch(ctx context.Context, fn func(settings.Runtime)) error
}

// SettingsService is the single accessor for runtime settings. Without a
// store, changes are local to this process.
type SettingsService struct {
	mu    sync.RWMutex
	cur   settings.Runtime
	store SettingsStore
	log   *logger.Logger
	clock func() time.Time
}

func NewSettingsService(initial settings.Runtime, store SettingsStore, log *logger.Logger) *SettingsService {
	return &SettingsService{cur: initial, store: store, log: log, clock: time.Now}
}

func (s *SettingsService) Get() settings.Runtime {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *SettingsService) Maintenance() bool {
	return s.Get().Maintenance
}

func (s *SettingsService) SetMaintenance(ctx context.Context, on bool) (settings.Runtime, error) {
	next := settings.Runtime{Maintenance: on, UpdatedAt: s.clock().UTC()}
	if s.store != nil {
		if err := s.store.Save(ctx, next); err != nil {
			return s.Get(), err
		}
	}
	s.apply(next)
	s.log.Info(ctx, "runtime settings updated", zap.Bool("maintenance", on))
	return next, nil
}

// Sync adopts the shared settings, or seeds the store with ours when it
// is empty.
func (s *SettingsService) Sync(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	shared, ok, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return s.store.Save(ctx, s.Get())
	}
	s.apply(shared)
	return nil
}

// Watch keeps this instance in step with the store until ctx ends.
func (s *SettingsService) Watch(ctx context.Context) {
	if s.store == nil {
		return
	}
	for {
		err := s.store.Watch(ctx, s.apply)
		if ctx.Err() != nil {
			return
		}
		s.log.Warn(ctx, "settings watch interrupted", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

// apply ignores updates older than the current value.
func (s *SettingsService) apply(next settings.Runtime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next.UpdatedAt.Before(s.cur.UpdatedAt) {
		return
	}
	s.cur = next
}
