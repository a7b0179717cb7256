package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"goodies-platform/internal/domain/ledger"
	goodies_errors "goodies-platform/pkg/errors"
)

type Failures struct {
	mu    sync.Mutex
	items map[uuid.UUID]ledger.ReconciliationFailure
}

func NewFailures() *Failures {
	return &Failures{items: make(map[uuid.UUID]ledger.ReconciliationFailure)}
}

func (r *Failures) Create(_ context.Context, f *ledger.ReconciliationFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	cp := *f
	cp.Payload = append([]byte(nil), f.Payload...)
	r.items[f.ID] = cp
	return nil
}

func (r *Failures) GetByID(_ context.Context, id uuid.UUID) (ledger.ReconciliationFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.items[id]
	if !ok {
		return ledger.ReconciliationFailure{}, goodies_errors.ErrNotFound
	}
	return f, nil
}

func (r *Failures) List(_ context.Context, onlyOpen bool, limit int) ([]ledger.ReconciliationFailure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ledger.ReconciliationFailure, 0, len(r.items))
	for _, f := range r.items {
		if onlyOpen && f.ResolvedAt.Valid {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Failures) MarkResolved(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.items[id]
	if !ok || f.ResolvedAt.Valid {
		return fmt.Errorf("%w: reconciliation failure %s", goodies_errors.ErrNotFound, id)
	}
	f.ResolvedAt = sql.NullTime{Time: at, Valid: true}
	r.items[id] = f
	return nil
}
