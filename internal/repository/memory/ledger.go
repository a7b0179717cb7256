// Package memory holds mutex-guarded repository implementations for tests
// and single-process development runs (DB_DRIVER=memory).
package memory

import (
	"context"
	"sync"
	"time"

	"goodies-platform/internal/domain/ledger"
)

type ledgerKey struct {
	provider string
	eventID  string
}

type Ledger struct {
	mu     sync.Mutex
	events map[ledgerKey]ledger.ProcessedEvent
	err    error
}

func NewLedger() *Ledger {
	return &Ledger{events: make(map[ledgerKey]ledger.ProcessedEvent)}
}

// SetError makes every following call fail with err, simulating an
// unreachable store. Pass nil to recover.
func (l *Ledger) SetError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *Ledger) Claim(_ context.Context, ev ledger.ProcessedEvent) (ledger.ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	k := ledgerKey{provider: ev.Provider, eventID: ev.EventID}
	if _, ok := l.events[k]; ok {
		return ledger.AlreadyProcessed, nil
	}
	if ev.ProcessedAt.IsZero() {
		ev.ProcessedAt = time.Now().UTC()
	}
	l.events[k] = ev
	return ledger.Claimed, nil
}

func (l *Ledger) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	var n int64
	for k, ev := range l.events {
		if ev.ProcessedAt.Before(cutoff) {
			delete(l.events, k)
			n++
		}
	}
	return n, nil
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
