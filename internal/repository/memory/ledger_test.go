package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"goodies-platform/internal/domain/ledger"
)

func TestLedgerConcurrentClaimsHaveOneWinner(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	const n = 32

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[ledger.ClaimResult]int{}
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := l.Claim(context.Background(), ledger.ProcessedEvent{Provider: "stripe", EventID: "evt_1", EventType: "checkout.session.completed"})
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			mu.Lock()
			results[res]++
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	if results[ledger.Claimed] != 1 || results[ledger.AlreadyProcessed] != n-1 {
		t.Fatalf("unexpected claim distribution: %v", results)
	}
}

func TestLedgerKeysByProvider(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	ctx := context.Background()
	for _, p := range []string{"stripe", "paypal"} {
		res, err := l.Claim(ctx, ledger.ProcessedEvent{Provider: p, EventID: "same"})
		if err != nil || res != ledger.Claimed {
			t.Fatalf("claim %s: %v %v", p, res, err)
		}
	}
}

func TestLedgerPruneBefore(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	ctx := context.Background()
	now := time.Now()
	_, _ = l.Claim(ctx, ledger.ProcessedEvent{Provider: "stripe", EventID: "old", ProcessedAt: now.Add(-100 * 24 * time.Hour)})
	_, _ = l.Claim(ctx, ledger.ProcessedEvent{Provider: "stripe", EventID: "new", ProcessedAt: now})

	n, err := l.PruneBefore(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 || l.Len() != 1 {
		t.Fatalf("expected one pruned and one kept, got pruned=%d len=%d", n, l.Len())
	}
}

func TestLedgerSetError(t *testing.T) {
	t.Parallel()

	l := NewLedger()
	down := errors.New("connection refused")
	l.SetError(down)
	if _, err := l.Claim(context.Background(), ledger.ProcessedEvent{Provider: "stripe", EventID: "e"}); !errors.Is(err, down) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if l.Len() != 0 {
		t.Fatalf("failed claim must not record the event")
	}
}
