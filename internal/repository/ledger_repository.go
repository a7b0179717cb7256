package repository

import (
	"context"
	"time"

	"goodies-platform/internal/domain/ledger"
)

type ledgerRepository struct {
	db DBTX
}

func NewLedgerRepository(db DBTX) LedgerRepository {
	return &ledgerRepository{db: db}
}

// Claim inserts the event marker. A conflict on the primary key means some
// other delivery committed first.
func (r *ledgerRepository) Claim(ctx context.Context, ev ledger.ProcessedEvent) (ledger.ClaimResult, error) {
	if ev.ProcessedAt.IsZero() {
		ev.ProcessedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO processed_events (provider, event_id, event_type, processed_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (provider, event_id) DO NOTHING
    `, ev.Provider, ev.EventID, ev.EventType, ev.ProcessedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.AlreadyProcessed, nil
		}
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return ledger.AlreadyProcessed, nil
	}
	return ledger.Claimed, nil
}

func (r *ledgerRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        DELETE FROM processed_events
        WHERE processed_at < $1
    `, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
