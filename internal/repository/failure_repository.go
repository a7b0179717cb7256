package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"goodies-platform/internal/domain/ledger"
	goodies_errors "goodies-platform/pkg/errors"
)

type failureRepository struct {
	db DBTX
}

func NewFailureRepository(db DBTX) FailureRepository {
	return &failureRepository{db: db}
}

func (r *failureRepository) Create(ctx context.Context, f *ledger.ReconciliationFailure) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO reconciliation_failures (id, provider, event_id, event_type, payload, error, created_at, resolved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, f.ID, f.Provider, f.EventID, f.EventType, string(f.Payload), f.Error, f.CreatedAt, f.ResolvedAt)
	return err
}

func (r *failureRepository) GetByID(ctx context.Context, id uuid.UUID) (ledger.ReconciliationFailure, error) {
	var f ledger.ReconciliationFailure
	err := r.db.QueryRowContext(ctx, `
        SELECT id, provider, event_id, event_type, payload, error, created_at, resolved_at
        FROM reconciliation_failures
        WHERE id = $1
    `, id).Scan(&f.ID, &f.Provider, &f.EventID, &f.EventType, &f.Payload, &f.Error, &f.CreatedAt, &f.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.ReconciliationFailure{}, goodies_errors.ErrNotFound
	}
	return f, err
}

func (r *failureRepository) List(ctx context.Context, onlyOpen bool, limit int) ([]ledger.ReconciliationFailure, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, provider, event_id, event_type, payload, error, created_at, resolved_at
        FROM reconciliation_failures
        WHERE NOT $1 OR resolved_at IS NULL
        ORDER BY created_at ASC
        LIMIT $2
    `, onlyOpen, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.ReconciliationFailure
	for rows.Next() {
		var f ledger.ReconciliationFailure
		if err := rows.Scan(&f.ID, &f.Provider, &f.EventID, &f.EventType, &f.Payload, &f.Error, &f.CreatedAt, &f.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *failureRepository) MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE reconciliation_failures
        SET resolved_at = $1
        WHERE id = $2 AND resolved_at IS NULL
    `, at, id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "reconciliation failure", id.String())
}
