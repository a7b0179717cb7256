package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"goodies-platform/internal/domain/ledger"
)

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

type execStub struct {
	result sql.Result
	err    error
	query  string
	args   []interface{}
}

func (s *execStub) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	s.query = query
	s.args = args
	return s.result, s.err
}

func (s *execStub) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *execStub) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func TestLedgerClaim(t *testing.T) {
	t.Parallel()

	down := errors.New("dial tcp: connection refused")
	tests := []struct {
		name    string
		stub    *execStub
		want    ledger.ClaimResult
		wantErr error
	}{
		{name: "inserted", stub: &execStub{result: fakeResult{rows: 1}}, want: ledger.Claimed},
		{name: "conflict", stub: &execStub{result: fakeResult{rows: 0}}, want: ledger.AlreadyProcessed},
		{name: "unique violation", stub: &execStub{err: &pgconn.PgError{Code: "23505"}}, want: ledger.AlreadyProcessed},
		{name: "storage down", stub: &execStub{err: down}, wantErr: down},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewLedgerRepository(tt.stub)
			got, err := repo.Claim(context.Background(), ledger.ProcessedEvent{Provider: "stripe", EventID: "evt_1", EventType: "checkout.session.completed"})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("claim: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
			if len(tt.stub.args) != 4 || tt.stub.args[0] != "stripe" || tt.stub.args[1] != "evt_1" {
				t.Fatalf("unexpected args: %v", tt.stub.args)
			}
		})
	}
}

func TestLedgerPruneBefore(t *testing.T) {
	t.Parallel()

	stub := &execStub{result: fakeResult{rows: 7}}
	n, err := NewLedgerRepository(stub).PruneBefore(context.Background(), ledger.ProcessedEvent{}.ProcessedAt)
	if err != nil || n != 7 {
		t.Fatalf("prune: n=%d err=%v", n, err)
	}
}
