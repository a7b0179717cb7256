package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"goodies-platform/internal/domain/donation"
	goodies_errors "goodies-platform/pkg/errors"
)

var campaignColumns = []string{"id", "title", "current_amount_cents", "backers", "goal_cents", "updated_at"}

var donationColumnNames = []string{
	"id", "campaign_id", "donor_id", "amount_cents", "currency", "payment_method", "status",
	"provider_session_id", "provider_payment_id", "donor_email", "message", "is_anonymous",
	"status_reason", "created_at", "updated_at", "completed_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func checkExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

const deltaSQL = "SET current_amount_cents = current_amount_cents + $1, backers = backers + $2"

func TestIncrementCampaignAppliesDeltaInSQL(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(deltaSQL)).
		WithArgs(int64(2500), int64(1), "camp_1").
		WillReturnRows(sqlmock.NewRows(campaignColumns).AddRow("camp_1", "Clean Water", int64(12500), int64(6), int64(100000), now))

	totals, err := (&donationTx{db: db}).IncrementCampaign(context.Background(), "camp_1", 2500)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if totals.CurrentAmountCents != 12500 || totals.Backers != 6 || totals.Title != "Clean Water" {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	checkExpectations(t, mock)
}

func TestDecrementCampaignNegatesDelta(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(deltaSQL)).
		WithArgs(int64(-2500), int64(-1), "camp_1").
		WillReturnRows(sqlmock.NewRows(campaignColumns).AddRow("camp_1", "Clean Water", int64(0), int64(0), int64(100000), time.Now()))

	if _, err := (&donationTx{db: db}).DecrementCampaign(context.Background(), "camp_1", 2500); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	checkExpectations(t, mock)
}

func TestCampaignDeltaErrors(t *testing.T) {
	t.Parallel()

	down := errors.New("connection reset by peer")
	tests := []struct {
		name    string
		prepare func(q *sqlmock.ExpectedQuery)
		wantErr error
	}{
		{
			name:    "unknown campaign",
			prepare: func(q *sqlmock.ExpectedQuery) { q.WillReturnRows(sqlmock.NewRows(campaignColumns)) },
			wantErr: goodies_errors.ErrNotFound,
		},
		{
			name:    "totals below zero",
			prepare: func(q *sqlmock.ExpectedQuery) { q.WillReturnError(&pgconn.PgError{Code: "23514"}) },
			wantErr: goodies_errors.ErrConflict,
		},
		{
			name:    "storage down",
			prepare: func(q *sqlmock.ExpectedQuery) { q.WillReturnError(down) },
			wantErr: down,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			tt.prepare(mock.ExpectQuery(regexp.QuoteMeta(deltaSQL)))

			_, err := (&donationTx{db: db}).DecrementCampaign(context.Background(), "camp_1", 5000)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			checkExpectations(t, mock)
		})
	}
}

func TestWithinTxRollsBackOnCheckViolation(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(deltaSQL)).WillReturnError(&pgconn.PgError{Code: "23514"})
	mock.ExpectRollback()

	err := NewDonationStore(db).WithinTx(context.Background(), func(tx DonationTx) error {
		_, err := tx.DecrementCampaign(context.Background(), "camp_1", 5000)
		return err
	})
	if !errors.Is(err, goodies_errors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	checkExpectations(t, mock)
}

func TestFindBySessionForUpdate(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	id := uuid.New()
	created := time.Now().UTC().Add(-time.Minute)
	mock.ExpectQuery(`FROM donations\s+WHERE provider_session_id = \$1\s+FOR UPDATE`).
		WithArgs("cs_1").
		WillReturnRows(sqlmock.NewRows(donationColumnNames).AddRow(
			id.String(), "camp_1", nil, int64(5000), "USD", "Stripe", "pending",
			"cs_1", nil, "donor@example.com", "", false,
			"", created, created, nil,
		))

	d, err := (&donationTx{db: db}).FindBySessionForUpdate(context.Background(), "cs_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if d.ID != id || d.Status != donation.StatusPending || d.PaymentMethod != donation.MethodStripe {
		t.Fatalf("unexpected donation: %+v", d)
	}
	if !d.ProviderSessionID.Valid || d.ProviderSessionID.String != "cs_1" || d.ProviderPaymentID.Valid || d.CompletedAt.Valid {
		t.Fatalf("nullable columns scanned wrong: %+v", d)
	}
	checkExpectations(t, mock)
}

func TestFindBySessionForUpdateMissing(t *testing.T) {
	t.Parallel()

	db, mock := newMock(t)
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("cs_missing").WillReturnRows(sqlmock.NewRows(donationColumnNames))

	if _, err := (&donationTx{db: db}).FindBySessionForUpdate(context.Background(), "cs_missing"); !errors.Is(err, goodies_errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	checkExpectations(t, mock)
}

func TestUpdateStatusRequiresOneRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		stub    *execStub
		wantErr error
	}{
		{name: "updated", stub: &execStub{result: fakeResult{rows: 1}}},
		{name: "missing row", stub: &execStub{result: fakeResult{rows: 0}}, wantErr: goodies_errors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := donation.Donation{ID: uuid.New(), Status: donation.StatusRefunded, StatusReason: "refunded_by_admin"}
			err := (&donationTx{db: tt.stub}).UpdateStatus(context.Background(), d)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("update: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(tt.stub.args) != 9 || tt.stub.args[5] != "refunded_by_admin" || tt.stub.args[8] != d.ID {
				t.Fatalf("unexpected args: %v", tt.stub.args)
			}
		})
	}
}

func TestCreateDonationDuplicateSession(t *testing.T) {
	t.Parallel()

	stub := &execStub{err: &pgconn.PgError{Code: "23505"}}
	d := donation.Donation{CampaignID: "camp_1", ProviderSessionID: sql.NullString{String: "cs_1", Valid: true}}

	err := (&donationTx{db: stub}).Create(context.Background(), &d)
	if !errors.Is(err, goodies_errors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	if d.ID == uuid.Nil || d.CreatedAt.IsZero() {
		t.Fatalf("create should assign id and timestamps: %+v", d)
	}
}
