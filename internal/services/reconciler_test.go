package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/donation"
	"goodies-platform/internal/payments"
	"goodies-platform/internal/repository/memory"
	goodies_errors "goodies-platform/pkg/errors"
)

func newReconcilerFixture() (*Reconciler, *memory.Store) {
	store := memory.NewStore()
	store.PutCampaign(campaign.Campaign{ID: "camp_1", Title: "Clean Water"})
	return NewReconciler(store), store
}

func TestReconcilerCompletedIsNoopForSettledDonation(t *testing.T) {
	t.Parallel()

	r, store := newReconcilerFixture()
	for _, status := range []donation.Status{donation.StatusCompleted, donation.StatusFailed, donation.StatusRefunded} {
		session := "cs_" + string(status)
		store.PutDonation(donation.Donation{
			ID:                uuid.New(),
			CampaignID:        "camp_1",
			AmountCents:       100,
			Status:            status,
			ProviderSessionID: sql.NullString{String: session, Valid: true},
		})
		rec, err := r.Apply(context.Background(), payments.PaymentCompleted{SessionID: session, CampaignID: "camp_1", AmountCents: 100})
		if err != nil {
			t.Fatalf("%s: %v", status, err)
		}
		if rec.Outcome != OutcomeNoop {
			t.Fatalf("%s: expected noop, got %s", status, rec.Outcome)
		}
	}
	if c, _ := store.Campaign("camp_1"); c.CurrentAmountCents != 0 || c.Backers != 0 {
		t.Fatalf("noop transitions changed the campaign: %+v", c)
	}
}

func TestReconcilerImplicitCreationNeedsCampaign(t *testing.T) {
	t.Parallel()

	r, store := newReconcilerFixture()
	_, err := r.Apply(context.Background(), payments.PaymentCompleted{SessionID: "cs_orphan", AmountCents: 100})
	if !errors.Is(err, goodies_errors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if store.DonationCount() != 0 {
		t.Fatalf("orphan payment created a donation")
	}
}

func TestReconcilerUnknownCampaignFails(t *testing.T) {
	t.Parallel()

	r, store := newReconcilerFixture()
	_, err := r.Apply(context.Background(), payments.PaymentCompleted{SessionID: "cs_x", CampaignID: "camp_missing", AmountCents: 100})
	if !errors.Is(err, goodies_errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if store.DonationCount() != 0 {
		t.Fatalf("donation must roll back when the campaign is missing")
	}
}

func TestReconcilerFailedWithoutDonationIsNoop(t *testing.T) {
	t.Parallel()

	r, store := newReconcilerFixture()
	rec, err := r.Apply(context.Background(), payments.PaymentFailed{SessionID: "cs_none", Reason: "expired"})
	if err != nil || rec.Outcome != OutcomeNoop {
		t.Fatalf("expected noop, got %+v %v", rec, err)
	}
	if store.DonationCount() != 0 {
		t.Fatalf("failed payment created a donation")
	}
}

func TestReconcilerRefund(t *testing.T) {
	t.Parallel()

	r, store := newReconcilerFixture()
	rec, err := r.Apply(context.Background(), payments.PaymentCompleted{SessionID: "cs_r", CampaignID: "camp_1", AmountCents: 4200, Currency: "USD"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	refund, err := r.Refund(context.Background(), rec.Donation.ID, "requested_by_donor")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.Outcome != OutcomeRefunded || refund.Totals == nil || refund.Totals.CurrentAmountCents != 0 || refund.Totals.Backers != 0 {
		t.Fatalf("unexpected refund result: %+v", refund)
	}
	stored, err := store.GetDonation(context.Background(), rec.Donation.ID)
	if err != nil {
		t.Fatalf("get donation: %v", err)
	}
	if stored.Status != donation.StatusRefunded || stored.StatusReason != "requested_by_donor" {
		t.Fatalf("refund reason not stored: %+v", stored)
	}

	if _, err := r.Refund(context.Background(), rec.Donation.ID, "again"); !errors.Is(err, goodies_errors.ErrInvalidTransition) {
		t.Fatalf("second refund: expected invalid transition, got %v", err)
	}
	if c, _ := store.Campaign("camp_1"); c.CurrentAmountCents != 0 || c.Backers != 0 {
		t.Fatalf("unexpected campaign after refunds: %+v", c)
	}
}

func TestReconcilerRefundUnknownDonation(t *testing.T) {
	t.Parallel()

	r, _ := newReconcilerFixture()
	if _, err := r.Refund(context.Background(), uuid.New(), ""); !errors.Is(err, goodies_errors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
