package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/donation"
	"goodies-platform/internal/domain/ledger"
)

// LedgerRepository is the idempotency ledger. Claim is a single atomic
// insert against the (provider, event_id) primary key.
type LedgerRepository interface {
	Claim(ctx context.Context, ev ledger.ProcessedEvent) (ledger.ClaimResult, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DonationTx is the set of writes one reconciliation may perform. All
// calls made on a DonationTx commit or roll back together.
type DonationTx interface {
	FindBySessionForUpdate(ctx context.Context, sessionID string) (donation.Donation, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (donation.Donation, error)
	Create(ctx context.Context, d *donation.Donation) error
	UpdateStatus(ctx context.Context, d donation.Donation) error
	// IncrementCampaign and DecrementCampaign are storage level deltas.
	// Both return ErrNotFound when the campaign does not exist.
	IncrementCampaign(ctx context.Context, campaignID string, amountCents int64) (campaign.Totals, error)
	DecrementCampaign(ctx context.Context, campaignID string, amountCents int64) (campaign.Totals, error)
}

type DonationStore interface {
	WithinTx(ctx context.Context, fn func(tx DonationTx) error) error
	GetCampaignTotals(ctx context.Context, campaignID string) (campaign.Totals, error)
	GetDonation(ctx context.Context, id uuid.UUID) (donation.Donation, error)
}

// FailureRepository stores reconciliations that need an operator.
type FailureRepository interface {
	Create(ctx context.Context, f *ledger.ReconciliationFailure) error
	GetByID(ctx context.Context, id uuid.UUID) (ledger.ReconciliationFailure, error)
	List(ctx context.Context, onlyOpen bool, limit int) ([]ledger.ReconciliationFailure, error)
	MarkResolved(ctx context.Context, id uuid.UUID, at time.Time) error
}
