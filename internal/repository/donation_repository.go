package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/donation"
	goodies_errors "goodies-platform/pkg/errors"
)

const donationColumns = `id, campaign_id, donor_id, amount_cents, currency, payment_method, status,
        provider_session_id, provider_payment_id, donor_email, message, is_anonymous,
        status_reason, created_at, updated_at, completed_at`

type donationStore struct {
	db DBTX
}

func NewDonationStore(db DBTX) DonationStore {
	return &donationStore{db: db}
}

func (s *donationStore) WithinTx(ctx context.Context, fn func(tx DonationTx) error) error {
	return WithTx(ctx, s.db, func(tx DBTX) error {
		return fn(&donationTx{db: tx})
	})
}

func (s *donationStore) GetCampaignTotals(ctx context.Context, campaignID string) (campaign.Totals, error) {
	var t campaign.Totals
	err := s.db.QueryRowContext(ctx, `
        SELECT id, title, current_amount_cents, backers, goal_cents, updated_at
        FROM campaigns
        WHERE id = $1
    `, campaignID).Scan(&t.CampaignID, &t.Title, &t.CurrentAmountCents, &t.Backers, &t.GoalCents, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.Totals{}, goodies_errors.ErrNotFound
	}
	return t, err
}

func (s *donationStore) GetDonation(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+donationColumns+` FROM donations WHERE id = $1`, id)
	return scanDonation(row)
}

type donationTx struct {
	db DBTX
}

func (t *donationTx) FindBySessionForUpdate(ctx context.Context, sessionID string) (donation.Donation, error) {
	row := t.db.QueryRowContext(ctx, `
        SELECT `+donationColumns+`
        FROM donations
        WHERE provider_session_id = $1
        FOR UPDATE
    `, sessionID)
	return scanDonation(row)
}

func (t *donationTx) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (donation.Donation, error) {
	row := t.db.QueryRowContext(ctx, `
        SELECT `+donationColumns+`
        FROM donations
        WHERE id = $1
        FOR UPDATE
    `, id)
	return scanDonation(row)
}

func (t *donationTx) Create(ctx context.Context, d *donation.Donation) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	_, err := t.db.ExecContext(ctx, `
        INSERT INTO donations (`+donationColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
    `,
		d.ID,
		d.CampaignID,
		d.DonorID,
		d.AmountCents,
		d.Currency,
		d.PaymentMethod,
		d.Status,
		d.ProviderSessionID,
		d.ProviderPaymentID,
		d.DonorEmail,
		d.Message,
		d.IsAnonymous,
		d.StatusReason,
		d.CreatedAt,
		d.UpdatedAt,
		d.CompletedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: donation for session %s", goodies_errors.ErrAlreadyExists, d.ProviderSessionID.String)
	}
	return err
}

func (t *donationTx) UpdateStatus(ctx context.Context, d donation.Donation) error {
	res, err := t.db.ExecContext(ctx, `
        UPDATE donations
        SET status = $1, amount_cents = $2, currency = $3, provider_payment_id = $4,
            donor_email = $5, status_reason = $6, completed_at = $7, updated_at = $8
        WHERE id = $9
    `, d.Status, d.AmountCents, d.Currency, d.ProviderPaymentID, d.DonorEmail, d.StatusReason, d.CompletedAt, time.Now().UTC(), d.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res, "donation", d.ID.String())
}

func (t *donationTx) IncrementCampaign(ctx context.Context, campaignID string, amountCents int64) (campaign.Totals, error) {
	return t.applyCampaignDelta(ctx, campaignID, amountCents, 1)
}

func (t *donationTx) DecrementCampaign(ctx context.Context, campaignID string, amountCents int64) (campaign.Totals, error) {
	return t.applyCampaignDelta(ctx, campaignID, -amountCents, -1)
}

// applyCampaignDelta never reads before writing; concurrent deltas on the
// same row serialize inside Postgres. A delta that would take the totals
// below zero trips the table CHECK and is reported as ErrConflict.
func (t *donationTx) applyCampaignDelta(ctx context.Context, campaignID string, amountDelta int64, backersDelta int) (campaign.Totals, error) {
	var out campaign.Totals
	err := t.db.QueryRowContext(ctx, `
        UPDATE campaigns
        SET current_amount_cents = current_amount_cents + $1,
            backers = backers + $2,
            updated_at = NOW()
        WHERE id = $3
        RETURNING id, title, current_amount_cents, backers, goal_cents, updated_at
    `, amountDelta, backersDelta, campaignID).Scan(&out.CampaignID, &out.Title, &out.CurrentAmountCents, &out.Backers, &out.GoalCents, &out.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return campaign.Totals{}, fmt.Errorf("%w: campaign %s", goodies_errors.ErrNotFound, campaignID)
	case isCheckViolation(err):
		return campaign.Totals{}, fmt.Errorf("%w: campaign %s totals would go negative", goodies_errors.ErrConflict, campaignID)
	case err != nil:
		return campaign.Totals{}, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDonation(row rowScanner) (donation.Donation, error) {
	var d donation.Donation
	err := row.Scan(
		&d.ID,
		&d.CampaignID,
		&d.DonorID,
		&d.AmountCents,
		&d.Currency,
		&d.PaymentMethod,
		&d.Status,
		&d.ProviderSessionID,
		&d.ProviderPaymentID,
		&d.DonorEmail,
		&d.Message,
		&d.IsAnonymous,
		&d.StatusReason,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return donation.Donation{}, goodies_errors.ErrNotFound
	}
	return d, err
}

func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", goodies_errors.ErrNotFound, entity, id)
	}
	return nil
}
