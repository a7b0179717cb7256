package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/donation"
	"goodies-platform/internal/payments"
	"goodies-platform/internal/repository"
	goodies_errors "goodies-platform/pkg/errors"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeRefunded  Outcome = "refunded"
	OutcomeNoop      Outcome = "noop"
)

// Reconciliation is what one applied intent changed. Totals is set only
// when the campaign aggregate moved.
type Reconciliation struct {
	Outcome  Outcome
	Donation donation.Donation
	Totals   *campaign.Totals
	// Created is true when the donation had no pending record.
	Created bool
}

// Reconciler applies classified payment intents to donations and their
// campaign. The donation write always precedes the campaign delta and
// both happen in one transaction.
type Reconciler struct {
	store repository.DonationStore
	clock func() time.Time
}

func NewReconciler(store repository.DonationStore) *Reconciler {
	return &Reconciler{store: store, clock: time.Now}
}

func (r *Reconciler) Apply(ctx context.Context, intent payments.Intent) (Reconciliation, error) {
	switch in := intent.(type) {
	case payments.PaymentCompleted:
		return r.complete(ctx, in)
	case payments.PaymentFailed:
		return r.fail(ctx, in)
	case payments.Unhandled:
		return Reconciliation{Outcome: OutcomeNoop}, nil
	default:
		return Reconciliation{}, fmt.Errorf("unsupported intent %T", intent)
	}
}

func (r *Reconciler) complete(ctx context.Context, in payments.PaymentCompleted) (Reconciliation, error) {
	if in.SessionID == "" {
		return Reconciliation{}, fmt.Errorf("%w: completed payment without session id", goodies_errors.ErrInvalidInput)
	}
	if in.AmountCents <= 0 {
		return Reconciliation{}, fmt.Errorf("%w: amount %d", goodies_errors.ErrInvalidInput, in.AmountCents)
	}

	var out Reconciliation
	err := r.store.WithinTx(ctx, func(tx repository.DonationTx) error {
		now := r.clock().UTC()
		d, err := tx.FindBySessionForUpdate(ctx, in.SessionID)
		switch {
		case errors.Is(err, goodies_errors.ErrNotFound):
			if in.CampaignID == "" {
				return fmt.Errorf("%w: no pending donation for session %s and no campaign id on the event", goodies_errors.ErrInvalidInput, in.SessionID)
			}
			d = donation.Donation{
				ID:                uuid.New(),
				CampaignID:        in.CampaignID,
				AmountCents:       in.AmountCents,
				Currency:          in.Currency,
				PaymentMethod:     in.Method,
				Status:            donation.StatusCompleted,
				ProviderSessionID: sql.NullString{String: in.SessionID, Valid: true},
				ProviderPaymentID: nullable(in.PaymentID),
				DonorEmail:        in.PayerEmail,
				CompletedAt:       sql.NullTime{Time: now, Valid: true},
			}
			if err := tx.Create(ctx, &d); err != nil {
				return fmt.Errorf("create donation: %w", err)
			}
			out.Created = true

		case err != nil:
			return fmt.Errorf("load donation: %w", err)

		default:
			if !d.Status.CanTransition(donation.StatusCompleted) {
				out = Reconciliation{Outcome: OutcomeNoop, Donation: d}
				return nil
			}
			// The provider's settled amount is authoritative.
			d.Status = donation.StatusCompleted
			d.AmountCents = in.AmountCents
			if in.Currency != "" {
				d.Currency = in.Currency
			}
			if in.PaymentID != "" {
				d.ProviderPaymentID = nullable(in.PaymentID)
			}
			if d.DonorEmail == "" {
				d.DonorEmail = in.PayerEmail
			}
			d.CompletedAt = sql.NullTime{Time: now, Valid: true}
			if err := tx.UpdateStatus(ctx, d); err != nil {
				return fmt.Errorf("complete donation: %w", err)
			}
		}

		totals, err := tx.IncrementCampaign(ctx, d.CampaignID, d.AmountCents)
		if err != nil {
			return fmt.Errorf("increment campaign %s: %w", d.CampaignID, err)
		}
		out.Outcome = OutcomeCompleted
		out.Donation = d
		out.Totals = &totals
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return out, nil
}

func (r *Reconciler) fail(ctx context.Context, in payments.PaymentFailed) (Reconciliation, error) {
	var out Reconciliation
	err := r.store.WithinTx(ctx, func(tx repository.DonationTx) error {
		d, err := tx.FindBySessionForUpdate(ctx, in.SessionID)
		if errors.Is(err, goodies_errors.ErrNotFound) {
			// Nothing was pending and nothing was counted.
			out = Reconciliation{Outcome: OutcomeNoop}
			return nil
		}
		if err != nil {
			return fmt.Errorf("load donation: %w", err)
		}
		if !d.Status.CanTransition(donation.StatusFailed) {
			out = Reconciliation{Outcome: OutcomeNoop, Donation: d}
			return nil
		}
		d.Status = donation.StatusFailed
		d.StatusReason = in.Reason
		if err := tx.UpdateStatus(ctx, d); err != nil {
			return fmt.Errorf("fail donation: %w", err)
		}
		out = Reconciliation{Outcome: OutcomeFailed, Donation: d}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return out, nil
}

// Refund moves a completed donation to refunded and takes it back out of
// the campaign totals. Unlike webhook intents, an illegal transition is an
// error because an operator asked for it.
func (r *Reconciler) Refund(ctx context.Context, donationID uuid.UUID, reason string) (Reconciliation, error) {
	var out Reconciliation
	err := r.store.WithinTx(ctx, func(tx repository.DonationTx) error {
		d, err := tx.FindByIDForUpdate(ctx, donationID)
		if err != nil {
			return err
		}
		if !d.Status.CanTransition(donation.StatusRefunded) {
			return fmt.Errorf("%w: %s -> %s", goodies_errors.ErrInvalidTransition, d.Status, donation.StatusRefunded)
		}
		d.Status = donation.StatusRefunded
		d.StatusReason = reason
		if err := tx.UpdateStatus(ctx, d); err != nil {
			return fmt.Errorf("refund donation: %w", err)
		}
		totals, err := tx.DecrementCampaign(ctx, d.CampaignID, d.AmountCents)
		if err != nil {
			return fmt.Errorf("decrement campaign %s: %w", d.CampaignID, err)
		}
		out = Reconciliation{Outcome: OutcomeRefunded, Donation: d, Totals: &totals}
		return nil
	})
	if err != nil {
		return Reconciliation{}, err
	}
	return out, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
