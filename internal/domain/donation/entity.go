package donation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one payment attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// PaymentMethod names the provider that settles the donation.
type PaymentMethod string

const (
	MethodStripe PaymentMethod = "Stripe"
	MethodPayPal PaymentMethod = "PayPal"
)

// Donation is tied to exactly one campaign. AmountCents is in the minor
// unit of Currency and is always positive.
type Donation struct {
	ID                uuid.UUID
	CampaignID        string
	DonorID           uuid.NullUUID
	AmountCents       int64
	Currency          string
	PaymentMethod     PaymentMethod
	Status            Status
	ProviderSessionID sql.NullString
	ProviderPaymentID sql.NullString
	DonorEmail        string
	Message           string
	IsAnonymous       bool
	// StatusReason is why the donation reached a failed or refunded status.
	StatusReason      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       sql.NullTime
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted || next == StatusFailed
	case StatusCompleted:
		return next == StatusRefunded
	default:
		return false
	}
}

// CountsTowardCampaign reports whether a donation in status s is part of
// the campaign totals.
func (s Status) CountsTowardCampaign() bool {
	return s == StatusCompleted
}
