package campaign

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Campaign is the funding aggregate. CurrentAmountCents and Backers only
// move when a donation enters or leaves the completed state.
type Campaign struct {
	ID                 string
	Title              string
	GoalCents          int64
	CurrentAmountCents int64
	Backers            int
	Currency           string
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Totals is the part of a campaign that reconciliation changes.
type Totals struct {
	CampaignID         string    `json:"campaign_id"`
	Title              string    `json:"title"`
	CurrentAmountCents int64     `json:"current_amount_cents"`
	Backers            int       `json:"backers"`
	GoalCents          int64     `json:"goal_cents"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProgressPercent is capped at 100.
func (t Totals) ProgressPercent() float64 {
	if t.GoalCents <= 0 {
		return 0
	}
	p := float64(t.CurrentAmountCents) / float64(t.GoalCents) * 100
	if p > 100 {
		return 100
	}
	return p
}
