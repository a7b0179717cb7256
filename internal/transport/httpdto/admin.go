package httpdto

import "time"

type AdminTokenRequest struct {
	AdminKey string `json:"admin_key" binding:"required"`
}

type AdminTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type MaintenanceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type MaintenanceResponse struct {
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ReconciliationFailureDTO struct {
	ID         string     `json:"id"`
	Provider   string     `json:"provider"`
	EventID    string     `json:"event_id"`
	EventType  string     `json:"event_type"`
	Error      string     `json:"error"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

type ReconciliationDTO struct {
	Outcome    string       `json:"outcome"`
	DonationID string       `json:"donation_id,omitempty"`
	Status     string       `json:"status,omitempty"`
	Totals     *CampaignDTO `json:"totals,omitempty"`
}

type CampaignDTO struct {
	CampaignID         string    `json:"campaign_id"`
	Title              string    `json:"title"`
	CurrentAmountCents int64     `json:"current_amount_cents"`
	Backers            int       `json:"backers"`
	GoalCents          int64     `json:"goal_cents"`
	ProgressPercent    float64   `json:"progress_percent"`
	UpdatedAt          time.Time `json:"updated_at"`
}
