package httpdto

import (
	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/ledger"
)

func CampaignFromTotals(t campaign.Totals) CampaignDTO {
	return CampaignDTO{
		CampaignID:         t.CampaignID,
		Title:              t.Title,
		CurrentAmountCents: t.CurrentAmountCents,
		Backers:            t.Backers,
		GoalCents:          t.GoalCents,
		ProgressPercent:    t.ProgressPercent(),
		UpdatedAt:          t.UpdatedAt,
	}
}

// FailureFromDomain drops the payload; it is only served through replay.
func FailureFromDomain(f ledger.ReconciliationFailure) ReconciliationFailureDTO {
	out := ReconciliationFailureDTO{
		ID:        f.ID.String(),
		Provider:  f.Provider,
		EventID:   f.EventID,
		EventType: f.EventType,
		Error:     f.Error,
		CreatedAt: f.CreatedAt,
	}
	if f.ResolvedAt.Valid {
		at := f.ResolvedAt.Time
		out.ResolvedAt = &at
	}
	return out
}
