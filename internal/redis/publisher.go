package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/ledger"
)

const AlertsChannel = "channel:alerts:reconciliation"

// CampaignChannel is where live totals for one campaign are published.
func CampaignChannel(campaignID string) string {
	return fmt.Sprintf("channel:campaign:%s", campaignID)
}

type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

func (p *Publisher) PublishTotals(ctx context.Context, t campaign.Totals) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return p.Publish(ctx, CampaignChannel(t.CampaignID), payload)
}

type reconciliationAlert struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Error     string `json:"error"`
	CreatedAt string `json:"created_at"`
}

// PublishReconciliationAlert announces a failure without its payload.
func (p *Publisher) PublishReconciliationAlert(ctx context.Context, f ledger.ReconciliationFailure) error {
	payload, err := json.Marshal(reconciliationAlert{
		ID:        f.ID.String(),
		Provider:  f.Provider,
		EventID:   f.EventID,
		EventType: f.EventType,
		Error:     f.Error,
		CreatedAt: f.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, AlertsChannel, payload)
}
