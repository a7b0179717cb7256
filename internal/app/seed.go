package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"goodies-platform/internal/domain/campaign"
)

type seedFile struct {
	Campaigns []struct {
		ID        string `yaml:"id"`
		Title     string `yaml:"title"`
		GoalCents int64  `yaml:"goal_cents"`
		Currency  string `yaml:"currency"`
		Status    string `yaml:"status"`
	} `yaml:"campaigns"`
}

type CampaignWriter interface {
	PutCampaign(c campaign.Campaign)
}

// SeedCampaigns loads campaigns from a YAML file into w.
func SeedCampaigns(path string, w CampaignWriter) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file %s: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}

	now := time.Now().UTC()
	for i, c := range f.Campaigns {
		if c.ID == "" {
			return i, fmt.Errorf("seed file %s: campaign %d has no id", path, i)
		}
		status := campaign.Status(c.Status)
		if status == "" {
			status = campaign.StatusActive
		}
		currency := strings.ToUpper(c.Currency)
		if currency == "" {
			currency = "USD"
		}
		w.PutCampaign(campaign.Campaign{
			ID:        c.ID,
			Title:     c.Title,
			GoalCents: c.GoalCents,
			Currency:  currency,
			Status:    status,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return len(f.Campaigns), nil
}
