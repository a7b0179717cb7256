package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/donation"
	"goodies-platform/internal/repository"
	goodies_errors "goodies-platform/pkg/errors"
)

// Faults injects write errors into transactions. A nil field is no fault.
type Faults struct {
	Create            error
	UpdateStatus      error
	IncrementCampaign error
}

// Store keeps campaigns and donations in maps. WithinTx holds the store
// lock for the whole callback and works on a copy that replaces the live
// state only when fn returns nil.
type Store struct {
	mu        sync.Mutex
	campaigns map[string]campaign.Campaign
	donations map[uuid.UUID]donation.Donation
	faults    Faults
}

func NewStore() *Store {
	return &Store{
		campaigns: make(map[string]campaign.Campaign),
		donations: make(map[uuid.UUID]donation.Donation),
	}
}

func (s *Store) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

func (s *Store) PutCampaign(c campaign.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c
}

func (s *Store) Campaign(id string) (campaign.Campaign, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	return c, ok
}

func (s *Store) PutDonation(d donation.Donation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donations[d.ID] = d
}

func (s *Store) DonationBySession(sessionID string) (donation.Donation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.donations {
		if d.ProviderSessionID.Valid && d.ProviderSessionID.String == sessionID {
			return d, true
		}
	}
	return donation.Donation{}, false
}

func (s *Store) DonationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.donations)
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.DonationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &storeTx{
		campaigns: make(map[string]campaign.Campaign, len(s.campaigns)),
		donations: make(map[uuid.UUID]donation.Donation, len(s.donations)),
		faults:    s.faults,
	}
	for k, v := range s.campaigns {
		tx.campaigns[k] = v
	}
	for k, v := range s.donations {
		tx.donations[k] = v
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.campaigns = tx.campaigns
	s.donations = tx.donations
	return nil
}

func (s *Store) GetCampaignTotals(_ context.Context, campaignID string) (campaign.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[campaignID]
	if !ok {
		return campaign.Totals{}, goodies_errors.ErrNotFound
	}
	return totalsOf(c), nil
}

func (s *Store) GetDonation(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return donation.Donation{}, goodies_errors.ErrNotFound
	}
	return d, nil
}

type storeTx struct {
	campaigns map[string]campaign.Campaign
	donations map[uuid.UUID]donation.Donation
	faults    Faults
}

func (t *storeTx) FindBySessionForUpdate(_ context.Context, sessionID string) (donation.Donation, error) {
	for _, d := range t.donations {
		if d.ProviderSessionID.Valid && d.ProviderSessionID.String == sessionID {
			return d, nil
		}
	}
	return donation.Donation{}, goodies_errors.ErrNotFound
}

func (t *storeTx) FindByIDForUpdate(_ context.Context, id uuid.UUID) (donation.Donation, error) {
	d, ok := t.donations[id]
	if !ok {
		return donation.Donation{}, goodies_errors.ErrNotFound
	}
	return d, nil
}

func (t *storeTx) Create(ctx context.Context, d *donation.Donation) error {
	if t.faults.Create != nil {
		return t.faults.Create
	}
	if d.ProviderSessionID.Valid {
		if _, err := t.FindBySessionForUpdate(ctx, d.ProviderSessionID.String); err == nil {
			return fmt.Errorf("%w: donation for session %s", goodies_errors.ErrAlreadyExists, d.ProviderSessionID.String)
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	t.donations[d.ID] = *d
	return nil
}

func (t *storeTx) UpdateStatus(_ context.Context, d donation.Donation) error {
	if t.faults.UpdateStatus != nil {
		return t.faults.UpdateStatus
	}
	cur, ok := t.donations[d.ID]
	if !ok {
		return fmt.Errorf("%w: donation %s", goodies_errors.ErrNotFound, d.ID)
	}
	cur.Status = d.Status
	cur.AmountCents = d.AmountCents
	cur.Currency = d.Currency
	cur.DonorEmail = d.DonorEmail
	cur.ProviderPaymentID = d.ProviderPaymentID
	cur.StatusReason = d.StatusReason
	cur.CompletedAt = d.CompletedAt
	cur.UpdatedAt = time.Now().UTC()
	t.donations[d.ID] = cur
	return nil
}

func (t *storeTx) IncrementCampaign(_ context.Context, campaignID string, amountCents int64) (campaign.Totals, error) {
	if t.faults.IncrementCampaign != nil {
		return campaign.Totals{}, t.faults.IncrementCampaign
	}
	return t.applyDelta(campaignID, amountCents, 1)
}

func (t *storeTx) DecrementCampaign(_ context.Context, campaignID string, amountCents int64) (campaign.Totals, error) {
	return t.applyDelta(campaignID, -amountCents, -1)
}

func (t *storeTx) applyDelta(campaignID string, amountDelta int64, backersDelta int) (campaign.Totals, error) {
	c, ok := t.campaigns[campaignID]
	if !ok {
		return campaign.Totals{}, fmt.Errorf("%w: campaign %s", goodies_errors.ErrNotFound, campaignID)
	}
	if c.CurrentAmountCents+amountDelta < 0 || c.Backers+backersDelta < 0 {
		return campaign.Totals{}, fmt.Errorf("%w: campaign %s totals would go negative", goodies_errors.ErrConflict, campaignID)
	}
	c.CurrentAmountCents += amountDelta
	c.Backers += backersDelta
	c.UpdatedAt = time.Now().UTC()
	t.campaigns[campaignID] = c
	return totalsOf(c), nil
}

func totalsOf(c campaign.Campaign) campaign.Totals {
	return campaign.Totals{
		CampaignID:         c.ID,
		Title:              c.Title,
		CurrentAmountCents: c.CurrentAmountCents,
		Backers:            c.Backers,
		GoalCents:          c.GoalCents,
		UpdatedAt:          c.UpdatedAt,
	}
}
