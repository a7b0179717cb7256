package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/payments"
	"goodies-platform/internal/payments/stripe"
	"goodies-platform/internal/repository/memory"
	"goodies-platform/pkg/logger"
)

const testSecret = "whsec_services_test"

type recordingSink struct {
	mu       sync.Mutex
	failures []Failure
}

func (s *recordingSink) Report(_ context.Context, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
}

func (s *recordingSink) calls() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.failures...)
}

type recordingQueue struct {
	mu       sync.Mutex
	receipts []Receipt
	err      error
}

func (q *recordingQueue) Dispatch(r Receipt) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.receipts = append(q.receipts, r)
	return nil
}

func (q *recordingQueue) sent() []Receipt {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Receipt(nil), q.receipts...)
}

type recordingTotals struct {
	mu     sync.Mutex
	totals []campaign.Totals
}

func (p *recordingTotals) PublishTotals(_ context.Context, t campaign.Totals) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totals = append(p.totals, t)
	return nil
}

type pipeline struct {
	svc      *WebhookService
	ledger   *memory.Ledger
	store    *memory.Store
	sink     *recordingSink
	receipts *recordingQueue
	totals   *recordingTotals
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	p := &pipeline{
		ledger:   memory.NewLedger(),
		store:    memory.NewStore(),
		sink:     &recordingSink{},
		receipts: &recordingQueue{},
		totals:   &recordingTotals{},
	}
	p.store.PutCampaign(campaign.Campaign{ID: "camp_1", Title: "Clean Water", GoalCents: 100000, Currency: "USD", Status: campaign.StatusActive})
	registry := payments.NewRegistry(stripe.New(testSecret, 0))
	p.svc = NewWebhookService(registry, p.ledger, NewReconciler(p.store), p.sink, p.receipts, p.totals, logger.NewNop())
	return p
}

func checkoutCompleted(eventID, sessionID, campaignID string, amountCents int64) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session","amount_total":%d,"currency":"usd","payment_status":"paid","metadata":{"campaignId":%q},"customer_details":{"email":"donor@example.com"},"payment_intent":"pi_%s"}}}`,
		eventID, sessionID, amountCents, campaignID, eventID))
}

func stripeEvent(eventID, eventType, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, eventID, eventType, object))
}

func signed(t *testing.T, body []byte) http.Header {
	t.Helper()
	payload := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	h := http.Header{}
	h.Set(stripe.SignatureHeader, payload.Header)
	return h
}

func (p *pipeline) campaign(t *testing.T, id string) campaign.Campaign {
	t.Helper()
	c, ok := p.store.Campaign(id)
	if !ok {
		t.Fatalf("campaign %s missing", id)
	}
	return c
}
