package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"goodies-platform/internal/domain/campaign"
	"goodies-platform/internal/domain/ledger"
	"goodies-platform/internal/payments"
	"goodies-platform/internal/repository"
	"goodies-platform/pkg/logger"
)

var (
	// ErrLedgerStorage is the only failure the provider should retry:
	// nothing was claimed and nothing changed.
	ErrLedgerStorage = errors.New("idempotency ledger unavailable")
	// ErrReconciliationFailed wraps the cause of a post-claim failure.
	// It is reported to the FailureSink, never returned to the handler.
	ErrReconciliationFailed = errors.New("reconciliation failed")
)

type ResultStatus string

const (
	StatusProcessed            ResultStatus = "processed"
	StatusDuplicate            ResultStatus = "duplicate"
	StatusUnhandled            ResultStatus = "unhandled"
	StatusReconciliationFailed ResultStatus = "reconciliation_failed"
)

type Result struct {
	Status    ResultStatus
	Provider  string
	EventID   string
	EventType string
	Outcome   Outcome
}

type ReceiptQueue interface {
	Dispatch(r Receipt) error
}

type TotalsPublisher interface {
	PublishTotals(ctx context.Context, t campaign.Totals) error
}

// WebhookService runs one delivery through verify, claim, classify,
// reconcile and dispatch.
type WebhookService struct {
	providers  *payments.Registry
	ledger     repository.LedgerRepository
	reconciler *Reconciler
	sink       FailureSink
	receipts   ReceiptQueue
	totals     TotalsPublisher
	log        *logger.Logger
}

// NewWebhookService wires the pipeline. receipts and totals may be nil.
func NewWebhookService(
	providers *payments.Registry,
	ledgerRepo repository.LedgerRepository,
	reconciler *Reconciler,
	sink FailureSink,
	receipts ReceiptQueue,
	totals TotalsPublisher,
	log *logger.Logger,
) *WebhookService {
	return &WebhookService{
		providers:  providers,
		ledger:     ledgerRepo,
		reconciler: reconciler,
		sink:       sink,
		receipts:   receipts,
		totals:     totals,
		log:        log,
	}
}

// Process returns payments.ErrUnknownProvider, payments.ErrInvalidSignature,
// payments.ErrMalformedPayload, payments.ErrVerificationUnavailable or
// ErrLedgerStorage. Every outcome after a successful claim, including a
// failed reconciliation, is a nil error.
func (s *WebhookService) Process(ctx context.Context, providerName string, header http.Header, body []byte) (Result, error) {
	provider, err := s.providers.Get(providerName)
	if err != nil {
		return Result{}, err
	}

	ev, err := provider.Verify(ctx, header, body)
	if err != nil {
		s.log.Warn(ctx, "webhook rejected", zap.String("provider", provider.Name()), zap.Error(err))
		return Result{}, err
	}
	ctx = logger.WithEvent(ctx, ev.Provider, ev.ID)
	res := Result{Provider: ev.Provider, EventID: ev.ID, EventType: ev.Type}

	claim, err := s.ledger.Claim(ctx, ledger.ProcessedEvent{
		Provider:    ev.Provider,
		EventID:     ev.ID,
		EventType:   ev.Type,
		ProcessedAt: time.Now().UTC(),
	})
	if err != nil {
		s.log.Error(ctx, "ledger claim failed", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrLedgerStorage, err)
	}
	if claim == ledger.AlreadyProcessed {
		s.log.Info(ctx, "duplicate webhook delivery", zap.String("event_type", ev.Type))
		res.Status = StatusDuplicate
		return res, nil
	}

	intent, err := provider.Classify(ev)
	if err != nil {
		s.reportFailure(ctx, ev, err)
		res.Status = StatusReconciliationFailed
		return res, nil
	}
	if _, ok := intent.(payments.Unhandled); ok {
		s.log.Info(ctx, "unhandled webhook event type", zap.String("event_type", ev.Type))
		res.Status = StatusUnhandled
		return res, nil
	}

	rec, err := s.reconciler.Apply(ctx, intent)
	if err != nil {
		s.reportFailure(ctx, ev, err)
		res.Status = StatusReconciliationFailed
		return res, nil
	}

	s.log.Info(ctx, "webhook reconciled",
		zap.String("event_type", ev.Type),
		zap.String("intent", payments.IntentName(intent)),
		zap.String("outcome", string(rec.Outcome)),
	)
	s.afterReconcile(ctx, rec, intent)

	res.Status = StatusProcessed
	res.Outcome = rec.Outcome
	return res, nil
}

func (s *WebhookService) reportFailure(ctx context.Context, ev payments.VerifiedEvent, cause error) {
	err := fmt.Errorf("%w: %v", ErrReconciliationFailed, cause)
	s.log.Error(ctx, "reconciliation failed",
		zap.String("event_type", ev.Type),
		zap.ByteString("payload", ev.Raw),
		zap.Error(err),
	)
	// A cancelled request must not skip the record; the sink applies its
	// own deadline.
	s.sink.Report(context.WithoutCancel(ctx), Failure{
		Provider:  ev.Provider,
		EventID:   ev.ID,
		EventType: ev.Type,
		Payload:   ev.Raw,
		Err:       err,
		At:        time.Now().UTC(),
	})
}

// afterReconcile publishes totals and queues the receipt. Both are best
// effort.
func (s *WebhookService) afterReconcile(ctx context.Context, rec Reconciliation, intent payments.Intent) {
	if rec.Totals != nil && s.totals != nil {
		if err := s.totals.PublishTotals(ctx, *rec.Totals); err != nil {
			s.log.Warn(ctx, "publish campaign totals failed", zap.String("campaign_id", rec.Totals.CampaignID), zap.Error(err))
		}
	}

	if rec.Outcome != OutcomeCompleted || s.receipts == nil || rec.Donation.DonorEmail == "" {
		return
	}
	r := Receipt{
		To:            rec.Donation.DonorEmail,
		DonationID:    rec.Donation.ID.String(),
		CampaignID:    rec.Donation.CampaignID,
		AmountCents:   rec.Donation.AmountCents,
		Currency:      rec.Donation.Currency,
		TransactionID: rec.Donation.ProviderPaymentID.String,
		PaidAt:        rec.Donation.CompletedAt.Time,
	}
	if rec.Totals != nil {
		r.CampaignTitle = rec.Totals.Title
	}
	if r.TransactionID == "" {
		if c, ok := intent.(payments.PaymentCompleted); ok {
			r.TransactionID = c.SessionID
		}
	}
	if err := s.receipts.Dispatch(r); err != nil {
		s.log.Warn(ctx, "receipt not queued", zap.String("donation_id", r.DonationID), zap.Error(err))
	}
}
