package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"

	"goodies-platform/internal/mailer"
	"goodies-platform/internal/payments"
	goodies_errors "goodies-platform/pkg/errors"
	"goodies-platform/pkg/logger"
)

//go:embed templates/receipt.html
var receiptFS embed.FS

var receiptTemplate = template.Must(template.ParseFS(receiptFS, "templates/receipt.html"))

type Receipt struct {
	To            string
	DonationID    string
	CampaignID    string
	CampaignTitle string
	AmountCents   int64
	Currency      string
	TransactionID string
	PaidAt        time.Time
}

type receiptView struct {
	Receipt
	Amount string
}

// Email renders the receipt. The plain text part mirrors the HTML one.
func (r Receipt) Email() (mailer.Email, error) {
	if r.CampaignTitle == "" {
		r.CampaignTitle = r.CampaignID
	}
	view := receiptView{Receipt: r, Amount: payments.FormatAmount(r.AmountCents)}

	var html bytes.Buffer
	if err := receiptTemplate.Execute(&html, view); err != nil {
		return mailer.Email{}, fmt.Errorf("render receipt: %w", err)
	}
	text := fmt.Sprintf("Thank you for supporting %s.\n\nAmount: %s %s\nDate: %s\nTransaction: %s\nDonation: %s\n",
		r.CampaignTitle, view.Amount, r.Currency, r.PaidAt.Format(time.RFC1123), r.TransactionID, r.DonationID)

	return mailer.Email{
		To:       []string{r.To},
		Subject:  "Your donation receipt",
		TextBody: text,
		HTMLBody: html.String(),
	}, nil
}

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// ReceiptDispatcher sends receipts off the request path. Dispatch never
// blocks: a full queue drops the receipt.
type ReceiptDispatcher struct {
	mailer  mailer.Service
	cfg     DispatcherConfig
	queue   chan Receipt
	log     *logger.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewReceiptDispatcher(m mailer.Service, cfg DispatcherConfig, log *logger.Logger) *ReceiptDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &ReceiptDispatcher{
		mailer: m,
		cfg:    cfg,
		queue:  make(chan Receipt, cfg.QueueSize),
		log:    log,
	}
}

func (d *ReceiptDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
}

func (d *ReceiptDispatcher) Dispatch(r Receipt) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return goodies_errors.ErrServiceUnavailable
	}
	select {
	case d.queue <- r:
		return nil
	default:
		return goodies_errors.ErrQueueFull
	}
}

// Stop rejects new receipts and waits for queued ones until ctx expires.
func (d *ReceiptDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *ReceiptDispatcher) run() {
	defer d.wg.Done()
	for r := range d.queue {
		d.send(r)
	}
}

func (d *ReceiptDispatcher) send(r Receipt) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	email, err := r.Email()
	if err != nil {
		d.log.Error(ctx, "receipt render failed", zap.String("donation_id", r.DonationID), zap.Error(err))
		return
	}
	if err := d.mailer.Send(ctx, email); err != nil {
		d.log.Warn(ctx, "receipt send failed", zap.String("donation_id", r.DonationID), zap.Error(err))
		return
	}
	d.log.Info(ctx, "receipt sent", zap.String("donation_id", r.DonationID))
}
