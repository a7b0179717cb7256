// Package stripe verifies and classifies Stripe webhook deliveries.
package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripego "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"goodies-platform/internal/domain/donation"
	"goodies-platform/internal/payments"
)

const (
	Name            = "stripe"
	SignatureHeader = "Stripe-Signature"

	// Metadata key set on the checkout session at creation time.
	CampaignMetadataKey = "campaignId"
)

const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
	EventCheckoutExpired            = "checkout.session.expired"
)

type Provider struct {
	secret    string
	tolerance time.Duration
}

func New(secret string, tolerance time.Duration) *Provider {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Provider{secret: secret, tolerance: tolerance}
}

func (p *Provider) Name() string { return Name }

// Verify checks the Stripe-Signature header against the exact body bytes.
func (p *Provider) Verify(_ context.Context, header http.Header, body []byte) (payments.VerifiedEvent, error) {
	sig := header.Get(SignatureHeader)
	if sig == "" {
		return payments.VerifiedEvent{}, fmt.Errorf("%w: missing %s header", payments.ErrInvalidSignature, SignatureHeader)
	}

	ev, err := webhook.ConstructEventWithOptions(body, sig, p.secret, webhook.ConstructEventOptions{
		Tolerance:                p.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return payments.VerifiedEvent{}, fmt.Errorf("%w: %v", payments.ErrInvalidSignature, err)
		}
		return payments.VerifiedEvent{}, fmt.Errorf("%w: %v", payments.ErrMalformedPayload, err)
	}
	return toVerified(ev, body)
}

func (p *Provider) Decode(body []byte) (payments.VerifiedEvent, error) {
	var ev stripego.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return payments.VerifiedEvent{}, fmt.Errorf("%w: %v", payments.ErrMalformedPayload, err)
	}
	return toVerified(ev, body)
}

func toVerified(ev stripego.Event, body []byte) (payments.VerifiedEvent, error) {
	if ev.ID == "" || ev.Type == "" {
		return payments.VerifiedEvent{}, fmt.Errorf("%w: event id or type missing", payments.ErrMalformedPayload)
	}
	var object []byte
	if ev.Data != nil {
		object = ev.Data.Raw
	}
	return payments.VerifiedEvent{
		Provider: Name,
		ID:       ev.ID,
		Type:     string(ev.Type),
		Object:   object,
		Raw:      body,
	}, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// Classify maps checkout session events; all other types are Unhandled.
func (p *Provider) Classify(ev payments.VerifiedEvent) (payments.Intent, error) {
	switch ev.Type {
	case EventCheckoutCompleted, EventCheckoutAsyncPaymentOK:
		session, err := decodeSession(ev.Object)
		if err != nil {
			return nil, err
		}
		// A completed session paid by a delayed method settles later
		// through async_payment_succeeded.
		if ev.Type == EventCheckoutCompleted && session.PaymentStatus == stripego.CheckoutSessionPaymentStatusUnpaid {
			return payments.Unhandled{EventType: ev.Type}, nil
		}
		// Free checkouts (no_payment_required) move no money.
		if session.AmountTotal == 0 {
			return payments.Unhandled{EventType: ev.Type}, nil
		}
		return completedFromSession(session)

	case EventCheckoutAsyncPaymentFailed:
		session, err := decodeSession(ev.Object)
		if err != nil {
			return nil, err
		}
		return payments.PaymentFailed{Method: donation.MethodStripe, SessionID: session.ID, Reason: "async_payment_failed"}, nil

	case EventCheckoutExpired:
		session, err := decodeSession(ev.Object)
		if err != nil {
			return nil, err
		}
		return payments.PaymentFailed{Method: donation.MethodStripe, SessionID: session.ID, Reason: "expired"}, nil

	default:
		return payments.Unhandled{EventType: ev.Type}, nil
	}
}

func decodeSession(object []byte) (stripego.CheckoutSession, error) {
	var session stripego.CheckoutSession
	if len(object) == 0 {
		return session, fmt.Errorf("%w: empty checkout session", payments.ErrMalformedPayload)
	}
	if err := json.Unmarshal(object, &session); err != nil {
		return session, fmt.Errorf("%w: checkout session: %v", payments.ErrMalformedPayload, err)
	}
	if session.ID == "" {
		return session, fmt.Errorf("%w: checkout session id missing", payments.ErrMalformedPayload)
	}
	return session, nil
}

func completedFromSession(s stripego.CheckoutSession) (payments.Intent, error) {
	if s.AmountTotal <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount_total %d", payments.ErrMalformedPayload, s.AmountTotal)
	}
	out := payments.PaymentCompleted{
		Method:      donation.MethodStripe,
		SessionID:   s.ID,
		CampaignID:  s.Metadata[CampaignMetadataKey],
		AmountCents: s.AmountTotal,
		Currency:    strings.ToUpper(string(s.Currency)),
		PayerEmail:  s.CustomerEmail,
	}
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		out.PayerEmail = s.CustomerDetails.Email
	}
	if s.PaymentIntent != nil {
		out.PaymentID = s.PaymentIntent.ID
	}
	return out, nil
}
