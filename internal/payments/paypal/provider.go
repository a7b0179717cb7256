// Package paypal verifies PayPal webhook deliveries through the
// verify-webhook-signature API and classifies capture events.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"goodies-platform/internal/domain/donation"
	"goodies-platform/internal/payments"
)

const Name = "paypal"

const (
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderCertURL          = "PAYPAL-CERT-URL"
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
)

const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	EventApprovalReversed = "CHECKOUT.PAYMENT-APPROVAL.REVERSED"
)

const verificationSuccess = "SUCCESS"

type Config struct {
	ClientID     string
	ClientSecret string
	WebhookID    string
	APIBase      string
	// HTTPClient is the transport for both token and verify calls.
	HTTPClient *http.Client
}

type Provider struct {
	webhookID string
	apiBase   string
	client    *http.Client
}

func New(cfg Config) *Provider {
	apiBase := strings.TrimRight(cfg.APIBase, "/")

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 5 * time.Second}
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     apiBase + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	client := cc.Client(tokenCtx)
	client.Timeout = base.Timeout

	return &Provider{
		webhookID: cfg.WebhookID,
		apiBase:   apiBase,
		client:    client,
	}
}

func (p *Provider) Name() string { return Name }

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type envelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// Verify asks PayPal to check the transmission signature. The body is
// forwarded as raw JSON so PayPal sees the bytes it signed.
func (p *Provider) Verify(ctx context.Context, header http.Header, body []byte) (payments.VerifiedEvent, error) {
	req := verifyRequest{
		AuthAlgo:         header.Get(HeaderAuthAlgo),
		CertURL:          header.Get(HeaderCertURL),
		TransmissionID:   header.Get(HeaderTransmissionID),
		TransmissionSig:  header.Get(HeaderTransmissionSig),
		TransmissionTime: header.Get(HeaderTransmissionTime),
		WebhookID:        p.webhookID,
	}
	if req.AuthAlgo == "" || req.CertURL == "" || req.TransmissionID == "" || req.TransmissionSig == "" || req.TransmissionTime == "" {
		return payments.VerifiedEvent{}, fmt.Errorf("%w: missing PAYPAL transmission headers", payments.ErrInvalidSignature)
	}
	if !json.Valid(body) {
		return payments.VerifiedEvent{}, fmt.Errorf("%w: body is not JSON", payments.ErrMalformedPayload)
	}
	req.WebhookEvent = json.RawMessage(body)

	status, err := p.verify(ctx, req)
	if err != nil {
		return payments.VerifiedEvent{}, err
	}
	if status != verificationSuccess {
		return payments.VerifiedEvent{}, fmt.Errorf("%w: verification status %q", payments.ErrInvalidSignature, status)
	}

	return p.Decode(body)
}

func (p *Provider) Decode(body []byte) (payments.VerifiedEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return payments.VerifiedEvent{}, fmt.Errorf("%w: %v", payments.ErrMalformedPayload, err)
	}
	if env.ID == "" || env.EventType == "" {
		return payments.VerifiedEvent{}, fmt.Errorf("%w: event id or type missing", payments.ErrMalformedPayload)
	}
	return payments.VerifiedEvent{
		Provider: Name,
		ID:       env.ID,
		Type:     env.EventType,
		Object:   env.Resource,
		Raw:      body,
	}, nil
}

func (p *Provider) verify(ctx context.Context, in verifyRequest) (string, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", payments.ErrMalformedPayload, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/v1/notifications/verify-webhook-signature", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", payments.ErrVerificationUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", payments.ErrVerificationUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", payments.ErrVerificationUnavailable, err)
	}
	switch {
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: paypal returned %d", payments.ErrVerificationUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		// PayPal rejects unverifiable transmissions with 400.
		return "", fmt.Errorf("%w: paypal returned %d", payments.ErrInvalidSignature, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: decode verification response: %v", payments.ErrVerificationUnavailable, err)
	}
	return out.VerificationStatus, nil
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type capture struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Amount        money  `json:"amount"`
	CustomID      string `json:"custom_id"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type order struct {
	ID string `json:"id"`
}

// Classify maps capture events to intents. The checkout session id is
// the PayPal order id stored on the pending donation.
func (p *Provider) Classify(ev payments.VerifiedEvent) (payments.Intent, error) {
	switch ev.Type {
	case EventCaptureCompleted:
		c, err := decodeCapture(ev.Object)
		if err != nil {
			return nil, err
		}
		amount, err := payments.ParseAmount(c.Amount.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", payments.ErrMalformedPayload, err)
		}
		if amount <= 0 {
			return nil, fmt.Errorf("%w: non-positive amount %s", payments.ErrMalformedPayload, c.Amount.Value)
		}
		return payments.PaymentCompleted{
			Method:      donation.MethodPayPal,
			SessionID:   c.SupplementaryData.RelatedIDs.OrderID,
			PaymentID:   c.ID,
			CampaignID:  c.CustomID,
			AmountCents: amount,
			Currency:    strings.ToUpper(c.Amount.CurrencyCode),
		}, nil

	case EventCaptureDenied:
		c, err := decodeCapture(ev.Object)
		if err != nil {
			return nil, err
		}
		reason := "capture_denied"
		if c.StatusDetails.Reason != "" {
			reason = strings.ToLower(c.StatusDetails.Reason)
		}
		return payments.PaymentFailed{Method: donation.MethodPayPal, SessionID: c.SupplementaryData.RelatedIDs.OrderID, Reason: reason}, nil

	case EventApprovalReversed:
		var o order
		if err := json.Unmarshal(ev.Object, &o); err != nil || o.ID == "" {
			return nil, fmt.Errorf("%w: order resource", payments.ErrMalformedPayload)
		}
		return payments.PaymentFailed{Method: donation.MethodPayPal, SessionID: o.ID, Reason: "approval_reversed"}, nil

	default:
		return payments.Unhandled{EventType: ev.Type}, nil
	}
}

func decodeCapture(object []byte) (capture, error) {
	var c capture
	if len(object) == 0 {
		return c, fmt.Errorf("%w: empty capture resource", payments.ErrMalformedPayload)
	}
	if err := json.Unmarshal(object, &c); err != nil {
		return c, fmt.Errorf("%w: capture resource: %v", payments.ErrMalformedPayload, err)
	}
	if c.SupplementaryData.RelatedIDs.OrderID == "" {
		return c, fmt.Errorf("%w: capture has no related order id", payments.ErrMalformedPayload)
	}
	return c, nil
}
