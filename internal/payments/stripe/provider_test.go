package stripe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v81/webhook"

	"goodies-platform/internal/payments"
)

const testSecret = "whsec_test_secret"

func signedHeader(t *testing.T, body []byte, secret string, ts time.Time) http.Header {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    secret,
		Timestamp: ts,
	})
	h := http.Header{}
	h.Set(SignatureHeader, signed.Header)
	return h
}

func sessionEvent(id, typ, paymentStatus string) []byte {
	return sessionEventAmount(id, typ, paymentStatus, 5000)
}

func sessionEventAmount(id, typ, paymentStatus string, amountTotal int64) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":{"id":"cs_123","object":"checkout.session","amount_total":%d,"currency":"usd","payment_status":%q,"metadata":{"campaignId":"camp_1"},"customer_details":{"email":"donor@example.com"},"payment_intent":"pi_123"}}}`, id, typ, amountTotal, paymentStatus))
}

func TestVerifyAcceptsSignedPayload(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	body := sessionEvent("evt_1", EventCheckoutCompleted, "paid")

	ev, err := p.Verify(context.Background(), signedHeader(t, body, testSecret, time.Now()), body)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != EventCheckoutCompleted || ev.Provider != Name {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if string(ev.Raw) != string(body) {
		t.Fatalf("raw body was not preserved")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	body := sessionEvent("evt_1", EventCheckoutCompleted, "paid")
	header := signedHeader(t, body, testSecret, time.Now())

	tampered := bytes.Replace(body, []byte(`"amount_total":5000`), []byte(`"amount_total":9000`), 1)

	if _, err := p.Verify(context.Background(), header, tampered); !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	body := sessionEvent("evt_1", EventCheckoutCompleted, "paid")

	if _, err := p.Verify(context.Background(), signedHeader(t, body, "whsec_stale", time.Now()), body); !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	t.Parallel()

	p := New(testSecret, time.Minute)
	body := sessionEvent("evt_1", EventCheckoutCompleted, "paid")

	if _, err := p.Verify(context.Background(), signedHeader(t, body, testSecret, time.Now().Add(-time.Hour)), body); !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for replayed payload, got %v", err)
	}
}

func TestVerifyRejectsMissingHeader(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	body := sessionEvent("evt_1", EventCheckoutCompleted, "paid")
	if _, err := p.Verify(context.Background(), http.Header{}, body); !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestVerifyRejectsSignedGarbage(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	body := []byte(`not json`)
	if _, err := p.Verify(context.Background(), signedHeader(t, body, testSecret, time.Now()), body); !errors.Is(err, payments.ErrMalformedPayload) {
		t.Fatalf("expected malformed payload, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	tests := []struct {
		name   string
		typ    string
		paid   string
		amount int64
		want   string
	}{
		{name: "completed paid", typ: EventCheckoutCompleted, paid: "paid", amount: 5000, want: "payment_completed"},
		{name: "completed unpaid", typ: EventCheckoutCompleted, paid: "unpaid", amount: 5000, want: "unhandled"},
		{name: "async succeeded", typ: EventCheckoutAsyncPaymentOK, paid: "paid", amount: 5000, want: "payment_completed"},
		{name: "async failed", typ: EventCheckoutAsyncPaymentFailed, paid: "unpaid", amount: 5000, want: "payment_failed"},
		{name: "expired", typ: EventCheckoutExpired, paid: "unpaid", amount: 5000, want: "payment_failed"},
		{name: "payment intent", typ: "payment_intent.succeeded", paid: "paid", amount: 5000, want: "unhandled"},
		{name: "future type", typ: "some.new.event", paid: "paid", amount: 5000, want: "unhandled"},
		{name: "free checkout", typ: EventCheckoutCompleted, paid: "no_payment_required", amount: 0, want: "unhandled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := sessionEventAmount("evt_x", tt.typ, tt.paid, tt.amount)
			ev, err := p.Verify(context.Background(), signedHeader(t, body, testSecret, time.Now()), body)
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			intent, err := p.Classify(ev)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if got := payments.IntentName(intent); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassifyCompletedFields(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	body := sessionEvent("evt_1", EventCheckoutCompleted, "paid")
	ev, err := p.Verify(context.Background(), signedHeader(t, body, testSecret, time.Now()), body)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	intent, err := p.Classify(ev)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	got, ok := intent.(payments.PaymentCompleted)
	if !ok {
		t.Fatalf("expected PaymentCompleted, got %T", intent)
	}
	if got.SessionID != "cs_123" || got.CampaignID != "camp_1" || got.AmountCents != 5000 {
		t.Fatalf("unexpected intent: %+v", got)
	}
	if got.Currency != "USD" || got.PayerEmail != "donor@example.com" || got.PaymentID != "pi_123" {
		t.Fatalf("unexpected intent details: %+v", got)
	}
}

func TestClassifyMalformedSession(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	ev := payments.VerifiedEvent{Provider: Name, ID: "evt_1", Type: EventCheckoutCompleted, Object: []byte(`{"object":"checkout.session"}`)}
	if _, err := p.Classify(ev); !errors.Is(err, payments.ErrMalformedPayload) {
		t.Fatalf("expected malformed payload, got %v", err)
	}
}

func TestDecodeMatchesVerify(t *testing.T) {
	t.Parallel()

	p := New(testSecret, 0)
	body := sessionEvent("evt_decode", EventCheckoutExpired, "unpaid")
	verified, err := p.Verify(context.Background(), signedHeader(t, body, testSecret, time.Now()), body)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	decoded, err := p.Decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ID != verified.ID || decoded.Type != verified.Type || !bytes.Equal(decoded.Object, verified.Object) {
		t.Fatalf("decode %+v differs from verify %+v", decoded, verified)
	}

	if _, err := p.Decode([]byte(`{"object":"event"}`)); !errors.Is(err, payments.ErrMalformedPayload) {
		t.Fatalf("expected malformed for missing id, got %v", err)
	}
}
