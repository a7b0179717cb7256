package payments

import "goodies-platform/internal/domain/donation"

// Intent is the domain meaning of a provider event. The concrete types are
// PaymentCompleted, PaymentFailed and Unhandled.
type Intent interface {
	intent()
}

// PaymentCompleted settles the donation created for SessionID.
type PaymentCompleted struct {
	Method      donation.PaymentMethod
	SessionID   string
	PaymentID   string
	CampaignID  string
	AmountCents int64
	Currency    string
	PayerEmail  string
}

// PaymentFailed closes the pending donation for SessionID without funds.
type PaymentFailed struct {
	Method    donation.PaymentMethod
	SessionID string
	Reason    string
}

// Unhandled is acknowledged and dropped.
type Unhandled struct {
	EventType string
}

func (PaymentCompleted) intent() {}
func (PaymentFailed) intent()    {}
func (Unhandled) intent()        {}

// IntentName is used in logs and API responses.
func IntentName(i Intent) string {
	switch i.(type) {
	case PaymentCompleted:
		return "payment_completed"
	case PaymentFailed:
		return "payment_failed"
	default:
		return "unhandled"
	}
}
