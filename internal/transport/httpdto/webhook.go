package httpdto

// WebhookAck is the provider-facing acknowledgement. It carries no
// donation or campaign data.
type WebhookAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
	EventID  string `json:"event_id,omitempty"`
}
