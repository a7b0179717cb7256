// Package payments defines the provider-neutral webhook contract: signature
// verification, the verified event envelope, and the intents a provider
// event classifies into.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrInvalidSignature means the body was not signed by the provider
	// with our secret. Respond 400 and change nothing.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedPayload means the signed body could not be decoded.
	ErrMalformedPayload = errors.New("malformed webhook payload")
	// ErrVerificationUnavailable means the verification backend could not
	// be reached. The provider should redeliver.
	ErrVerificationUnavailable = errors.New("webhook verification unavailable")
	ErrUnknownProvider         = errors.New("unknown payment provider")
)

// VerifiedEvent is an event whose bytes were proven to come from Provider.
// Raw holds the exact delivered body; Object is the provider resource.
type VerifiedEvent struct {
	Provider string
	ID       string
	Type     string
	Object   []byte
	Raw      []byte
}

// Provider verifies and classifies webhook deliveries for one payment
// provider. Verify must be given the unparsed request body.
type Provider interface {
	Name() string
	Verify(ctx context.Context, header http.Header, body []byte) (VerifiedEvent, error)
	// Decode parses a body that was verified earlier, such as a stored
	// failure being replayed. It performs no signature check.
	Decode(body []byte) (VerifiedEvent, error)
	// Classify maps every event type to an Intent, falling back to
	// Unhandled. It returns an error only when a handled type carries a
	// resource that cannot be decoded.
	Classify(ev VerifiedEvent) (Intent, error)
}

// Registry resolves providers by the name used in the webhook path.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[strings.ToLower(p.Name())] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
