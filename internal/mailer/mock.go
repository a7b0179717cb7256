package mailer

import (
	"context"
	"sync"
)

// Mock records every email. Err, when set, is returned from Send.
type Mock struct {
	mu   sync.Mutex
	sent []Email
	Err  error
}

func (m *Mock) Send(_ context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.Err
}

func (m *Mock) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.sent...)
}
