package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ProcessedEvent marks a provider event as claimed. Rows are written once
// and never updated; the sweeper deletes them after the retention window.
type ProcessedEvent struct {
	Provider    string
	EventID     string
	EventType   string
	ProcessedAt time.Time
}

// ClaimResult is the outcome of an attempt to claim an event id.
type ClaimResult int

const (
	Claimed ClaimResult = iota + 1
	AlreadyProcessed
)

func (r ClaimResult) String() string {
	switch r {
	case Claimed:
		return "claimed"
	case AlreadyProcessed:
		return "already_processed"
	default:
		return "unknown"
	}
}

// ReconciliationFailure records a claimed event whose effects could not be
// applied. It is the input of the manual replay path.
type ReconciliationFailure struct {
	ID         uuid.UUID
	Provider   string
	EventID    string
	EventType  string
	Payload    []byte
	Error      string
	CreatedAt  time.Time
	ResolvedAt sql.NullTime
}
