package settings

import "time"

// Runtime holds settings an operator can change without a restart.
type Runtime struct {
	Maintenance bool      `json:"maintenance"`
	UpdatedAt   time.Time `json:"updated_at"`
}
