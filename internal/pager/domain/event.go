package pager

import (
	"errors"
	"time"
)

// Event is a physical earthquake tracked across its published versions.
// Identity is the stable event code; state changes only by appending versions.
type Event struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks event invariants.
func (e Event) Validate() error {
	if e.Code == "" {
		return errors.New("pager: empty event code")
	}
	return nil
}
