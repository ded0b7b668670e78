package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"quake-pager/internal/eventing"
)

// DLQStore records events that could not be delivered.
type DLQStore struct {
	db *sql.DB
}

// NewDLQStore constructs a dead-letter store.
func NewDLQStore(db *sql.DB) *DLQStore {
	return &DLQStore{db: db}
}

// RecordFailure persists the failed envelope with the delivery error.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO dead_letter_events (id, event_id, event_type, payload, reason, failed_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		eventing.NewEventID(), env.EventID, env.EventType, payload, reason, time.Now().UTC())
	return err
}
