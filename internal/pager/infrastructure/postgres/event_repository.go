package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"quake-pager/internal/observability/metrics"
	pager "quake-pager/internal/pager/domain"
)

const appendAttempts = 3

// EventRepository persists events and their append-only version history.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository constructs a repository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// AppendVersion assigns the next version number under a per-event row lock
// and inserts the document. Serialization and duplicate-key failures are
// retried a bounded number of times.
func (r *EventRepository) AppendVersion(ctx context.Context, version *pager.Version) (*pager.Version, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	if err := version.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < appendAttempts; attempt++ {
		if attempt > 0 {
			metrics.IncStoreRetry()
		}
		stored, err := r.appendOnce(ctx, version)
		if err == nil {
			return stored, nil
		}
		if !retryableAppendError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, errors.Join(pager.ErrVersionConflict, lastErr)
}

func (r *EventRepository) appendOnce(ctx context.Context, version *pager.Version) (*pager.Version, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO pager_events (event_code, created_at)
VALUES ($1, $2)
ON CONFLICT (event_code) DO NOTHING`, version.EventCode, time.Now().UTC()); err != nil {
		return nil, err
	}

	// The event row lock serializes concurrent appends for the same event.
	var eventCode string
	if err := tx.QueryRowContext(ctx, `
SELECT event_code FROM pager_events
WHERE event_code = $1
FOR UPDATE`, version.EventCode).Scan(&eventCode); err != nil {
		return nil, err
	}

	var nextNumber int
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(version_number), 0) + 1
FROM pager_versions
WHERE event_code = $1`, version.EventCode).Scan(&nextNumber); err != nil {
		return nil, err
	}
	if version.Number != 0 && version.Number != nextNumber {
		return nil, pager.ErrVersionConflict
	}

	stored := *version
	stored.Number = nextNumber
	document, err := json.Marshal(&stored)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO pager_versions (
	event_code,
	version_number,
	origin_time,
	process_time,
	magnitude,
	summary_level,
	fatality_level,
	economic_level,
	document
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9
)`, stored.EventCode, stored.Number, stored.OriginTime, stored.ProcessTime,
		stored.Magnitude, stored.SummaryLevel.String(), stored.FatalityLevel.String(),
		stored.EconomicLevel.String(), document); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &stored, nil
}

// History returns all stored versions for an event ordered by version number.
func (r *EventRepository) History(ctx context.Context, eventCode string) ([]pager.Version, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT document
FROM pager_versions
WHERE event_code = $1
ORDER BY version_number ASC`, eventCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []pager.Version
	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, err
		}
		var version pager.Version
		if err := json.Unmarshal(document, &version); err != nil {
			return nil, err
		}
		history = append(history, version)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, pager.ErrNotFound
	}
	return history, nil
}

// GetLatest returns the newest version for an event.
func (r *EventRepository) GetLatest(ctx context.Context, eventCode string) (*pager.Version, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("event repo: nil db")
	}
	var document []byte
	err := r.db.QueryRowContext(ctx, `
SELECT document
FROM pager_versions
WHERE event_code = $1
ORDER BY version_number DESC
LIMIT 1`, eventCode).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pager.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var version pager.Version
	if err := json.Unmarshal(document, &version); err != nil {
		return nil, err
	}
	return &version, nil
}

func retryableAppendError(err error) bool {
	if errors.Is(err, pager.ErrVersionConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "40001" || pgErr.Code == "23505" {
			return true
		}
		// Connection exceptions (class 08) are safe to retry before commit.
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
	}
	return false
}
