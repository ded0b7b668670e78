package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerting "quake-pager/internal/alerting/domain"
)

const defaultSubscribersTable = "alert_subscribers"

// SubscriberRepository is a Postgres implementation for subscribers.
type SubscriberRepository struct {
	db    *sql.DB
	table string
}

// NewSubscriberRepository constructs a repository.
func NewSubscriberRepository(db *sql.DB, opts ...SubscriberOption) *SubscriberRepository {
	repo := &SubscriberRepository{db: db, table: defaultSubscribersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SubscriberOption configures the repository.
type SubscriberOption func(*SubscriberRepository)

// WithSubscribersTable overrides the default table name.
func WithSubscribersTable(table string) SubscriberOption {
	return func(repo *SubscriberRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a subscriber by id.
func (r *SubscriberRepository) Get(ctx context.Context, id string) (*alerting.Subscriber, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("subscriber repo: nil db")
	}
	if id == "" {
		return nil, errors.New("subscriber repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, name, address, format, rule, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var subscriber alerting.Subscriber
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&subscriber.ID,
		&subscriber.Name,
		&subscriber.Address,
		&subscriber.Format,
		&subscriber.RuleText,
		&subscriber.CreatedAt,
		&subscriber.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, alerting.ErrNotFound
		}
		return nil, err
	}
	if err := subscriber.Validate(); err != nil {
		return nil, err
	}
	subscriber.CreatedAt = subscriber.CreatedAt.UTC()
	subscriber.UpdatedAt = subscriber.UpdatedAt.UTC()
	return &subscriber, nil
}

// List returns all subscribers ordered by id. Rows with rule expressions that
// no longer parse are skipped rather than failing the whole round.
func (r *SubscriberRepository) List(ctx context.Context) ([]alerting.Subscriber, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("subscriber repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, name, address, format, rule, created_at, updated_at
FROM %s
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscribers []alerting.Subscriber
	for rows.Next() {
		var subscriber alerting.Subscriber
		if err := rows.Scan(
			&subscriber.ID,
			&subscriber.Name,
			&subscriber.Address,
			&subscriber.Format,
			&subscriber.RuleText,
			&subscriber.CreatedAt,
			&subscriber.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := subscriber.Validate(); err != nil {
			continue
		}
		subscriber.CreatedAt = subscriber.CreatedAt.UTC()
		subscriber.UpdatedAt = subscriber.UpdatedAt.UTC()
		subscribers = append(subscribers, subscriber)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return subscribers, nil
}

// Save upserts a subscriber.
func (r *SubscriberRepository) Save(ctx context.Context, subscriber *alerting.Subscriber) error {
	if r == nil || r.db == nil {
		return errors.New("subscriber repo: nil db")
	}
	if subscriber == nil {
		return errors.New("subscriber repo: nil subscriber")
	}
	if err := subscriber.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	address,
	format,
	rule
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	address = EXCLUDED.address,
	format = EXCLUDED.format,
	rule = EXCLUDED.rule,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(
		ctx,
		query,
		subscriber.ID,
		subscriber.Name,
		subscriber.Address,
		subscriber.Format,
		subscriber.RuleText,
	)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if subscriber.CreatedAt.IsZero() {
		subscriber.CreatedAt = now
	}
	subscriber.UpdatedAt = now
	return nil
}

// Delete removes a subscriber.
func (r *SubscriberRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("subscriber repo: nil db")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerting.ErrNotFound
	}
	return nil
}
