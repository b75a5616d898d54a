package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/fokus/go/internal/sqlutil"
)

const insertEvent = `
INSERT INTO fokus_outbox (id, aggregate_id, event_type, payload)
VALUES ($1, $2, $3, $4)`

const fetchUnsent = `
SELECT id, aggregate_id, event_type, payload, created_at
FROM fokus_outbox
WHERE sent_at IS NULL
ORDER BY created_at
LIMIT $1`

const fetchByID = `
SELECT id, aggregate_id, event_type, payload, created_at
FROM fokus_outbox
WHERE id = $1 AND sent_at IS NULL`

const markSent = `
UPDATE fokus_outbox SET sent_at = now() WHERE id = $1`

const countPending = `
SELECT COUNT(*) FROM fokus_outbox WHERE sent_at IS NULL`

// Repository reads and writes the fokus_outbox table. Bind it to a *sql.Tx
// to insert events atomically with the write that produced them.
type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// InsertEvent appends an event and returns its id.
func (r *Repository) InsertEvent(ctx context.Context, aggregateID, eventType string, payload []byte) (uuid.UUID, error) {
	if len(payload) == 0 {
		return uuid.Nil, fmt.Errorf("invalid %s event: %w", eventType, ErrEmptyPayload)
	}

	id := uuid.New()
	if _, err := r.db.ExecContext(ctx, insertEvent, id, aggregateID, eventType, payload); err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert %s outbox event: %w", eventType, err)
	}
	return id, nil
}

func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, fetchUnsent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}
	return events, nil
}

func (r *Repository) FetchByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	var e OutboxEvent
	err := r.db.QueryRowContext(ctx, fetchByID, id).Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to fetch outbox event by ID: %w", err)
	}
	return &e, nil
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, markSent, id); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}
	return nil
}

func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, countPending).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending outbox events: %w", err)
	}
	return count, nil
}
