// Package outbox stores domain events in Postgres alongside the writes that
// produce them and relays them to NATS JetStream.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types written to the outbox.
const (
	EventFocusSessionClosed = "FocusSessionClosed"
	EventPointsDeposited    = "PointsDeposited"
)

// OutboxEvent represents an outbox event for the application layer
type OutboxEvent struct {
	ID          uuid.UUID       `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	SentAt      *time.Time      `json:"sent_at,omitempty"`
}

// Publisher is an interface that defines our publisher.
type Publisher interface {
	Publish(ctx context.Context, event OutboxEvent) error
}

// EventStore is what the relay needs from the outbox table.
type EventStore interface {
	FetchUnsent(ctx context.Context, limit int32) ([]OutboxEvent, error)
	FetchByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// FocusSessionClosedPayload is the body of an EventFocusSessionClosed event.
type FocusSessionClosedPayload struct {
	SessionID       uuid.UUID `json:"session_id"`
	TaskID          *string   `json:"task_id,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	Completed       bool      `json:"completed"`
	PointsEarned    int       `json:"points_earned"`
	TabSwitches     int       `json:"tab_switches"`
	EndedAt         time.Time `json:"ended_at"`
}

// PointsDepositedPayload is the body of an EventPointsDeposited event.
type PointsDepositedPayload struct {
	Points  int `json:"points"`
	Balance int `json:"balance"`
}
