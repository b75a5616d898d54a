package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/fokus/go/internal/sharedtimer"
	"github.com/mcdev12/fokus/go/internal/timemath"
)

// Event is the envelope of every message pushed to websocket clients.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type EventType string

const (
	EventTypeTimerState         EventType = "TimerState"
	EventTypeTimerTick          EventType = "TimerTick"
	EventTypeFocusSessionClosed EventType = "FocusSessionClosed"
	EventTypePointsDeposited    EventType = "PointsDeposited"
)

// TimerTickPayload is the periodic projection. Clients interpolate between
// ticks from remaining_ms.
type TimerTickPayload struct {
	RemainingMs int64     `json:"remaining_ms"`
	Display     string    `json:"display"`
	Status      string    `json:"status"`
	TickedAt    time.Time `json:"ticked_at"`
}

func newEvent(eventType EventType, payload any, now time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: now,
		Data:      data,
	}, nil
}

func timerStateEvent(snap sharedtimer.Snapshot, now time.Time) (*Event, error) {
	return newEvent(EventTypeTimerState, snap, now)
}

func timerTickEvent(snap sharedtimer.Snapshot, now time.Time) (*Event, error) {
	return newEvent(EventTypeTimerTick, TimerTickPayload{
		RemainingMs: snap.RemainingMs,
		Display:     timemath.FormatClock(time.Duration(snap.RemainingMs) * time.Millisecond),
		Status:      string(snap.Timer.Status),
		TickedAt:    now,
	}, now)
}
