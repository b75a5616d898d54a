package models

// TimerStatus defines the lifecycle state of the shared timer.
type TimerStatus string

const (
	TimerStatusIdle      TimerStatus = "idle"
	TimerStatusRunning   TimerStatus = "running"
	TimerStatusPaused    TimerStatus = "paused"
	TimerStatusCompleted TimerStatus = "completed"
)

// DefaultTimerID is the id of the singleton shared timer record.
const DefaultTimerID = "default"

// Valid reports whether s is one of the known statuses.
func (s TimerStatus) Valid() bool {
	switch s {
	case TimerStatusIdle, TimerStatusRunning, TimerStatusPaused, TimerStatusCompleted:
		return true
	}
	return false
}

// SharedTimer is the canonical timer record held by the remote store.
// Timestamps are Unix milliseconds; a nil pointer means "not set".
type SharedTimer struct {
	TimerID          string      `json:"timerId"`
	DurationMs       int64       `json:"durationMs"`
	StartedAt        *int64      `json:"startedAt"`
	PausedAt         *int64      `json:"pausedAt"`
	PausedDurationMs int64       `json:"pausedDuration"` // cumulative time spent paused
	Status           TimerStatus `json:"status"`
	UpdatedBy        string      `json:"updatedBy,omitempty"`
	LastUpdated      int64       `json:"lastUpdated"`
}

// NewIdleTimer returns the record a client assumes when the store holds none.
func NewIdleTimer(nowMs int64) SharedTimer {
	return SharedTimer{
		TimerID:     DefaultTimerID,
		Status:      TimerStatusIdle,
		LastUpdated: nowMs,
	}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (t SharedTimer) Clone() SharedTimer {
	c := t
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.PausedAt != nil {
		v := *t.PausedAt
		c.PausedAt = &v
	}
	return c
}

// Millis returns a pointer to ms, for the nullable timestamp fields.
func Millis(ms int64) *int64 {
	return &ms
}
