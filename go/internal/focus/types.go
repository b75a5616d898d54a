package focus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/fokus/go/internal/models"
)

const (
	// MaxFocusMinutes is the largest target a session may be started with.
	MaxFocusMinutes = 999

	// TickInterval is how often a running session counts down.
	TickInterval = time.Second

	// ledgerTimeout bounds the fire-and-forget deposit on completion.
	ledgerTimeout = 5 * time.Second
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Ledger accepts point deposits for finished sessions.
type Ledger interface {
	Deposit(ctx context.Context, points int) error
}

// TaskLookup resolves the task a session is started for. Implementations
// return an error wrapping tasks.ErrTaskNotFound for unknown ids.
type TaskLookup interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
}

// SessionRepository persists closed sessions.
type SessionRepository interface {
	SaveSession(ctx context.Context, session *models.FocusSession) error
}

// State is the derived view of an engine. It is recomputed on every change
// and never persisted.
type State struct {
	SessionID        *uuid.UUID `json:"session_id,omitempty"`
	TaskID           *string    `json:"task_id,omitempty"`
	IsActive         bool       `json:"is_active"`
	IsPaused         bool       `json:"is_paused"`
	IsVisible        bool       `json:"is_visible"`
	IsComplete       bool       `json:"is_complete"`
	RemainingSeconds int        `json:"remaining_seconds"`
	TargetSeconds    int        `json:"target_seconds"`
	PointsEarned     int        `json:"points_earned"`
	TabSwitches      int        `json:"tab_switches"`
}
