// Package focus runs solo focus sessions: a one-second countdown that only
// advances while the user is looking at it, with points for every whole
// minute and a penalty for each time they look away.
package focus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/models"
	"github.com/mcdev12/fokus/go/internal/tasks"
	"github.com/mcdev12/fokus/go/internal/timemath"
)

// Engine owns at most one focus session at a time. All methods are safe for
// concurrent use; collaborator calls are never made while holding the lock.
type Engine struct {
	clock    Clock
	settings models.Settings
	ledger   Ledger
	tasks    TaskLookup
	sessions SessionRepository

	mu         sync.Mutex
	onComplete func(State)

	session     *models.FocusSession
	active      bool
	paused      bool
	visible     bool
	complete    bool
	awarded     bool
	target      int // seconds
	remaining   int // seconds
	points      int
	penaltyDebt int // points actually taken away by penalties this session
	tabSwitches int
	lastPenalty time.Time
}

// NewEngine creates an idle engine. Any collaborator may be nil, in which
// case that side effect is skipped.
func NewEngine(clock Clock, settings models.Settings, ledger Ledger, taskLookup TaskLookup, sessions SessionRepository) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		clock:    clock,
		settings: settings,
		ledger:   ledger,
		tasks:    taskLookup,
		sessions: sessions,
		visible:  true,
	}
}

// OnComplete registers fn to be called once per session when the countdown
// reaches zero. It replaces any earlier observer.
func (e *Engine) OnComplete(fn func(State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

// Start begins a new session of targetMinutes. taskID is optional; an unknown
// task leaves the session without one.
func (e *Engine) Start(ctx context.Context, targetMinutes int, taskID *string) error {
	if targetMinutes <= 0 || targetMinutes > MaxFocusMinutes {
		return fmt.Errorf("%w: got %d", ErrInvalidDuration, targetMinutes)
	}

	e.mu.Lock()
	active := e.active
	e.mu.Unlock()
	if active {
		return ErrSessionActive
	}

	var snapshot *models.TaskSnapshot
	if taskID != nil && e.tasks != nil {
		task, err := e.tasks.GetTask(ctx, *taskID)
		switch {
		case err == nil && task != nil:
			snapshot = task.Snapshot()
		case err == nil:
		case errors.Is(err, tasks.ErrTaskNotFound):
			log.Debug().Str("task_id", *taskID).Msg("focus task not found, starting without task")
		default:
			log.Warn().Err(err).Str("task_id", *taskID).Msg("task lookup failed, starting without task")
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// another Start may have won while the lookup ran
	if e.active {
		return ErrSessionActive
	}

	session := &models.FocusSession{
		ID:        uuid.New(),
		StartTime: e.clock.Now(),
	}
	if taskID != nil {
		id := *taskID
		session.TaskID = &id
	}
	session.Task = snapshot

	e.session = session
	e.active = true
	e.paused = false
	e.complete = false
	e.awarded = false
	e.target = targetMinutes * 60
	e.remaining = e.target
	e.points = 0
	e.penaltyDebt = 0
	e.tabSwitches = 0
	e.lastPenalty = time.Time{}

	log.Info().
		Str("session_id", session.ID.String()).
		Int("target_minutes", targetMinutes).
		Msg("focus session started")

	return nil
}

// Tick advances the countdown by one second. It does nothing unless a
// session is running, visible and not yet complete.
func (e *Engine) Tick() {
	e.mu.Lock()
	if !e.active || e.paused || !e.visible || e.complete {
		e.mu.Unlock()
		return
	}

	e.remaining--
	e.recomputePoints()

	if e.remaining > 0 {
		e.mu.Unlock()
		return
	}

	e.remaining = 0
	e.complete = true
	e.awarded = true
	points := e.points
	sessionID := e.session.ID
	observer := e.onComplete
	state := e.stateLocked()
	e.mu.Unlock()

	log.Info().
		Str("session_id", sessionID.String()).
		Int("points", points).
		Msg("focus session complete")

	if observer != nil {
		observer(state)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	e.deposit(ctx, sessionID, points)
}

// recomputePoints derives points from whole elapsed minutes, less what
// penalties have already taken this session. Must hold e.mu.
func (e *Engine) recomputePoints() {
	minutes := timemath.ElapsedMinutes(e.target, e.remaining)
	points := timemath.Points(minutes, e.settings.RewardPointsPerMinute) - e.penaltyDebt
	if points < 0 {
		points = 0
	}
	e.points = points
}

// SetVisibility records whether the user can see the session. Going hidden
// while running costs a penalty, at most once per PenaltyDebounce. It
// reports whether a penalty was applied.
func (e *Engine) SetVisibility(visible bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.visible = visible
	if visible || !e.active || e.paused || e.complete {
		return false
	}

	now := e.clock.Now()
	if !e.lastPenalty.IsZero() && now.Sub(e.lastPenalty) <= e.settings.PenaltyDebounce {
		return false
	}

	deducted := e.settings.TabSwitchPenalty
	if deducted > e.points {
		deducted = e.points
	}
	e.tabSwitches++
	e.points -= deducted
	e.penaltyDebt += deducted
	e.lastPenalty = now

	log.Debug().
		Str("session_id", e.session.ID.String()).
		Int("tab_switches", e.tabSwitches).
		Int("points", e.points).
		Msg("tab switch penalty applied")

	return true
}

// Pause freezes a running session. It reports false when there is nothing
// to pause.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active || e.paused || e.complete {
		return false
	}
	e.paused = true
	return true
}

// Resume continues a paused session. It reports false when there is nothing
// to resume.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active || !e.paused || e.complete {
		return false
	}
	e.paused = false
	return true
}

// Stop closes the current session: it is persisted once and its points are
// deposited unless completion already did so. The engine is idle afterwards
// even when persisting fails.
func (e *Engine) Stop(ctx context.Context) (*models.FocusSession, error) {
	e.mu.Lock()
	if !e.active || e.session == nil {
		e.mu.Unlock()
		return nil, ErrNoSession
	}

	end := e.clock.Now()
	session := *e.session
	session.EndTime = &end
	session.DurationMinutes = timemath.ElapsedMinutes(e.target, e.remaining)
	session.Completed = e.complete
	session.PointsEarned = e.points
	session.TabSwitches = e.tabSwitches

	award := !e.awarded
	e.clear()
	e.mu.Unlock()

	log.Info().
		Str("session_id", session.ID.String()).
		Int("duration_minutes", session.DurationMinutes).
		Bool("completed", session.Completed).
		Int("points", session.PointsEarned).
		Msg("focus session stopped")

	var saveErr error
	if e.sessions != nil {
		if err := e.sessions.SaveSession(ctx, &session); err != nil {
			saveErr = fmt.Errorf("failed to save focus session: %w", err)
		}
	}

	if award {
		e.deposit(ctx, session.ID, session.PointsEarned)
	}

	return &session, saveErr
}

// Reset abandons the current session without saving or awarding anything.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		log.Info().Str("session_id", e.session.ID.String()).Msg("focus session discarded")
	}
	e.clear()
}

// clear returns the engine to idle. Visibility is kept, it belongs to the
// viewer rather than the session. Must hold e.mu.
func (e *Engine) clear() {
	e.session = nil
	e.active = false
	e.paused = false
	e.complete = false
	e.awarded = false
	e.target = 0
	e.remaining = 0
	e.points = 0
	e.penaltyDebt = 0
	e.tabSwitches = 0
	e.lastPenalty = time.Time{}
}

// State returns the current projection.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	s := State{
		IsActive:         e.active,
		IsPaused:         e.paused,
		IsVisible:        e.visible,
		IsComplete:       e.complete,
		RemainingSeconds: e.remaining,
		TargetSeconds:    e.target,
		PointsEarned:     e.points,
		TabSwitches:      e.tabSwitches,
	}
	if e.session != nil {
		id := e.session.ID
		s.SessionID = &id
		if e.session.TaskID != nil {
			taskID := *e.session.TaskID
			s.TaskID = &taskID
		}
	}
	return s
}

// Run ticks the engine once per TickInterval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := e.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.Tick()
		}
	}
}

func (e *Engine) deposit(ctx context.Context, sessionID uuid.UUID, points int) {
	if e.ledger == nil || points <= 0 {
		return
	}
	if err := e.ledger.Deposit(ctx, points); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Int("points", points).
			Msg("failed to deposit focus points")
	}
}
