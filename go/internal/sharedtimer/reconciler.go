// Package sharedtimer keeps a countdown consistent across clients that only
// share a remote key-value store. The store holds the canonical record; each
// Reconciler mirrors it, projects a smooth remaining time locally, and
// proposes full replacement records when the user issues a command.
package sharedtimer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/models"
	"github.com/mcdev12/fokus/go/internal/timemath"
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
	AfterFunc(d time.Duration, f func()) clockwork.Timer
}

// SyncStatus describes the reconciler's link to the store.
type SyncStatus string

const (
	SyncConnecting   SyncStatus = "connecting"
	SyncSynced       SyncStatus = "synced"
	SyncDisconnected SyncStatus = "disconnected"
	SyncUnavailable  SyncStatus = "unavailable"
)

type Config struct {
	TimerKey           string        // store key of the canonical record
	ClientID           string        // written as updatedBy
	ProjectionInterval time.Duration // how often Run refreshes the remaining time
	EchoWindow         time.Duration // how long a write blocks further commands
	WriteTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		TimerKey:           "sharedTimer",
		ProjectionInterval: 100 * time.Millisecond,
		EchoWindow:         300 * time.Millisecond,
		WriteTimeout:       5 * time.Second,
	}
}

// Snapshot is a point-in-time view of the reconciler.
type Snapshot struct {
	Timer       models.SharedTimer `json:"timer"`
	RemainingMs int64              `json:"remainingMs"`
	Status      SyncStatus         `json:"syncStatus"`
	Synced      bool               `json:"isSynced"`
	Pending     bool               `json:"isUpdating"`
	LastError   string             `json:"error,omitempty"`
}

type Reconciler struct {
	store Store
	clock Clock
	cfg   Config

	mu        sync.Mutex
	timer     models.SharedTimer // local view, possibly optimistic
	confirmed models.SharedTimer // last record known to be in the store
	lastKey   comparisonKey
	hasKey    bool
	status    SyncStatus
	syncErr   error
	writeErr  error
	remaining int64

	inFlight    bool
	gen         uint64
	release     clockwork.Timer
	cancelWrite context.CancelFunc // ends the outstanding write with its echo window
	deferred *models.SharedTimer // newest notification dropped while in flight

	completeIssued bool
	completeKey    comparisonKey

	sub       Subscription
	observers []func(Snapshot)
}

// NewReconciler creates a reconciler over store. A nil or unavailable store
// leaves it permanently in SyncUnavailable.
func NewReconciler(store Store, clock Clock, cfg Config) *Reconciler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	now := clock.Now().UnixMilli()
	r := &Reconciler{
		store:     store,
		clock:     clock,
		cfg:       cfg,
		timer:     models.NewIdleTimer(now),
		confirmed: models.NewIdleTimer(now),
		status:    SyncConnecting,
	}
	if store == nil || !store.Available() {
		r.status = SyncUnavailable
		log.Warn().Str("timer_key", cfg.TimerKey).Msg("shared timer store unavailable")
	}
	return r
}

// OnChange registers fn to be called after every applied change. fn runs
// outside the reconciler's lock and must not block.
func (r *Reconciler) OnChange(fn func(Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Open subscribes to the store.
func (r *Reconciler) Open(ctx context.Context) error {
	r.mu.Lock()
	unavailable := r.status == SyncUnavailable
	r.mu.Unlock()
	if unavailable {
		return ErrStoreUnavailable
	}

	sub, err := r.store.Subscribe(ctx, r.cfg.TimerKey, r.handleNotification)
	if err != nil {
		r.mu.Lock()
		r.status = SyncDisconnected
		r.syncErr = fmt.Errorf("failed to sync with server: %w", err)
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("subscribe to %s: %w", r.cfg.TimerKey, err)
	}

	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()

	log.Info().Str("timer_key", r.cfg.TimerKey).Msg("subscribed to shared timer")
	return nil
}

// Close drops the subscription and any pending release timer.
func (r *Reconciler) Close() error {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	if r.cancelWrite != nil {
		r.cancelWrite()
		r.cancelWrite = nil
	}
	if r.release != nil {
		r.release.Stop()
		r.release = nil
	}
	r.mu.Unlock()

	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

// Run subscribes and refreshes the projection every ProjectionInterval until
// ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Error().Err(err).Msg("failed to unsubscribe from shared timer")
		}
	}()

	ticker := r.clock.NewTicker(r.cfg.ProjectionInterval)
	defer ticker.Stop()

	r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			r.Refresh(ctx)
		}
	}
}

func (r *Reconciler) handleNotification(n Notification) {
	if n.Err != nil {
		r.mu.Lock()
		r.status = SyncDisconnected
		r.syncErr = fmt.Errorf("failed to sync with server: %w", n.Err)
		r.mu.Unlock()
		log.Error().Err(n.Err).Str("timer_key", r.cfg.TimerKey).Msg("shared timer subscription error")
		r.notify()
		return
	}

	now := r.clock.Now().UnixMilli()
	incoming, err := Decode(n.Data, now)
	if err != nil {
		log.Warn().Err(err).Str("timer_key", r.cfg.TimerKey).Msg("malformed shared timer, treating as idle")
	}

	r.mu.Lock()
	wasSynced := r.status == SyncSynced
	r.status = SyncSynced
	r.syncErr = nil

	if r.inFlight {
		r.deferred = &incoming
		r.mu.Unlock()
		if !wasSynced {
			r.notify()
		}
		return
	}

	changed := r.applyLocked(incoming, now)
	r.mu.Unlock()

	if changed || !wasSynced {
		r.notify()
	}
}

// applyLocked adopts t as canonical unless it matches what is already
// applied. Must hold r.mu.
func (r *Reconciler) applyLocked(t models.SharedTimer, nowMs int64) bool {
	key := keyOf(t)
	if r.hasKey && key == r.lastKey {
		return false
	}
	r.timer = t
	r.confirmed = t.Clone()
	r.lastKey = key
	r.hasKey = true
	r.remaining = timemath.RemainingMs(t, nowMs)

	log.Debug().
		Str("timer_key", r.cfg.TimerKey).
		Str("status", string(t.Status)).
		Str("updated_by", t.UpdatedBy).
		Int64("remaining_ms", r.remaining).
		Msg("applied remote timer")
	return true
}

// Refresh recomputes the remaining time. The first refresh to see a running
// timer at zero proposes its completion, once per run.
func (r *Reconciler) Refresh(ctx context.Context) int64 {
	r.mu.Lock()
	now := r.clock.Now().UnixMilli()
	r.remaining = timemath.RemainingMs(r.timer, now)
	remaining := r.remaining

	complete := r.status != SyncUnavailable &&
		!r.inFlight &&
		r.timer.Status == models.TimerStatusRunning &&
		r.timer.StartedAt != nil &&
		remaining == 0 &&
		!(r.completeIssued && r.completeKey == r.lastKey)
	if complete {
		r.completeIssued = true
		r.completeKey = r.lastKey
	}
	r.mu.Unlock()

	if !complete {
		return remaining
	}

	log.Info().Str("timer_key", r.cfg.TimerKey).Msg("shared timer reached zero, completing")
	if err := r.propose(ctx, commandComplete, 0); err != nil {
		if errors.Is(err, ErrWriteInFlight) {
			r.mu.Lock()
			r.completeIssued = false
			r.mu.Unlock()
		}
		log.Warn().Err(err).Str("timer_key", r.cfg.TimerKey).Msg("failed to complete shared timer")
	}
	return remaining
}

// SetDuration sets the countdown length of a timer that is not running.
func (r *Reconciler) SetDuration(ctx context.Context, durationMs int64) error {
	return r.propose(ctx, CommandSetDuration, durationMs)
}

func (r *Reconciler) Start(ctx context.Context) error {
	return r.propose(ctx, CommandStart, 0)
}

func (r *Reconciler) Pause(ctx context.Context) error {
	return r.propose(ctx, CommandPause, 0)
}

func (r *Reconciler) Resume(ctx context.Context) error {
	return r.propose(ctx, CommandResume, 0)
}

// Reset returns the timer to idle, keeping its duration.
func (r *Reconciler) Reset(ctx context.Context) error {
	return r.propose(ctx, CommandReset, 0)
}

// Stop marks the timer completed.
func (r *Reconciler) Stop(ctx context.Context) error {
	return r.propose(ctx, CommandStop, 0)
}

// Do runs cmd by name. durationMs is only used by CommandSetDuration.
func (r *Reconciler) Do(ctx context.Context, cmd Command, durationMs int64) error {
	return r.propose(ctx, cmd, durationMs)
}

// propose applies cmd optimistically and writes the resulting record. Only
// one write is outstanding at a time: the in-flight flag is released by a
// timer armed before the write starts, and releasing it also cancels the
// write, so a write that has not landed by then never lands afterwards.
func (r *Reconciler) propose(ctx context.Context, cmd Command, durationMs int64) error {
	if r.store == nil || !r.store.Available() {
		r.mu.Lock()
		r.status = SyncUnavailable
		r.mu.Unlock()
		return ErrStoreUnavailable
	}

	r.mu.Lock()
	if r.status == SyncUnavailable {
		r.mu.Unlock()
		return ErrStoreUnavailable
	}
	if r.inFlight {
		r.mu.Unlock()
		return ErrWriteInFlight
	}

	now := r.clock.Now().UnixMilli()
	next, err := nextState(cmd, r.timer, now, durationMs)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	if next.TimerID == "" {
		next.TimerID = models.DefaultTimerID
	}
	next.UpdatedBy = r.cfg.ClientID
	next.LastUpdated = now

	data, err := Encode(next)
	if err != nil {
		r.mu.Unlock()
		return err
	}

	r.timer = next
	r.lastKey = keyOf(next)
	r.hasKey = true
	r.remaining = timemath.RemainingMs(next, now)
	r.inFlight = true
	r.deferred = nil
	r.gen++
	gen := r.gen
	r.release = r.clock.AfterFunc(r.cfg.EchoWindow, func() { r.releaseInFlight(gen) })
	wctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()
	r.cancelWrite = cancel
	r.mu.Unlock()
	r.notify()

	log.Debug().
		Str("timer_key", r.cfg.TimerKey).
		Str("command", string(cmd)).
		Str("status", string(next.Status)).
		Msg("proposing shared timer update")

	err = r.store.Write(wctx, r.cfg.TimerKey, data)

	r.mu.Lock()
	current := r.gen == gen
	if current {
		r.cancelWrite = nil
	}
	if err != nil {
		if current {
			// nothing newer was proposed, so the optimistic state is ours to undo
			r.writeErr = fmt.Errorf("failed to update timer: %w", err)
			r.timer = r.confirmed.Clone()
			r.lastKey = keyOf(r.timer)
			r.remaining = timemath.RemainingMs(r.timer, r.clock.Now().UnixMilli())
			r.endInFlightLocked()
		}
		r.mu.Unlock()
		r.notify()

		log.Error().
			Err(err).
			Str("timer_key", r.cfg.TimerKey).
			Str("command", string(cmd)).
			Bool("superseded", !current).
			Msg("shared timer write failed")
		return fmt.Errorf("write shared timer: %w", err)
	}

	if current {
		r.confirmed = next.Clone()
		r.writeErr = nil
	}
	r.mu.Unlock()
	return nil
}

// releaseInFlight ends the echo window of write gen, then applies the newest
// notification that arrived during it, if any.
func (r *Reconciler) releaseInFlight(gen uint64) {
	r.mu.Lock()
	if r.gen != gen || !r.inFlight {
		r.mu.Unlock()
		return
	}
	changed := r.endInFlightLocked()
	r.mu.Unlock()

	if changed {
		r.notify()
	}
}

// endInFlightLocked clears the in-flight flag and replays any deferred
// notification. Must hold r.mu.
func (r *Reconciler) endInFlightLocked() bool {
	r.inFlight = false
	if r.cancelWrite != nil {
		r.cancelWrite()
		r.cancelWrite = nil
	}
	if r.release != nil {
		r.release.Stop()
		r.release = nil
	}
	if r.deferred == nil {
		return false
	}
	d := *r.deferred
	r.deferred = nil
	return r.applyLocked(d, r.clock.Now().UnixMilli())
}

// Snapshot returns the current view with a freshly projected remaining time.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) snapshotLocked() Snapshot {
	s := Snapshot{
		Timer:       r.timer.Clone(),
		RemainingMs: timemath.RemainingMs(r.timer, r.clock.Now().UnixMilli()),
		Status:      r.status,
		Synced:      r.status == SyncSynced,
		Pending:     r.inFlight,
	}
	switch {
	case r.status == SyncUnavailable:
		s.LastError = ErrStoreUnavailable.Error()
	case r.writeErr != nil:
		s.LastError = r.writeErr.Error()
	case r.syncErr != nil:
		s.LastError = r.syncErr.Error()
	}
	return s
}

// LastError returns the most recent write or sync error, if any.
func (r *Reconciler) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == SyncUnavailable {
		return ErrStoreUnavailable
	}
	if r.writeErr != nil {
		return r.writeErr
	}
	return r.syncErr
}

func (r *Reconciler) notify() {
	r.mu.Lock()
	observers := append([]func(Snapshot){}, r.observers...)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
}
