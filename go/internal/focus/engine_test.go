package focus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mcdev12/fokus/go/internal/models"
	"github.com/mcdev12/fokus/go/internal/tasks"
)

type fakeLedger struct {
	mu       sync.Mutex
	deposits []int
	err      error
}

func (f *fakeLedger) Deposit(_ context.Context, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deposits = append(f.deposits, points)
	return f.err
}

func (f *fakeLedger) Deposits() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deposits...)
}

type fakeSessions struct {
	mu    sync.Mutex
	saved []models.FocusSession
	err   error
}

func (f *fakeSessions) SaveSession(_ context.Context, s *models.FocusSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *s)
	return f.err
}

type fakeTasks map[string]*models.Task

func (f fakeTasks) GetTask(_ context.Context, id string) (*models.Task, error) {
	if t, ok := f[id]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", tasks.ErrTaskNotFound, id)
}

type fixture struct {
	clock    *clockwork.FakeClock
	ledger   *fakeLedger
	sessions *fakeSessions
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC))
	ledger := &fakeLedger{}
	sessions := &fakeSessions{}
	taskLookup := fakeTasks{"t1": {ID: "t1", Title: "write report"}}
	return &fixture{
		clock:    clock,
		ledger:   ledger,
		sessions: sessions,
		engine:   NewEngine(clock, models.DefaultSettings(), ledger, taskLookup, sessions),
	}
}

func tickN(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.Tick()
	}
}

func TestStart_RejectsOutOfRange(t *testing.T) {
	f := newFixture(t)

	for _, minutes := range []int{0, -5, 1000} {
		err := f.engine.Start(context.Background(), minutes, nil)
		assert.ErrorIs(t, err, ErrInvalidDuration, "minutes=%d", minutes)
	}
	assert.False(t, f.engine.State().IsActive)
	assert.Equal(t, 0, f.engine.State().TargetSeconds)
}

func TestStart_Bounds(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 999, nil))
	assert.Equal(t, 999*60, f.engine.State().RemainingSeconds)

	f.engine.Reset()
	require.NoError(t, f.engine.Start(context.Background(), 1, nil))
	assert.Equal(t, 60, f.engine.State().TargetSeconds)
}

func TestStart_WhileActive(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 25, nil))
	assert.ErrorIs(t, f.engine.Start(context.Background(), 10, nil), ErrSessionActive)
	assert.Equal(t, 25*60, f.engine.State().TargetSeconds)
}

func TestStart_TaskLookup(t *testing.T) {
	f := newFixture(t)
	known := "t1"
	require.NoError(t, f.engine.Start(context.Background(), 5, &known))

	session, err := f.engine.Stop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, session.Task)
	assert.Equal(t, "write report", session.Task.Title)

	unknown := "nope"
	require.NoError(t, f.engine.Start(context.Background(), 5, &unknown))
	session, err = f.engine.Stop(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session.Task)
	require.NotNil(t, session.TaskID)
	assert.Equal(t, "nope", *session.TaskID)
}

func TestTick_RunsToCompletion(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		minutes := rapid.IntRange(1, MaxFocusMinutes).Draw(t, "minutes")
		e := NewEngine(clockwork.NewFakeClock(), models.DefaultSettings(), nil, nil, nil)
		if err := e.Start(context.Background(), minutes, nil); err != nil {
			t.Fatalf("start: %v", err)
		}

		tickN(e, minutes*60)
		s := e.State()
		if !s.IsComplete || s.RemainingSeconds != 0 {
			t.Fatalf("after %d ticks: complete=%v remaining=%d", minutes*60, s.IsComplete, s.RemainingSeconds)
		}
		if s.PointsEarned != minutes {
			t.Fatalf("points = %d, want %d", s.PointsEarned, minutes)
		}

		e.Tick()
		if got := e.State().RemainingSeconds; got != 0 {
			t.Fatalf("ticked past zero: %d", got)
		}
	})
}

func TestTick_PointsPerWholeMinute(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 25, nil))

	tickN(f.engine, 59)
	assert.Equal(t, 0, f.engine.State().PointsEarned)
	f.engine.Tick()
	assert.Equal(t, 1, f.engine.State().PointsEarned)
	tickN(f.engine, 120)
	assert.Equal(t, 3, f.engine.State().PointsEarned)
}

func TestPauseResume_PreservesRemaining(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 10, nil))

	tickN(f.engine, 30)
	require.True(t, f.engine.Pause())
	before := f.engine.State().RemainingSeconds

	tickN(f.engine, 45)
	assert.Equal(t, before, f.engine.State().RemainingSeconds)

	require.True(t, f.engine.Resume())
	assert.Equal(t, before, f.engine.State().RemainingSeconds)
	f.engine.Tick()
	assert.Equal(t, before-1, f.engine.State().RemainingSeconds)
}

func TestPauseResume_IllegalCallsIgnored(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.engine.Pause(), "pause while idle")
	assert.False(t, f.engine.Resume(), "resume while idle")

	require.NoError(t, f.engine.Start(context.Background(), 1, nil))
	assert.False(t, f.engine.Resume(), "resume while running")
	require.True(t, f.engine.Pause())
	assert.False(t, f.engine.Pause(), "pause while paused")
	require.True(t, f.engine.Resume())

	tickN(f.engine, 60)
	require.True(t, f.engine.State().IsComplete)
	assert.False(t, f.engine.Pause(), "pause after completion")
}

func TestVisibility_HiddenStopsTicking(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 5, nil))

	f.engine.SetVisibility(false)
	tickN(f.engine, 10)
	assert.Equal(t, 300, f.engine.State().RemainingSeconds)

	f.engine.SetVisibility(true)
	f.engine.Tick()
	assert.Equal(t, 299, f.engine.State().RemainingSeconds)
}

func TestVisibility_PenaltyDebounce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 30, nil))
	tickN(f.engine, 20*60)
	require.Equal(t, 20, f.engine.State().PointsEarned)

	assert.True(t, f.engine.SetVisibility(false))
	f.engine.SetVisibility(true)
	f.clock.Advance(500 * time.Millisecond)
	assert.False(t, f.engine.SetVisibility(false))

	s := f.engine.State()
	assert.Equal(t, 1, s.TabSwitches)
	assert.Equal(t, 15, s.PointsEarned)

	f.engine.SetVisibility(true)
	f.clock.Advance(5 * time.Second)
	assert.True(t, f.engine.SetVisibility(false))

	s = f.engine.State()
	assert.Equal(t, 2, s.TabSwitches)
	assert.Equal(t, 10, s.PointsEarned)
}

func TestVisibility_PenaltyClampsAtZero(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 30, nil))
	tickN(f.engine, 3*60)

	require.True(t, f.engine.SetVisibility(false))
	assert.Equal(t, 0, f.engine.State().PointsEarned)
	assert.Equal(t, 1, f.engine.State().TabSwitches)
}

func TestVisibility_PenaltySurvivesRecompute(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 30, nil))
	tickN(f.engine, 10*60)

	require.True(t, f.engine.SetVisibility(false))
	f.engine.SetVisibility(true)
	require.Equal(t, 5, f.engine.State().PointsEarned)

	f.engine.Tick()
	assert.Equal(t, 5, f.engine.State().PointsEarned)
	tickN(f.engine, 59)
	assert.Equal(t, 6, f.engine.State().PointsEarned)
}

func TestVisibility_NoPenaltyWhenPausedOrComplete(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.engine.SetVisibility(false), "idle")
	f.engine.SetVisibility(true)

	require.NoError(t, f.engine.Start(context.Background(), 1, nil))
	require.True(t, f.engine.Pause())
	assert.False(t, f.engine.SetVisibility(false), "paused")
	f.engine.SetVisibility(true)
	require.True(t, f.engine.Resume())

	tickN(f.engine, 60)
	require.True(t, f.engine.State().IsComplete)
	assert.False(t, f.engine.SetVisibility(false), "complete")
	assert.Equal(t, 0, f.engine.State().TabSwitches)
}

// Points only go down on a penalty and never below zero.
func TestPointsMonotonicExceptPenalty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := clockwork.NewFakeClock()
		settings := models.DefaultSettings()
		settings.TabSwitchPenalty = rapid.IntRange(0, 20).Draw(t, "penalty")
		settings.RewardPointsPerMinute = rapid.IntRange(1, 5).Draw(t, "rate")
		e := NewEngine(clock, settings, nil, nil, nil)
		if err := e.Start(context.Background(), 30, nil); err != nil {
			t.Fatalf("start: %v", err)
		}

		prev := 0
		steps := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 300).Draw(t, "steps")
		for _, step := range steps {
			penalized := false
			switch step {
			case 0:
				tickN(e, 37)
			case 1:
				penalized = e.SetVisibility(false)
			case 2:
				e.SetVisibility(true)
			case 3:
				clock.Advance(time.Duration(rapid.IntRange(0, 4000).Draw(t, "ms")) * time.Millisecond)
			}

			points := e.State().PointsEarned
			if points < 0 {
				t.Fatalf("negative points %d", points)
			}
			if points < prev && !penalized {
				t.Fatalf("points fell from %d to %d without a penalty", prev, points)
			}
			prev = points
		}
	})
}

func TestStop_AfterCompletionAwardsOnce(t *testing.T) {
	f := newFixture(t)
	var completions []State
	f.engine.OnComplete(func(s State) { completions = append(completions, s) })

	require.NoError(t, f.engine.Start(context.Background(), 2, nil))
	tickN(f.engine, 2*60+5)

	require.Len(t, completions, 1)
	assert.True(t, completions[0].IsComplete)
	assert.Equal(t, []int{2}, f.ledger.Deposits())

	session, err := f.engine.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, session.Completed)
	assert.Equal(t, 2, session.PointsEarned)
	assert.Equal(t, 2, session.DurationMinutes)
	assert.Equal(t, []int{2}, f.ledger.Deposits(), "stop must not award again")
	assert.Len(t, f.sessions.saved, 1)
	assert.False(t, f.engine.State().IsActive)
}

func TestStop_BeforeCompletion(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 25, nil))
	tickN(f.engine, 7*60+30)
	f.clock.Advance(7*time.Minute + 30*time.Second)

	session, err := f.engine.Stop(context.Background())
	require.NoError(t, err)

	assert.False(t, session.Completed)
	assert.Equal(t, 7, session.DurationMinutes)
	assert.Equal(t, 7, session.PointsEarned)
	require.NotNil(t, session.EndTime)
	assert.Equal(t, 7*time.Minute+30*time.Second, session.EndTime.Sub(session.StartTime))
	assert.Equal(t, []int{7}, f.ledger.Deposits())
	require.Len(t, f.sessions.saved, 1)
	assert.Equal(t, session.ID, f.sessions.saved[0].ID)
}

func TestStop_NothingEarned(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 25, nil))
	tickN(f.engine, 30)

	_, err := f.engine.Stop(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.ledger.Deposits())
	assert.Len(t, f.sessions.saved, 1)
}

func TestStop_Idle(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Empty(t, f.sessions.saved)
}

func TestStop_SaveFailureStillIdles(t *testing.T) {
	f := newFixture(t)
	f.sessions.err = errors.New("connection reset")
	require.NoError(t, f.engine.Start(context.Background(), 25, nil))
	tickN(f.engine, 60)

	_, err := f.engine.Stop(context.Background())
	require.Error(t, err)
	assert.False(t, f.engine.State().IsActive)
	assert.Equal(t, []int{1}, f.ledger.Deposits())
}

func TestStop_LedgerFailureIsNotAnError(t *testing.T) {
	f := newFixture(t)
	f.ledger.err = errors.New("ledger down")
	require.NoError(t, f.engine.Start(context.Background(), 25, nil))
	tickN(f.engine, 60)

	_, err := f.engine.Stop(context.Background())
	assert.NoError(t, err)
}

func TestReset_DiscardsSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 25, nil))
	tickN(f.engine, 5*60)

	f.engine.Reset()
	s := f.engine.State()
	assert.False(t, s.IsActive)
	assert.Nil(t, s.SessionID)
	assert.Equal(t, 0, s.PointsEarned)
	assert.Empty(t, f.sessions.saved)
	assert.Empty(t, f.ledger.Deposits())

	_, err := f.engine.Stop(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRun_TicksOffClock(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Start(context.Background(), 1, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.engine.Run(ctx)
		close(done)
	}()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(TickInterval)
	require.Eventually(t, func() bool {
		return f.engine.State().RemainingSeconds == 59
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancel")
	}
}
