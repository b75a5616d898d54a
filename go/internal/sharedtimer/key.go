package sharedtimer

import "github.com/mcdev12/fokus/go/internal/models"

// comparisonKey holds the fields that give a timer its meaning. Two records
// with the same key describe the same countdown, whoever wrote them and
// whenever. Unset timestamps are zero, which never occurs as a real value.
type comparisonKey struct {
	DurationMs       int64
	Status           models.TimerStatus
	StartedAt        int64
	PausedAt         int64
	PausedDurationMs int64
}

func keyOf(t models.SharedTimer) comparisonKey {
	k := comparisonKey{
		DurationMs:       t.DurationMs,
		Status:           t.Status,
		PausedDurationMs: t.PausedDurationMs,
	}
	if t.StartedAt != nil {
		k.StartedAt = *t.StartedAt
	}
	if t.PausedAt != nil {
		k.PausedAt = *t.PausedAt
	}
	return k
}
