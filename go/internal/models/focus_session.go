package models

import (
	"time"

	"github.com/google/uuid"
)

// FocusSession is one solo focus run. It is written once, when the run is
// stopped, and never updated afterwards.
type FocusSession struct {
	ID              uuid.UUID     `json:"id"`
	TaskID          *string       `json:"task_id,omitempty"`
	Task            *TaskSnapshot `json:"task,omitempty"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	DurationMinutes int           `json:"duration_minutes"` // elapsed, not target
	Completed       bool          `json:"completed"`
	PointsEarned    int           `json:"points_earned"`
	TabSwitches     int           `json:"tab_switches"`
}
