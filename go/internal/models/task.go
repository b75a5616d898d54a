package models

import "time"

// Task is a scheduled task a focus session may be associated with.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	StartTime   string     `json:"start_time"` // HH:mm
	EndTime     string     `json:"end_time"`   // HH:mm
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Color       string     `json:"color,omitempty"`
}

// TaskSnapshot is the part of a task copied onto a focus session when it starts.
type TaskSnapshot struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Snapshot returns the session-facing copy of t.
func (t *Task) Snapshot() *TaskSnapshot {
	return &TaskSnapshot{ID: t.ID, Title: t.Title}
}
