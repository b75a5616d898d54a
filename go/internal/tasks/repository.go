// Package tasks gives the focus engine read-only access to the task list.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcdev12/fokus/go/internal/models"
	"github.com/mcdev12/fokus/go/internal/sqlutil"
)

const getTask = `
SELECT id, title, description, start_time, end_time, completed, completed_at, color
FROM tasks
WHERE id = $1`

const listTasks = `
SELECT id, title, description, start_time, end_time, completed, completed_at, color
FROM tasks
ORDER BY start_time, id`

type Repository struct {
	db sqlutil.DBTX
}

func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// GetTask returns the task with the given id, or an error wrapping
// ErrTaskNotFound.
func (r *Repository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := scanTask(r.db.QueryRowContext(ctx, getTask, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks returns every task ordered by start time.
func (r *Repository) ListTasks(ctx context.Context) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, listTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t           models.Task
		description sql.NullString
		color       sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Title, &description, &t.StartTime, &t.EndTime, &t.Completed, &completedAt, &color); err != nil {
		return nil, err
	}
	t.Description = sqlutil.FromSqlString(description, "")
	t.Color = sqlutil.FromSqlString(color, "")
	t.CompletedAt = sqlutil.FromSqlTime(completedAt)
	return &t, nil
}
