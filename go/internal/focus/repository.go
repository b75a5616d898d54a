package focus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/fokus/go/internal/models"
	"github.com/mcdev12/fokus/go/internal/outbox"
	"github.com/mcdev12/fokus/go/internal/sqlutil"
)

const insertSession = `
INSERT INTO focus_sessions (
    id, task_id, task, start_time, end_time,
    duration_minutes, completed, points_earned, tab_switches
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// sessionQueries binds the session insert and the outbox to one transaction.
type sessionQueries struct {
	db     sqlutil.DBTX
	outbox *outbox.Repository
}

func newSessionQueries(tx *sql.Tx) *sessionQueries {
	return &sessionQueries{db: tx, outbox: outbox.NewRepository(tx)}
}

// Repository persists closed focus sessions to Postgres and records a
// FocusSessionClosed event in the same transaction.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveSession(ctx context.Context, s *models.FocusSession) error {
	task, err := sqlutil.ToNullRawMessage(s.Task)
	if err != nil {
		return fmt.Errorf("failed to encode task snapshot: %w", err)
	}

	payload, err := json.Marshal(closedPayload(s))
	if err != nil {
		return fmt.Errorf("failed to encode session event: %w", err)
	}

	return sqlutil.Run(ctx, r.db, newSessionQueries, func(q *sessionQueries) error {
		_, err := q.db.ExecContext(ctx, insertSession,
			s.ID,
			sqlutil.ToSqlString(s.TaskID),
			task,
			s.StartTime,
			sqlutil.ToSqlTime(s.EndTime),
			s.DurationMinutes,
			s.Completed,
			s.PointsEarned,
			s.TabSwitches,
		)
		if err != nil {
			return fmt.Errorf("failed to insert focus session: %w", err)
		}

		if _, err := q.outbox.InsertEvent(ctx, s.ID.String(), outbox.EventFocusSessionClosed, payload); err != nil {
			return err
		}
		return nil
	})
}

func closedPayload(s *models.FocusSession) outbox.FocusSessionClosedPayload {
	p := outbox.FocusSessionClosedPayload{
		SessionID:       s.ID,
		TaskID:          s.TaskID,
		DurationMinutes: s.DurationMinutes,
		Completed:       s.Completed,
		PointsEarned:    s.PointsEarned,
		TabSwitches:     s.TabSwitches,
	}
	if s.EndTime != nil {
		p.EndedAt = *s.EndTime
	}
	return p
}
