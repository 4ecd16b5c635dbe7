package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noemisales1009/Round-Juju/internal/platform/apperr"
	"github.com/noemisales1009/Round-Juju/internal/platform/db"
)

type taskRepoPG struct {
	q     db.Querier
	retry db.RetryPolicy
}

func NewTaskRepoPG(q db.Querier, retry db.RetryPolicy) TaskRepository {
	return &taskRepoPG{q: q, retry: retry}
}

const taskCols = `id, patient_id, category_id, description, responsible, deadline,
	persisted_status, justification, completed_at, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.PatientID, &t.CategoryID, &t.Description, &t.Responsible, &t.Deadline,
		&t.PersistedStatus, &t.Justification, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	return &t, err
}

func (r *taskRepoPG) Save(ctx context.Context, t *Task) error {
	_, err := db.Retry(ctx, r.retry, func(ctx context.Context) (struct{}, error) {
		_, err := r.q.Exec(ctx, `
			INSERT INTO task (`+taskCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				persisted_status = EXCLUDED.persisted_status,
				justification = EXCLUDED.justification,
				completed_at = EXCLUDED.completed_at,
				updated_at = EXCLUDED.updated_at`,
			t.ID, t.PatientID, t.CategoryID, t.Description, t.Responsible, t.Deadline,
			t.PersistedStatus, t.Justification, t.CompletedAt, t.CreatedAt, t.UpdatedAt)
		return struct{}{}, err
	})
	return apperr.Persistence("save task", err)
}

func (r *taskRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := db.Retry(ctx, r.retry, func(ctx context.Context) (*Task, error) {
		t, err := scanTask(r.q.QueryRow(ctx, `SELECT `+taskCols+` FROM task WHERE id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return nil, apperr.Persistence("get task", err)
	}
	if t == nil {
		return nil, apperr.NotFound("task", id)
	}
	return t, nil
}

func (r *taskRepoPG) List(ctx context.Context) ([]*Task, error) {
	return r.query(ctx, "list tasks", `SELECT `+taskCols+` FROM task ORDER BY deadline, created_at`)
}

func (r *taskRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Task, error) {
	return r.query(ctx, "list patient tasks",
		`SELECT `+taskCols+` FROM task WHERE patient_id = $1 ORDER BY deadline, created_at`, patientID)
}

func (r *taskRepoPG) query(ctx context.Context, op, sql string, args ...interface{}) ([]*Task, error) {
	tasks, err := db.Retry(ctx, r.retry, func(ctx context.Context) ([]*Task, error) {
		rows, err := r.q.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []*Task
		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return tasks, nil
}
