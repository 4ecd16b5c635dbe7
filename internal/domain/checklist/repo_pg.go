package checklist

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noemisales1009/Round-Juju/internal/platform/apperr"
	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
	"github.com/noemisales1009/Round-Juju/internal/platform/db"
)

type answerRepoPG struct {
	q     db.Querier
	retry db.RetryPolicy
}

func NewAnswerRepoPG(q db.Querier, retry db.RetryPolicy) AnswerRepository {
	return &answerRepoPG{q: q, retry: retry}
}

const answerCols = `patient_id, category_id, question_id, answered_on, answer, updated_at`

func (r *answerRepoPG) Upsert(ctx context.Context, a *ChecklistAnswer) error {
	_, err := db.Retry(ctx, r.retry, func(ctx context.Context) (struct{}, error) {
		_, err := r.q.Exec(ctx, `
			INSERT INTO checklist_answer (`+answerCols+`, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
			ON CONFLICT (patient_id, category_id, question_id, answered_on) DO UPDATE SET
				answer = EXCLUDED.answer,
				updated_at = EXCLUDED.updated_at`,
			a.PatientID, a.CategoryID, a.QuestionID, a.Day.Time(), string(a.Answer), a.UpdatedAt)
		return struct{}{}, err
	})
	return apperr.Persistence("upsert checklist answer", err)
}

func (r *answerRepoPG) ListByPatientAndDay(ctx context.Context, patientID uuid.UUID, day clock.Date) ([]ChecklistAnswer, error) {
	return r.query(ctx, "list patient answers", `SELECT `+answerCols+` FROM checklist_answer
		WHERE patient_id = $1 AND answered_on = $2
		ORDER BY category_id, question_id`, patientID, day.Time())
}

func (r *answerRepoPG) ListByDay(ctx context.Context, day clock.Date) ([]ChecklistAnswer, error) {
	return r.query(ctx, "list day answers", `SELECT `+answerCols+` FROM checklist_answer
		WHERE answered_on = $1
		ORDER BY patient_id, category_id, question_id`, day.Time())
}

func (r *answerRepoPG) query(ctx context.Context, op, sql string, args ...interface{}) ([]ChecklistAnswer, error) {
	answers, err := db.Retry(ctx, r.retry, func(ctx context.Context) ([]ChecklistAnswer, error) {
		rows, err := r.q.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []ChecklistAnswer
		for rows.Next() {
			var (
				a      ChecklistAnswer
				day    time.Time
				answer string
			)
			if err := rows.Scan(&a.PatientID, &a.CategoryID, &a.QuestionID, &day, &answer, &a.UpdatedAt); err != nil {
				return nil, err
			}
			a.Day = clock.DateOf(day, time.UTC)
			a.Answer = Answer(answer)
			out = append(out, a)
		}
		return out, rows.Err()
	})
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	return answers, nil
}
