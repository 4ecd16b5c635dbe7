package checklist

import (
	"context"

	"github.com/google/uuid"

	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
)

// AnswerRepository stores checklist answers one row per Key. Failures are
// apperr.PersistenceError.
type AnswerRepository interface {
	// Upsert writes a.Answer for a.Key, overwriting any previous value for
	// that exact key. Other keys of the same patient and day are untouched.
	Upsert(ctx context.Context, a *ChecklistAnswer) error
	ListByPatientAndDay(ctx context.Context, patientID uuid.UUID, day clock.Date) ([]ChecklistAnswer, error)
	ListByDay(ctx context.Context, day clock.Date) ([]ChecklistAnswer, error)
}
