package task

import (
	"context"

	"github.com/google/uuid"
)

// TaskRepository stores tasks. GetByID returns an apperr.NotFoundError for an
// unknown ID; every other failure is an apperr.PersistenceError.
type TaskRepository interface {
	// Save inserts or updates t by ID. The deadline of an existing row is
	// never rewritten.
	Save(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	List(ctx context.Context) ([]*Task, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Task, error)
}
