package task

import (
	"time"

	"github.com/google/uuid"
)

// Status is both the persisted status column and the derived live status.
// Only alerta and concluido are written by this service; no_prazo is never
// persisted.
type Status string

const (
	StatusAlerta      Status = stateAlerta
	StatusNoPrazo     Status = stateNoPrazo
	StatusForaDoPrazo Status = stateForaDoPrazo
	StatusConcluido   Status = stateConcluido
)

// Statuses lists the four dashboard buckets in display order.
var Statuses = []Status{StatusAlerta, StatusNoPrazo, StatusForaDoPrazo, StatusConcluido}

func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Responsibles is the fixed set of role labels a task can be assigned to.
var Responsibles = []string{
	"Médico",
	"Enfermeiro",
	"Fisioterapeuta",
	"Farmacêutico",
	"Odontólogo",
	"Médico / Enfermeiro",
	"Médico / Fisioterapeuta",
}

func ValidResponsible(r string) bool {
	for _, v := range Responsibles {
		if v == r {
			return true
		}
	}
	return false
}

// Task is a follow-up raised during rounds for one patient. CategoryID is nil
// for general tasks not tied to a round category.
type Task struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	CategoryID      *int       `db:"category_id" json:"category_id,omitempty"`
	Description     string     `db:"description" json:"description"`
	Responsible     string     `db:"responsible" json:"responsible"`
	Deadline        time.Time  `db:"deadline" json:"deadline"`
	PersistedStatus Status     `db:"persisted_status" json:"persisted_status"`
	Justification   *string    `db:"justification" json:"justification,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// LiveTask is a task together with its status derived at a given instant.
type LiveTask struct {
	*Task
	LiveStatus Status `json:"live_status"`
}

func Live(t *Task, now time.Time) *LiveTask {
	return &LiveTask{Task: t, LiveStatus: DeriveLiveStatus(t, now)}
}

// CreateInput carries the fields of a new task. The deadline is given as an
// offset in hours from the moment of creation.
type CreateInput struct {
	PatientID           uuid.UUID `json:"patient_id"`
	CategoryID          *int      `json:"category_id,omitempty"`
	Description         string    `json:"description"`
	Responsible         string    `json:"responsible"`
	DeadlineOffsetHours int       `json:"deadline_offset_hours"`
}

// Summary backs the dashboard: bucket counts plus live alerts per category.
type Summary struct {
	At                 time.Time        `json:"at"`
	Counts             map[Status]int   `json:"counts"`
	AlertsByCategory   []CategoryAlerts `json:"alerts_by_category"`
	GeneralAlertsCount int              `json:"general_alerts"`
}

// CategoryAlerts counts live alerta tasks in one category. Percentage is
// relative to the category with the most alerts.
type CategoryAlerts struct {
	CategoryID int     `json:"category_id"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}
