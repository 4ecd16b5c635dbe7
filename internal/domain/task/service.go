package task

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noemisales1009/Round-Juju/internal/platform/apperr"
	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
	"github.com/noemisales1009/Round-Juju/internal/platform/websocket"
)

// CategoryChecker reports whether a round category exists.
type CategoryChecker interface {
	HasCategory(id int) bool
}

type Service struct {
	tasks      TaskRepository
	categories CategoryChecker
	clock      clock.Clock
	publisher  websocket.EventPublisher
}

// NewService builds the task lifecycle service. categories may be nil, in
// which case category IDs are not checked.
func NewService(tasks TaskRepository, categories CategoryChecker, clk clock.Clock) *Service {
	return &Service{tasks: tasks, categories: categories, clock: clk}
}

// SetPublisher attaches a publisher notified after every successful write.
func (s *Service) SetPublisher(p websocket.EventPublisher) {
	s.publisher = p
}

func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*LiveTask, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperr.Validation("description", "is required")
	}
	if strings.TrimSpace(in.Responsible) == "" {
		return nil, apperr.Validation("responsible", "is required")
	}
	if !ValidResponsible(in.Responsible) {
		return nil, apperr.Validation("responsible", "must be one of "+strings.Join(Responsibles, ", "))
	}
	if in.PatientID == uuid.Nil {
		return nil, apperr.Validation("patient_id", "is required")
	}
	if in.DeadlineOffsetHours <= 0 {
		return nil, apperr.Validation("deadline_offset_hours", "must be positive")
	}
	if in.CategoryID != nil && s.categories != nil && !s.categories.HasCategory(*in.CategoryID) {
		return nil, apperr.NotFound("category", *in.CategoryID)
	}

	now := s.clock.Now()
	t := &Task{
		ID:              uuid.New(),
		PatientID:       in.PatientID,
		CategoryID:      in.CategoryID,
		Description:     description,
		Responsible:     in.Responsible,
		Deadline:        now.Add(time.Duration(in.DeadlineOffsetHours) * time.Hour),
		PersistedStatus: StatusAlerta,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, err
	}

	lt := Live(t, now)
	s.publish(ctx, "task.created", lt)
	return lt, nil
}

// Complete marks the task concluido. Completing an already completed task
// succeeds without writing.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*LiveTask, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if t.PersistedStatus == StatusConcluido {
		return Live(t, now), nil
	}

	to, err := Transition(DeriveLiveStatus(t, now), EventComplete)
	if err != nil {
		return nil, err
	}
	t.PersistedStatus = to
	t.CompletedAt = &now
	t.UpdatedAt = now
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, err
	}

	lt := Live(t, now)
	s.publish(ctx, "task.completed", lt)
	return lt, nil
}

// Justify records why a task is late. It is accepted at any live status and
// leaves the persisted status untouched.
func (s *Service) Justify(ctx context.Context, id uuid.UUID, text string) (*LiveTask, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("justification", "is required")
	}

	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	t.Justification = &text
	t.UpdatedAt = now
	if err := s.tasks.Save(ctx, t); err != nil {
		return nil, err
	}

	lt := Live(t, now)
	s.publish(ctx, "task.justified", lt)
	return lt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*LiveTask, error) {
	t, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return Live(t, s.clock.Now()), nil
}

// ListByLiveStatus returns the tasks whose status derived at now is status.
func (s *Service) ListByLiveStatus(ctx context.Context, status Status, now time.Time) ([]*LiveTask, error) {
	if _, ok := ParseStatus(string(status)); !ok {
		return nil, apperr.Validation("status", "unknown status "+string(status))
	}
	all, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*LiveTask, 0, len(all))
	for _, t := range all {
		if lt := Live(t, now); lt.LiveStatus == status {
			out = append(out, lt)
		}
	}
	return out, nil
}

// List returns every task with its live status at now.
func (s *Service) List(ctx context.Context, now time.Time) ([]*LiveTask, error) {
	all, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	return liveAll(all, now), nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, now time.Time) ([]*LiveTask, error) {
	all, err := s.tasks.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return liveAll(all, now), nil
}

func liveAll(tasks []*Task, now time.Time) []*LiveTask {
	out := make([]*LiveTask, len(tasks))
	for i, t := range tasks {
		out[i] = Live(t, now)
	}
	return out
}

// Summary counts tasks per live status at now and breaks live alerts down by
// category, largest first.
func (s *Service) Summary(ctx context.Context, now time.Time) (*Summary, error) {
	all, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}

	sum := &Summary{At: now, Counts: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		sum.Counts[st] = 0
	}

	byCategory := make(map[int]int)
	for _, t := range all {
		live := DeriveLiveStatus(t, now)
		sum.Counts[live]++
		if live != StatusAlerta {
			continue
		}
		if t.CategoryID == nil {
			sum.GeneralAlertsCount++
			continue
		}
		byCategory[*t.CategoryID]++
	}

	largest := 0
	for _, n := range byCategory {
		if n > largest {
			largest = n
		}
	}
	sum.AlertsByCategory = make([]CategoryAlerts, 0, len(byCategory))
	for id, n := range byCategory {
		sum.AlertsByCategory = append(sum.AlertsByCategory, CategoryAlerts{
			CategoryID: id,
			Count:      n,
			Percentage: float64(n) / float64(largest) * 100,
		})
	}
	sort.Slice(sum.AlertsByCategory, func(i, j int) bool {
		a, b := sum.AlertsByCategory[i], sum.AlertsByCategory[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.CategoryID < b.CategoryID
	})
	return sum, nil
}

// publish is best effort: the write already succeeded.
func (s *Service) publish(ctx context.Context, eventType string, lt *LiveTask) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(lt)
	if err != nil {
		return
	}
	_ = s.publisher.Publish(ctx, websocket.Event{
		Type:      eventType,
		Topic:     websocket.TopicTasks,
		Entity:    "task",
		EntityID:  lt.ID.String(),
		PatientID: lt.PatientID.String(),
		Timestamp: s.clock.Now(),
		Data:      data,
	})
}
