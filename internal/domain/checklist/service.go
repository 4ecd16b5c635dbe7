package checklist

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/noemisales1009/Round-Juju/internal/platform/apperr"
	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
	"github.com/noemisales1009/Round-Juju/internal/platform/websocket"
)

type Service struct {
	answers   AnswerRepository
	catalog   *Catalog
	clock     clock.Clock
	publisher websocket.EventPublisher
}

func NewService(answers AnswerRepository, catalog *Catalog, clk clock.Clock) *Service {
	return &Service{answers: answers, catalog: catalog, clock: clk}
}

// SetPublisher attaches a publisher notified after every saved answer.
func (s *Service) SetPublisher(p websocket.EventPublisher) {
	s.publisher = p
}

func (s *Service) Catalog() *Catalog {
	return s.catalog
}

func (s *Service) Today() clock.Date {
	return s.clock.Today()
}

// SaveAnswer records answer for today's round. Answering the same question
// again the same day overwrites the previous value.
func (s *Service) SaveAnswer(ctx context.Context, patientID uuid.UUID, categoryID, questionID int, answer string) (*ChecklistAnswer, error) {
	if patientID == uuid.Nil {
		return nil, apperr.Validation("patient_id", "is required")
	}
	value, ok := ParseAnswer(answer)
	if !ok {
		return nil, apperr.Validation("answer", "must be one of sim, não, nao_se_aplica")
	}
	if !s.catalog.HasCategory(categoryID) {
		return nil, apperr.NotFound("category", categoryID)
	}
	q, ok := s.catalog.Question(questionID)
	if !ok {
		return nil, apperr.NotFound("question", questionID)
	}
	if q.CategoryID != categoryID {
		return nil, apperr.Validation("question_id", "does not belong to the category")
	}

	a := &ChecklistAnswer{
		Key: Key{
			PatientID:  patientID,
			CategoryID: categoryID,
			QuestionID: questionID,
			Day:        s.clock.Today(),
		},
		Answer:    value,
		UpdatedAt: s.clock.Now(),
	}
	if err := s.answers.Upsert(ctx, a); err != nil {
		return nil, err
	}
	s.publish(ctx, a)
	return a, nil
}

func (s *Service) AnswersFor(ctx context.Context, patientID uuid.UUID, day clock.Date) ([]ChecklistAnswer, error) {
	return s.answers.ListByPatientAndDay(ctx, patientID, day)
}

// CategoryAnswers maps each answered question of one category to its value,
// the state of a single checklist screen.
func (s *Service) CategoryAnswers(ctx context.Context, patientID uuid.UUID, categoryID int, day clock.Date) (map[int]Answer, error) {
	if !s.catalog.HasCategory(categoryID) {
		return nil, apperr.NotFound("category", categoryID)
	}
	answers, err := s.answers.ListByPatientAndDay(ctx, patientID, day)
	if err != nil {
		return nil, err
	}
	out := make(map[int]Answer)
	for _, a := range answers {
		if a.CategoryID == categoryID {
			out[a.QuestionID] = a.Answer
		}
	}
	return out, nil
}

func (s *Service) Completion(ctx context.Context, patientID uuid.UUID, day clock.Date) (*Completion, error) {
	answers, err := s.answers.ListByPatientAndDay(ctx, patientID, day)
	if err != nil {
		return nil, err
	}
	return s.completion(patientID, day, answers), nil
}

// WardCompletion returns the completion of every patient with at least one
// answer on day, ordered by patient ID.
func (s *Service) WardCompletion(ctx context.Context, day clock.Date) ([]*Completion, error) {
	answers, err := s.answers.ListByDay(ctx, day)
	if err != nil {
		return nil, err
	}

	byPatient := make(map[uuid.UUID][]ChecklistAnswer)
	for _, a := range answers {
		byPatient[a.PatientID] = append(byPatient[a.PatientID], a)
	}
	out := make([]*Completion, 0, len(byPatient))
	for patientID, pa := range byPatient {
		out = append(out, s.completion(patientID, day, pa))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PatientID.String() < out[j].PatientID.String()
	})
	return out, nil
}

func (s *Service) completion(patientID uuid.UUID, day clock.Date, answers []ChecklistAnswer) *Completion {
	counts := s.catalog.QuestionCounts()
	done := CompletedCategories(patientID, day, answers, counts)
	return &Completion{
		PatientID:           patientID,
		Day:                 day,
		CompletedCategories: done,
		TotalCategories:     len(counts),
		Progress:            Progress(len(done), len(counts)),
	}
}

func (s *Service) publish(ctx context.Context, a *ChecklistAnswer) {
	if s.publisher == nil {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	_ = s.publisher.Publish(ctx, websocket.Event{
		Type:      "checklist.answered",
		Topic:     websocket.TopicChecklist,
		Entity:    "checklist_answer",
		PatientID: a.PatientID.String(),
		Timestamp: a.UpdatedAt,
		Data:      data,
	})
}
