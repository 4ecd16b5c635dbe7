package checklist

import (
	"time"

	"github.com/google/uuid"

	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
)

// Answer is the value recorded for a checklist question. Every value counts
// towards completion.
type Answer string

const (
	AnswerSim         Answer = "sim"
	AnswerNao         Answer = "não"
	AnswerNaoSeAplica Answer = "nao_se_aplica"
)

var Answers = []Answer{AnswerSim, AnswerNao, AnswerNaoSeAplica}

func ParseAnswer(s string) (Answer, bool) {
	for _, a := range Answers {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// Key identifies one answer: at most one per question, patient and day.
type Key struct {
	PatientID  uuid.UUID  `json:"patient_id"`
	CategoryID int        `json:"category_id"`
	QuestionID int        `json:"question_id"`
	Day        clock.Date `json:"day"`
}

type ChecklistAnswer struct {
	Key
	Answer    Answer    `json:"answer"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Category struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Icon string `json:"icon,omitempty" yaml:"icon"`
}

type Question struct {
	ID         int    `json:"id" yaml:"id"`
	CategoryID int    `json:"category_id" yaml:"category_id"`
	Text       string `json:"text" yaml:"text"`
	Position   int    `json:"position" yaml:"position"`
}

// Completion is one patient's round progress for a day.
type Completion struct {
	PatientID           uuid.UUID  `json:"patient_id"`
	Day                 clock.Date `json:"day"`
	CompletedCategories []int      `json:"completed_categories"`
	TotalCategories     int        `json:"total_categories"`
	Progress            float64    `json:"progress"`
}
