package checklist

import (
	"sort"

	"github.com/google/uuid"

	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
)

// CompletedCategories returns, in ascending order, the categories whose
// every question has an answer for patientID on day. Only answers for that
// patient and day are counted, each question once, whatever its value.
// Categories missing from counts are ignored; a category is complete when
// its distinct answered questions reach counts[category].
func CompletedCategories(patientID uuid.UUID, day clock.Date, answers []ChecklistAnswer, counts map[int]int) []int {
	answered := make(map[int]map[int]struct{})
	for _, a := range answers {
		if a.PatientID != patientID || a.Day != day {
			continue
		}
		if _, known := counts[a.CategoryID]; !known {
			continue
		}
		qs := answered[a.CategoryID]
		if qs == nil {
			qs = make(map[int]struct{})
			answered[a.CategoryID] = qs
		}
		qs[a.QuestionID] = struct{}{}
	}

	completed := make([]int, 0, len(answered))
	for categoryID, qs := range answered {
		if len(qs) >= counts[categoryID] {
			completed = append(completed, categoryID)
		}
	}
	sort.Ints(completed)
	return completed
}

// Progress is the share of categories completed, in [0, 1].
func Progress(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	return float64(completed) / float64(total)
}
