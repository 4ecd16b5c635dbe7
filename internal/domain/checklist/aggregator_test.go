package checklist

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
)

var (
	dayD    = clock.Date{Year: 2025, Month: 3, Day: 10}
	patient = uuid.MustParse("6a1f4c2e-0b7d-4e59-9c1a-2f0e8d3b5a71")
)

func answer(p uuid.UUID, day clock.Date, categoryID, questionID int, v Answer) ChecklistAnswer {
	return ChecklistAnswer{
		Key:    Key{PatientID: p, CategoryID: categoryID, QuestionID: questionID, Day: day},
		Answer: v,
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCompletedCategories(t *testing.T) {
	counts := map[int]int{1: 2, 2: 2, 3: 1}
	other := uuid.New()

	tests := []struct {
		name    string
		answers []ChecklistAnswer
		want    []int
	}{
		{"no answers", nil, []int{}},
		{
			"partial category",
			[]ChecklistAnswer{answer(patient, dayD, 2, 9, AnswerSim)},
			[]int{},
		},
		{
			"every answer value counts",
			[]ChecklistAnswer{
				answer(patient, dayD, 2, 9, AnswerNao),
				answer(patient, dayD, 2, 10, AnswerNaoSeAplica),
				answer(patient, dayD, 3, 11, AnswerSim),
			},
			[]int{2, 3},
		},
		{
			"duplicate question counted once",
			[]ChecklistAnswer{
				answer(patient, dayD, 2, 9, AnswerSim),
				answer(patient, dayD, 2, 9, AnswerNao),
			},
			[]int{},
		},
		{
			"other day and other patient ignored",
			[]ChecklistAnswer{
				answer(patient, dayD, 2, 9, AnswerSim),
				answer(patient, dayD.AddDays(1), 2, 10, AnswerSim),
				answer(other, dayD, 2, 10, AnswerSim),
			},
			[]int{},
		},
		{
			"category outside catalog ignored",
			[]ChecklistAnswer{answer(patient, dayD, 42, 1, AnswerSim)},
			[]int{},
		},
		{
			"more answers than catalog questions",
			[]ChecklistAnswer{
				answer(patient, dayD, 3, 11, AnswerSim),
				answer(patient, dayD, 3, 12, AnswerSim),
			},
			[]int{3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompletedCategories(patient, dayD, tt.answers, counts)
			if !equalInts(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		completed, total int
		want             float64
	}{
		{0, 12, 0},
		{3, 12, 0.25},
		{12, 12, 1},
		{13, 12, 1},
		{1, 0, 0},
	}
	for _, tt := range tests {
		if got := Progress(tt.completed, tt.total); got != tt.want {
			t.Errorf("Progress(%d, %d) = %v, want %v", tt.completed, tt.total, got, tt.want)
		}
	}
}

// genRound draws a catalog shape and a set of answered (category, question)
// pairs for one patient and day.
func genRound(t *rapid.T) (map[int]int, []ChecklistAnswer) {
	nCats := rapid.IntRange(1, 6).Draw(t, "categories")
	counts := make(map[int]int, nCats)
	var answers []ChecklistAnswer
	values := rapid.SampledFrom(Answers)
	for c := 1; c <= nCats; c++ {
		n := rapid.IntRange(1, 5).Draw(t, "questions")
		counts[c] = n
		for q := 1; q <= n; q++ {
			if rapid.Bool().Draw(t, "answered") {
				answers = append(answers, answer(patient, dayD, c, c*10+q, values.Draw(t, "value")))
			}
		}
	}
	return counts, answers
}

func TestCompletedCategories_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		counts, answers := genRound(t)
		got := CompletedCategories(patient, dayD, answers, counts)

		if !sort.IntsAreSorted(got) {
			t.Fatalf("result not ascending: %v", got)
		}

		perCategory := make(map[int]int)
		for _, a := range answers {
			perCategory[a.CategoryID]++
		}
		complete := make(map[int]bool)
		for _, c := range got {
			complete[c] = true
		}
		for c, n := range counts {
			if (perCategory[c] == n) != complete[c] {
				t.Fatalf("category %d: %d/%d answered, complete=%v", c, perCategory[c], n, complete[c])
			}
		}

		// Removing any answer of a complete category drops it.
		if len(got) > 0 {
			target := got[0]
			var pruned []ChecklistAnswer
			removed := false
			for _, a := range answers {
				if !removed && a.CategoryID == target {
					removed = true
					continue
				}
				pruned = append(pruned, a)
			}
			for _, c := range CompletedCategories(patient, dayD, pruned, counts) {
				if c == target {
					t.Fatalf("category %d still complete after removing an answer", target)
				}
			}
		}
	})
}

func TestCompletedCategories_ValueIrrelevant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		counts, answers := genRound(t)
		want := CompletedCategories(patient, dayD, answers, counts)

		relabelled := make([]ChecklistAnswer, len(answers))
		for i, a := range answers {
			a.Answer = rapid.SampledFrom(Answers).Draw(t, "relabel")
			relabelled[i] = a
		}
		if got := CompletedCategories(patient, dayD, relabelled, counts); !equalInts(got, want) {
			t.Fatalf("changing answer values changed completion: %v vs %v", got, want)
		}
	})
}
