package checklist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
	"github.com/noemisales1009/Round-Juju/internal/platform/db"
	"github.com/noemisales1009/Round-Juju/internal/platform/db/pgtest"
)

func TestMain(m *testing.M) {
	os.Exit(pgtest.Run(m))
}

func TestAnswerRepoPG_UpsertIsPerKey(t *testing.T) {
	ctx := context.Background()
	repo := NewAnswerRepoPG(pgtest.New(t), db.DefaultRetryPolicy())
	p := uuid.New()
	at := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	write := func(q int, day time.Time, v Answer) {
		t.Helper()
		a := &ChecklistAnswer{
			Key:       Key{PatientID: p, CategoryID: 2, QuestionID: q, Day: clock.DateOf(day, time.UTC)},
			Answer:    v,
			UpdatedAt: at,
		}
		if err := repo.Upsert(ctx, a); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	write(9, at, AnswerSim)
	write(9, at, AnswerSim)
	write(9, at, AnswerNao)
	write(10, at, AnswerNaoSeAplica)
	write(9, at.AddDate(0, 0, 1), AnswerSim)

	got, err := repo.ListByPatientAndDay(ctx, p, dayD)
	if err != nil {
		t.Fatalf("ListByPatientAndDay: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows on day D, got %d", len(got))
	}
	if got[0].QuestionID != 9 || got[0].Answer != AnswerNao || got[0].Day != dayD {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if done := CompletedCategories(p, dayD, got, map[int]int{2: 2}); !equalInts(done, []int{2}) {
		t.Errorf("expected Hídrico complete, got %v", done)
	}

	next, _ := repo.ListByDay(ctx, dayD.AddDays(1))
	if len(next) != 1 || next[0].QuestionID != 9 {
		t.Errorf("unexpected rows on D+1: %+v", next)
	}
}

func TestLoadCatalog_Seeded(t *testing.T) {
	c, err := LoadCatalog(context.Background(), pgtest.New(t), db.DefaultRetryPolicy())
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if n := len(c.Categories()); n != 12 {
		t.Errorf("expected 12 categories, got %d", n)
	}
	if ids := c.QuestionIDs(2); !equalInts(ids, []int{9, 10}) {
		t.Errorf("expected Hídrico questions [9 10], got %v", ids)
	}
	if c.QuestionCount(1) != 8 {
		t.Errorf("expected 8 nutrition questions, got %d", c.QuestionCount(1))
	}
}
