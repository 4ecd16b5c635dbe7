package task

import (
	"errors"
	"testing"
	"time"

	"pgregory.net/rapid"
)

var t0 = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func TestDeriveLiveStatus(t *testing.T) {
	deadline := t0.Add(2 * time.Hour)
	tests := []struct {
		name      string
		persisted Status
		now       time.Time
		want      Status
	}{
		{"alert before deadline", StatusAlerta, t0.Add(time.Hour), StatusAlerta},
		{"alert at deadline", StatusAlerta, deadline, StatusForaDoPrazo},
		{"alert after deadline", StatusAlerta, t0.Add(3 * time.Hour), StatusForaDoPrazo},
		{"routine before deadline", StatusForaDoPrazo, t0.Add(time.Hour), StatusNoPrazo},
		{"routine one nanosecond early", StatusForaDoPrazo, deadline.Add(-time.Nanosecond), StatusNoPrazo},
		{"routine at deadline", StatusForaDoPrazo, deadline, StatusForaDoPrazo},
		{"completed before deadline", StatusConcluido, t0, StatusConcluido},
		{"completed long after deadline", StatusConcluido, t0.AddDate(1, 0, 0), StatusConcluido},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{PersistedStatus: tt.persisted, Deadline: deadline}
			if got := DeriveLiveStatus(task, tt.now); got != tt.want {
				t.Errorf("DeriveLiveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveLiveStatus_Properties(t *testing.T) {
	persisted := []Status{StatusAlerta, StatusForaDoPrazo, StatusConcluido}

	rapid.Check(t, func(rt *rapid.T) {
		p := rapid.SampledFrom(persisted).Draw(rt, "persisted")
		deadline := t0.Add(time.Duration(rapid.Int64Range(-1e6, 1e6).Draw(rt, "deadlineSec")) * time.Second)
		now := t0.Add(time.Duration(rapid.Int64Range(-1e6, 1e6).Draw(rt, "nowSec")) * time.Second)
		task := &Task{PersistedStatus: p, Deadline: deadline}

		got := DeriveLiveStatus(task, now)
		switch {
		case p == StatusConcluido:
			if got != StatusConcluido {
				rt.Fatalf("completed task derived %s", got)
			}
		case !now.Before(deadline):
			if got != StatusForaDoPrazo {
				rt.Fatalf("deadline reached but derived %s", got)
			}
		case p == StatusAlerta:
			if got != StatusAlerta {
				rt.Fatalf("alert within deadline derived %s", got)
			}
		default:
			if got != StatusNoPrazo {
				rt.Fatalf("routine task within deadline derived %s", got)
			}
		}
	})
}

// Moving the clock forward never produces a status change the lifecycle
// machine would not allow.
func TestDeriveLiveStatus_TimeOnlyMovesAlongDeadlineEdges(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := rapid.SampledFrom([]Status{StatusAlerta, StatusForaDoPrazo, StatusConcluido}).Draw(rt, "persisted")
		task := &Task{PersistedStatus: p, Deadline: t0}
		earlier := t0.Add(time.Duration(rapid.Int64Range(-1e5, 1e5).Draw(rt, "a")) * time.Second)
		later := earlier.Add(time.Duration(rapid.Int64Range(0, 1e5).Draw(rt, "d")) * time.Second)

		before, after := DeriveLiveStatus(task, earlier), DeriveLiveStatus(task, later)
		if before == after {
			return
		}
		to, err := Transition(before, EventDeadlinePassed)
		if err != nil {
			rt.Fatalf("%s -> %s is not a deadline edge: %v", before, after, err)
		}
		if to != after {
			rt.Fatalf("deadline edge from %s leads to %s, derived %s", before, to, after)
		}
	})
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    Status
		event   Event
		want    Status
		allowed bool
	}{
		{StatusAlerta, EventDeadlinePassed, StatusForaDoPrazo, true},
		{StatusAlerta, EventComplete, StatusConcluido, true},
		{StatusNoPrazo, EventDeadlinePassed, StatusForaDoPrazo, true},
		{StatusNoPrazo, EventComplete, StatusConcluido, true},
		{StatusForaDoPrazo, EventComplete, StatusConcluido, true},
		{StatusForaDoPrazo, EventDeadlinePassed, StatusForaDoPrazo, false},
		{StatusConcluido, EventComplete, StatusConcluido, false},
		{StatusConcluido, EventDeadlinePassed, StatusConcluido, false},
		{StatusAlerta, Event("reopen"), StatusAlerta, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			if got != tt.want {
				t.Errorf("Transition() = %s, want %s", got, tt.want)
			}
			if tt.allowed && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.allowed {
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("expected *TransitionError, got %v", err)
				}
				if te.From != tt.from || te.Event != tt.event {
					t.Errorf("unexpected error fields: %+v", te)
				}
			}
		})
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	if _, err := Transition(Status("pendente"), EventComplete); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
