package task

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// Machine states. Untyped so they can be used directly as statekit state IDs.
const (
	stateAlerta      = "alerta"
	stateNoPrazo     = "no_prazo"
	stateForaDoPrazo = "fora_do_prazo"
	stateConcluido   = "concluido"
)

const (
	eventDeadlinePassed = "deadline_passed"
	eventComplete       = "complete"
)

// Event moves a task between live statuses.
type Event string

const (
	EventDeadlinePassed Event = eventDeadlinePassed
	EventComplete       Event = eventComplete
)

// DeriveLiveStatus computes the status shown for t at now. A completed task
// stays concluido forever; otherwise a reached deadline (now == deadline
// included) is overdue, and before it an alert stays alerta while any other
// task is no_prazo.
func DeriveLiveStatus(t *Task, now time.Time) Status {
	switch {
	case t.PersistedStatus == StatusConcluido:
		return StatusConcluido
	case !now.Before(t.Deadline):
		return StatusForaDoPrazo
	case t.PersistedStatus == StatusAlerta:
		return StatusAlerta
	default:
		return StatusNoPrazo
	}
}

// TransitionError reports an event the live status does not accept.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not allowed while the task is %q", e.Event, e.From)
}

type lifecycleContext struct{}

// Transition applies event to a task whose live status is from and returns
// the resulting live status.
func Transition(from Status, event Event) (Status, error) {
	if _, ok := ParseStatus(string(from)); !ok {
		return from, fmt.Errorf("unknown status %q", from)
	}

	builder := statekit.NewMachine[lifecycleContext]("task-lifecycle").
		WithInitial(statekit.StateID(from)).
		WithContext(lifecycleContext{}).
		WithGuard("never", func(lifecycleContext, statekit.Event) bool { return false })

	builder.State(stateAlerta).
		On(eventDeadlinePassed).Target(stateForaDoPrazo).
		On(eventComplete).Target(stateConcluido).
		Done()

	builder.State(stateNoPrazo).
		On(eventDeadlinePassed).Target(stateForaDoPrazo).
		On(eventComplete).Target(stateConcluido).
		Done()

	builder.State(stateForaDoPrazo).
		On(eventComplete).Target(stateConcluido).
		Done()

	// Terminal: its only edge is guarded shut.
	builder.State(stateConcluido).
		On(eventComplete).Target(stateConcluido).Guard("never").
		Done()

	machine, err := builder.Build()
	if err != nil {
		return from, fmt.Errorf("build task lifecycle: %w", err)
	}

	interp := statekit.NewInterpreter(machine)
	interp.Start()
	interp.Send(statekit.Event{Type: statekit.EventType(event)})

	to := Status(interp.State().Value)
	if to == from {
		return from, &TransitionError{From: from, Event: event}
	}
	return to, nil
}
