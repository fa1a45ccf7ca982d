package statemachine

import (
	"context"
	"fmt"
)

// Guard decides whether a transition may proceed. A non-nil error rejects it
// and is reported to the caller, so guards should return typed domain errors.
type Guard[S ~string, E ~string] func(ctx context.Context, from S, event E, data any) error

// Action executes side effects during a transition. Returning an error aborts
// the transition and leaves the state untouched.
type Action[S ~string, E ~string] func(ctx context.Context, from, to S, event E, data any) error

// Transition defines a state change triggered by an event.
type Transition[S ~string, E ~string] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // all must pass
	Actions []Action[S, E] // executed in order, before the state changes
}

// Machine is an immutable transition table.
//
// The machine does not own the current state: callers pass it to Fire and
// persist the returned state themselves. This keeps one table shareable
// between every entity that follows the same lifecycle.
type Machine[S ~string, E ~string] struct {
	transitions map[S]map[E][]Transition[S, E]
}

func newMachine[S ~string, E ~string]() *Machine[S, E] {
	return &Machine[S, E]{transitions: make(map[S]map[E][]Transition[S, E])}
}

func (m *Machine[S, E]) add(t Transition[S, E]) error {
	if t.From == "" || t.To == "" || t.Event == "" {
		return ErrInvalidTransition
	}
	if _, ok := m.transitions[t.From]; !ok {
		m.transitions[t.From] = make(map[E][]Transition[S, E])
	}
	// Several transitions per from/event pair enable guard-based branching.
	m.transitions[t.From][t.Event] = append(m.transitions[t.From][t.Event], t)
	return nil
}

// Fire applies event to the current state and returns the resulting state.
// The first transition whose guards all pass wins.
func (m *Machine[S, E]) Fire(ctx context.Context, current S, event E, data any) (S, error) {
	if event == "" {
		return current, ErrInvalidEvent
	}

	candidates := m.transitions[current][event]
	if len(candidates) == 0 {
		return current, &NoTransitionError{State: string(current), Event: string(event)}
	}

	var rejection error
	for _, t := range candidates {
		if err := runGuards(ctx, t, current, event, data); err != nil {
			if rejection == nil {
				rejection = err
			}
			continue
		}

		for _, action := range t.Actions {
			if err := action(ctx, current, t.To, event, data); err != nil {
				return current, fmt.Errorf("action failed: %w", err)
			}
		}
		return t.To, nil
	}

	return current, &RejectedError{State: string(current), Event: string(event), Err: rejection}
}

// CanFire reports whether any transition for event would pass its guards.
// Actions are not executed.
func (m *Machine[S, E]) CanFire(ctx context.Context, current S, event E, data any) bool {
	for _, t := range m.transitions[current][event] {
		if runGuards(ctx, t, current, event, data) == nil {
			return true
		}
	}
	return false
}

// Events lists the events defined for the given state.
func (m *Machine[S, E]) Events(current S) []E {
	events := make([]E, 0, len(m.transitions[current]))
	for e := range m.transitions[current] {
		events = append(events, e)
	}
	return events
}

func runGuards[S ~string, E ~string](ctx context.Context, t Transition[S, E], current S, event E, data any) error {
	for _, guard := range t.Guards {
		if err := guard(ctx, current, event, data); err != nil {
			return err
		}
	}
	return nil
}
