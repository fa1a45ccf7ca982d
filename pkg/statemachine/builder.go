package statemachine

import "fmt"

// Builder provides a fluent API for building a Machine.
//
//	b := statemachine.NewBuilder[Status, Event]()
//	b.From(Trial, Paid).On(Pay).To(Active).Guard(hasCard).Action(charge).Add()
//	machine, err := b.Build()
type Builder[S ~string, E ~string] struct {
	machine *Machine[S, E]
	from    []S
	event   E
	to      S
	guards  []Guard[S, E]
	actions []Action[S, E]
	err     error
}

// NewBuilder creates an empty builder.
func NewBuilder[S ~string, E ~string]() *Builder[S, E] {
	return &Builder[S, E]{machine: newMachine[S, E]()}
}

// From starts a new transition definition. Multiple source states share the
// same event, target, guards and actions.
func (b *Builder[S, E]) From(states ...S) *Builder[S, E] {
	b.reset()
	b.from = states
	return b
}

// On sets the triggering event.
func (b *Builder[S, E]) On(event E) *Builder[S, E] {
	b.event = event
	return b
}

// To sets the target state.
func (b *Builder[S, E]) To(state S) *Builder[S, E] {
	b.to = state
	return b
}

// Guard appends a guard to the current definition. Nil guards are ignored.
func (b *Builder[S, E]) Guard(guards ...Guard[S, E]) *Builder[S, E] {
	for _, g := range guards {
		if g != nil {
			b.guards = append(b.guards, g)
		}
	}
	return b
}

// Action appends an action to the current definition. Nil actions are ignored.
func (b *Builder[S, E]) Action(actions ...Action[S, E]) *Builder[S, E] {
	for _, a := range actions {
		if a != nil {
			b.actions = append(b.actions, a)
		}
	}
	return b
}

// Add registers the current definition. The first error is kept and
// returned by Build.
func (b *Builder[S, E]) Add() *Builder[S, E] {
	if b.err != nil {
		return b
	}
	if len(b.from) == 0 {
		b.err = ErrInvalidTransition
		return b
	}
	for _, from := range b.from {
		t := Transition[S, E]{
			From:    from,
			To:      b.to,
			Event:   b.event,
			Guards:  b.guards,
			Actions: b.actions,
		}
		if err := b.machine.add(t); err != nil {
			b.err = fmt.Errorf("transition %s -> %s on %s: %w", from, b.to, b.event, err)
			return b
		}
	}
	b.reset()
	return b
}

// Build returns the machine or the first definition error.
func (b *Builder[S, E]) Build() (*Machine[S, E], error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.machine, nil
}

// MustBuild is like Build but panics on a definition error. Transition tables
// are static, so a broken one should stop startup.
func (b *Builder[S, E]) MustBuild() *Machine[S, E] {
	m, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

func (b *Builder[S, E]) reset() {
	b.from = nil
	b.event = ""
	b.to = ""
	b.guards = nil
	b.actions = nil
}
