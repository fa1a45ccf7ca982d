package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition: from, to and event are required")
	ErrInvalidEvent      = errors.New("invalid event: event cannot be empty")
)

// NoTransitionError indicates that no transition is defined for the state/event pair.
type NoTransitionError struct {
	State string
	Event string
}

func (e *NoTransitionError) Error() string {
	return fmt.Sprintf("no transition available from state '%s' for event '%s'", e.State, e.Event)
}

// RejectedError indicates that every candidate transition was blocked by a guard.
// Err holds the error returned by the first rejecting guard.
type RejectedError struct {
	State string
	Event string
	Err   error
}

func (e *RejectedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transition from state '%s' for event '%s' was rejected: %v", e.State, e.Event, e.Err)
	}
	return fmt.Sprintf("transition from state '%s' for event '%s' was rejected by guards", e.State, e.Event)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

func IsNoTransitionError(err error) bool {
	var e *NoTransitionError
	return errors.As(err, &e)
}

func IsRejectedError(err error) bool {
	var e *RejectedError
	return errors.As(err, &e)
}
