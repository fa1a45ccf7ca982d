// Package statemachine provides a small, type-safe finite-state-machine
// table for entity lifecycles whose state lives in storage.
//
// States and events are string-backed types chosen by the caller. A Machine
// is built once and shared; each call to Fire receives the entity's current
// state and returns the next one, so the machine itself holds no mutable
// state and is safe for concurrent use.
//
// # Usage
//
//	type Status string
//	type Event string
//
//	machine := statemachine.NewBuilder[Status, Event]().
//		From("draft").On("submit").To("in_review").Add().
//		From("in_review").On("approve").To("approved").Guard(isEditor).Add().
//		MustBuild()
//
//	next, err := machine.Fire(ctx, doc.Status, "approve", doc)
//
// # Guards and Actions
//
// Guards return an error to veto a transition; the error of the first
// rejecting guard is wrapped in RejectedError and reachable with errors.As.
// Actions run in order after the guards passed; the first failing action
// aborts the transition and its error is returned wrapped.
//
// When several transitions share a from/event pair, they are evaluated in
// registration order and the first one whose guards pass is taken.
package statemachine
