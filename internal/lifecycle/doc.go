// Package lifecycle owns the subscription status of an account.
//
// Statuses and the events that move between them form one transition table
// (see newMachine). Every operation runs inside account.Store.WithLock, so
// transitions on the same account are serialized and the guard check cannot
// race the write. Gateway calls happen inside that section; when any call
// fails the mutation is discarded and the account is left exactly as it was.
//
// Time-based transitions (trial end, cancellation effective date, term end)
// are applied by Reconcile, which request handlers call before reading the
// account and the sweeper calls for accounts nobody touches. Staleness is
// bounded by whichever comes first.
package lifecycle
