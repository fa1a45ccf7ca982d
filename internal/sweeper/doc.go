// Package sweeper periodically reconciles accounts whose trial, grace period
// or paid term has run out.
//
// Reconciliation also happens on every authenticated request; the sweeper
// bounds how stale an idle account can get. One replica sweeps at a time,
// coordinated through a Redis lease.
package sweeper
