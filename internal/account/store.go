package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MutateFunc changes acc in place. Returning an error discards the change.
type MutateFunc func(ctx context.Context, acc *Account) error

// Store persists accounts. WithLock is the only write path after Create:
// it holds an exclusive per-account lock while fn runs and saves acc when fn
// succeeds and changed it. For the Postgres store the lock is a row lock in a
// transaction carried by the ctx passed to fn, so other stores called with that
// ctx commit or roll back together with the account.
type Store interface {
	Create(ctx context.Context, acc *Account) error
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	WithLock(ctx context.Context, id uuid.UUID, fn MutateFunc) (Account, error)
	// ListDue returns ids of accounts with a time-based transition due at now.
	ListDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// IsDue reports whether a time-based transition is pending for acc at now.
func IsDue(acc Account, now time.Time) bool {
	switch acc.Status {
	case StatusTrial:
		return acc.TrialEndsAt != nil && now.After(*acc.TrialEndsAt)
	case StatusCancellationConfirmed:
		return acc.CancellationEffectiveAt != nil && !now.Before(*acc.CancellationEffectiveAt)
	case StatusPaid, StatusCancellationRequested:
		return acc.SubscriptionEndsAt != nil && now.After(*acc.SubscriptionEndsAt)
	}
	return false
}
