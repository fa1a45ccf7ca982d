package account_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/internal/account"
)

func newAccount(email string) *account.Account {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &account.Account{
		Email:       email,
		Name:        "Test",
		PlanID:      "free",
		Status:      account.StatusTrial,
		TrialEndsAt: account.Ptr(now.AddDate(0, 0, 14)),
		AutoRenew:   true,
		CreatedAt:   now,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := account.NewMemoryStore()

	acc := newAccount("Jane@Example.com")
	require.NoError(t, s.Create(ctx, acc))
	assert.NotEqual(t, uuid.Nil, acc.ID)

	got, err := s.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	assert.ErrorIs(t, s.Create(ctx, newAccount("JANE@example.com")), account.ErrEmailTaken)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestMemoryStore_WithLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := account.NewMemoryStore()
	acc := newAccount("a@example.com")
	require.NoError(t, s.Create(ctx, acc))

	t.Run("error discards change", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := s.WithLock(ctx, acc.ID, func(_ context.Context, a *account.Account) error {
			a.Status = account.StatusExpired
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := s.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusTrial, got.Status)
	})

	t.Run("success persists", func(t *testing.T) {
		updated, err := s.WithLock(ctx, acc.ID, func(_ context.Context, a *account.Account) error {
			a.Status = account.StatusExpired
			a.TrialEndsAt = nil
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, account.StatusExpired, updated.Status)

		got, err := s.Get(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, account.StatusExpired, got.Status)
		assert.Nil(t, got.TrialEndsAt)
	})

	t.Run("serializes writers", func(t *testing.T) {
		var wg sync.WaitGroup
		counter := 0
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.WithLock(ctx, acc.ID, func(_ context.Context, a *account.Account) error {
					counter++
					a.Name = "n"
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, 50, counter)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := s.WithLock(ctx, uuid.New(), func(context.Context, *account.Account) error { return nil })
		assert.ErrorIs(t, err, account.ErrNotFound)
	})
}

func TestIsDueAndListDue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := account.NewMemoryStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	trial := newAccount("trial@example.com")
	require.NoError(t, s.Create(ctx, trial))

	confirmed := &account.Account{
		Email: "c@example.com", PlanID: "pro", Status: account.StatusCancellationConfirmed,
		SubscriptionEndsAt:      account.Ptr(base.AddDate(0, 1, 0)),
		CancellationRequestedAt: account.Ptr(base),
		CancellationEffectiveAt: account.Ptr(base.AddDate(0, 0, 3)),
	}
	require.NoError(t, s.Create(ctx, confirmed))

	assert.False(t, account.IsDue(*confirmed, base.AddDate(0, 0, 3).Add(-time.Nanosecond)))
	assert.True(t, account.IsDue(*confirmed, base.AddDate(0, 0, 3)))
	assert.False(t, account.IsDue(*trial, base.AddDate(0, 0, 14)))
	assert.True(t, account.IsDue(*trial, base.AddDate(0, 0, 14).Add(time.Second)))

	requested := account.Account{
		Status:                  account.StatusCancellationRequested,
		SubscriptionEndsAt:      account.Ptr(base.AddDate(0, 1, 0)),
		CancellationRequestedAt: account.Ptr(base),
	}
	assert.False(t, account.IsDue(requested, base.AddDate(0, 1, 0)))
	assert.True(t, account.IsDue(requested, base.AddDate(0, 1, 0).Add(time.Second)))

	ids, err := s.ListDue(ctx, base.AddDate(0, 0, 5), 0)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{confirmed.ID}, ids)

	ids, err = s.ListDue(ctx, base.AddDate(0, 0, 20), 1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestAccount_Validate(t *testing.T) {
	t.Parallel()

	acc := *newAccount("v@example.com")
	require.NoError(t, acc.Validate())

	acc.CancellationRequestedAt = account.Ptr(time.Now())
	assert.Error(t, acc.Validate())

	acc.Status = account.StatusCancellationRequested
	acc.TrialEndsAt = nil
	assert.NoError(t, acc.Validate())
}
