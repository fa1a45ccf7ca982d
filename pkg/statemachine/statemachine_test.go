package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/pkg/statemachine"
)

type docState string
type docEvent string

const (
	draft     docState = "draft"
	inReview  docState = "in_review"
	approved  docState = "approved"
	published docState = "published"

	submit  docEvent = "submit"
	approve docEvent = "approve"
	publish docEvent = "publish"
)

var errNotEditor = errors.New("not an editor")

func TestMachine_Fire(t *testing.T) {
	t.Parallel()

	t.Run("follows defined transitions", func(t *testing.T) {
		t.Parallel()
		m := statemachine.NewBuilder[docState, docEvent]().
			From(draft).On(submit).To(inReview).Add().
			From(inReview).On(approve).To(approved).Add().
			MustBuild()

		ctx := context.Background()
		next, err := m.Fire(ctx, draft, submit, nil)
		require.NoError(t, err)
		assert.Equal(t, inReview, next)

		next, err = m.Fire(ctx, next, approve, nil)
		require.NoError(t, err)
		assert.Equal(t, approved, next)
	})

	t.Run("returns NoTransitionError for undefined pair", func(t *testing.T) {
		t.Parallel()
		m := statemachine.NewBuilder[docState, docEvent]().
			From(draft).On(submit).To(inReview).Add().
			MustBuild()

		next, err := m.Fire(context.Background(), draft, publish, nil)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionError(err))
		assert.Equal(t, draft, next)
	})

	t.Run("guard error is reachable through RejectedError", func(t *testing.T) {
		t.Parallel()
		isEditor := func(_ context.Context, _ docState, _ docEvent, data any) error {
			if role, _ := data.(string); role != "editor" {
				return errNotEditor
			}
			return nil
		}
		m := statemachine.NewBuilder[docState, docEvent]().
			From(inReview).On(approve).To(approved).Guard(isEditor).Add().
			MustBuild()

		ctx := context.Background()
		next, err := m.Fire(ctx, inReview, approve, "viewer")
		require.Error(t, err)
		assert.True(t, statemachine.IsRejectedError(err))
		assert.ErrorIs(t, err, errNotEditor)
		assert.Equal(t, inReview, next)
		assert.False(t, m.CanFire(ctx, inReview, approve, "viewer"))

		next, err = m.Fire(ctx, inReview, approve, "editor")
		require.NoError(t, err)
		assert.Equal(t, approved, next)
		assert.True(t, m.CanFire(ctx, inReview, approve, "editor"))
	})

	t.Run("first passing transition wins", func(t *testing.T) {
		t.Parallel()
		reject := func(context.Context, docState, docEvent, any) error { return errNotEditor }
		m := statemachine.NewBuilder[docState, docEvent]().
			From(approved).On(publish).To(published).Guard(reject).Add().
			From(approved).On(publish).To(draft).Add().
			MustBuild()

		next, err := m.Fire(context.Background(), approved, publish, nil)
		require.NoError(t, err)
		assert.Equal(t, draft, next)
	})

	t.Run("failing action aborts transition", func(t *testing.T) {
		t.Parallel()
		var calls []string
		first := func(context.Context, docState, docState, docEvent, any) error {
			calls = append(calls, "first")
			return nil
		}
		boom := errors.New("boom")
		second := func(context.Context, docState, docState, docEvent, any) error {
			calls = append(calls, "second")
			return boom
		}
		third := func(context.Context, docState, docState, docEvent, any) error {
			calls = append(calls, "third")
			return nil
		}
		m := statemachine.NewBuilder[docState, docEvent]().
			From(draft).On(submit).To(inReview).Action(first, second, third).Add().
			MustBuild()

		next, err := m.Fire(context.Background(), draft, submit, nil)
		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "action failed")
		assert.Equal(t, draft, next)
		assert.Equal(t, []string{"first", "second"}, calls)
	})

	t.Run("multiple source states share one definition", func(t *testing.T) {
		t.Parallel()
		m := statemachine.NewBuilder[docState, docEvent]().
			From(inReview, approved).On(submit).To(draft).Add().
			MustBuild()

		for _, from := range []docState{inReview, approved} {
			next, err := m.Fire(context.Background(), from, submit, nil)
			require.NoError(t, err)
			assert.Equal(t, draft, next)
		}
		assert.ElementsMatch(t, []docEvent{submit}, m.Events(approved))
	})
}

func TestBuilder_InvalidDefinition(t *testing.T) {
	t.Parallel()

	_, err := statemachine.NewBuilder[docState, docEvent]().
		From(draft).On(submit).Add().
		Build()
	require.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.NewBuilder[docState, docEvent]().On(submit).To(draft).Add().MustBuild()
	})
}
