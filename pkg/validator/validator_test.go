package validator_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/pkg/validator"
)

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("all rules pass", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("name", "Jane"),
			validator.Email("email", "jane@example.com"),
		)
		assert.NoError(t, err)
	})

	t.Run("collects every failure", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(
			validator.Required("name", "  "),
			validator.Email("email", "nope"),
			validator.MinLen("email", "nope", 6),
		)
		require.Error(t, err)

		errs := validator.ExtractValidationErrors(fmt.Errorf("wrap: %w", err))
		require.Len(t, errs, 3)
		assert.True(t, errs.Has("name"))
		assert.Len(t, errs.Get("email"), 2)
		assert.Equal(t, []string{"field is required"}, errs.Map()["name"])
		assert.True(t, validator.IsValidationError(err))
	})

	t.Run("when skips rules", func(t *testing.T) {
		t.Parallel()
		err := validator.Apply(validator.When(false, validator.Required("x", ""))...)
		assert.NoError(t, err)
	})
}

func TestLuhnValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		number string
		want   bool
	}{
		{"4242424242424242", true},
		{"4242 4242 4242 4242", true},
		{"4000000000000002", true},
		{"4242424242424241", false},
		{"42424242", false},
		{"4242abcd42424242", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, validator.LuhnValid(tt.number))
		})
	}
}

func TestCardExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, validator.Apply(validator.CardExpiry("exp", 3, 2026, now)))
	assert.NoError(t, validator.Apply(validator.CardExpiry("exp", 1, 2030, now)))
	assert.Error(t, validator.Apply(validator.CardExpiry("exp", 2, 2026, now)))
	assert.Error(t, validator.Apply(validator.CardExpiry("exp", 13, 2030, now)))
}

func TestOneOfAndRange(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validator.Apply(validator.OneOf("action", "labels", "products", "labels")))
	assert.Error(t, validator.Apply(validator.OneOf("action", "widgets", "products", "labels")))
	assert.NoError(t, validator.Apply(validator.Range("n", 5, 1, 10)))
	assert.Error(t, validator.Apply(validator.Range("n", 11, 1, 10)))
	assert.Error(t, validator.Apply(validator.CVC("cvc", "12a")))
	assert.Error(t, validator.Apply(validator.UUID("id", "nope")))
}
