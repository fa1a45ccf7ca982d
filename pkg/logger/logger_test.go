package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/pkg/logger"
)

type ctxKey struct{}

func TestNew_JSONWithContextValue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithFormat(logger.FormatJSON),
		logger.WithAttr(slog.String("service", "test")),
		logger.WithContextValue("request_id", ctxKey{}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	log.InfoContext(ctx, "hello", logger.AccountID("acc-1"), logger.PlanID("pro"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "test", rec["service"])
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "acc-1", rec["account_id"])
	assert.Equal(t, "pro", rec["plan_id"])
}

func TestNew_SkipsEmptyContextValue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithFormat(logger.FormatJSON),
		logger.WithContextValue("request_id", ctxKey{}),
	).With(slog.String("component", "sweeper"))

	log.InfoContext(context.WithValue(context.Background(), ctxKey{}, ""), "tick")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "sweeper", rec["component"])
	assert.NotContains(t, rec, "request_id")
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithEnvironment("production", "api"))
	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Info("shown")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "api", rec["service"])
	assert.Equal(t, "production", rec["env"])
}

func TestWithFormat_PanicsOnUnknown(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	assert.Equal(t, "error", logger.Error(errors.New("x")).Key)
	assert.True(t, logger.AccountID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.PlanID("").Equal(slog.Attr{}))

	tr := logger.Transition("paid", "cancellation_requested", "request_cancellation")
	require.Equal(t, slog.KindGroup, tr.Value.Kind())
	assert.Len(t, tr.Value.Group(), 3)
}
