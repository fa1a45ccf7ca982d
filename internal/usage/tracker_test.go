package usage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/internal/usage"
)

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) CountCreated(ctx context.Context, accountID uuid.UUID, r plan.Resource, since, until time.Time) (int, error) {
	args := m.Called(ctx, accountID, r, since, until)
	return args.Int(0), args.Error(1)
}

func catalog(t *testing.T) *plan.Catalog {
	t.Helper()
	c, err := plan.NewCatalog([]plan.Plan{
		{ID: "free", Name: "Free", Price: plan.Price{Currency: "USD"}, Interval: plan.IntervalNone, TrialDays: 14, ProductLimit: 3, LabelLimit: 5, Default: true},
		{ID: "pro", Name: "Pro", Price: plan.Price{Amount: 4900, Currency: "USD"}, ExternalPriceID: "price_pro", Interval: plan.IntervalMonthly, QRCodeLimit: 10, Features: []plan.Feature{plan.FeatureQRCodes}},
	})
	require.NoError(t, err)
	return c
}

var now = time.Date(2026, time.March, 17, 15, 30, 0, 0, time.UTC)
var monthStart = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

func TestTracker_Check_QuotaBoundary(t *testing.T) {
	t.Parallel()

	acc := account.Account{ID: uuid.New(), PlanID: "free"}
	counter := &mockCounter{}
	tr := usage.NewTracker(catalog(t), usage.NewMemoryLedger(), counter, usage.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for used := range 3 {
		counter.On("CountCreated", ctx, acc.ID, plan.Products, monthStart, now).Return(used, nil).Once()
		require.NoError(t, tr.Check(ctx, acc, plan.Products), "creation %d", used+1)
	}

	counter.On("CountCreated", ctx, acc.ID, plan.Products, monthStart, now).Return(3, nil).Once()
	err := tr.Check(ctx, acc, plan.Products)
	var quotaErr *usage.QuotaExceededError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, plan.Products, quotaErr.Resource)
	assert.Equal(t, 3, quotaErr.Limit)
	assert.Equal(t, 3, quotaErr.Used)

	counter.AssertExpectations(t)
}

func TestTracker_UnlimitedSkipsCounting(t *testing.T) {
	t.Parallel()

	counter := &mockCounter{}
	tr := usage.NewTracker(catalog(t), usage.NewMemoryLedger(), counter, usage.WithClock(func() time.Time { return now }))

	ok, err := tr.CanCreate(context.Background(), account.Account{ID: uuid.New(), PlanID: "pro"}, plan.Labels)
	require.NoError(t, err)
	assert.True(t, ok)
	counter.AssertNotCalled(t, "CountCreated", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTracker_QRCodesAreFeatureGated(t *testing.T) {
	t.Parallel()

	counter := &mockCounter{}
	tr := usage.NewTracker(catalog(t), usage.NewMemoryLedger(), counter, usage.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	err := tr.Check(ctx, account.Account{ID: uuid.New(), PlanID: "free"}, plan.QRCodes)
	var featErr *usage.FeatureUnavailableError
	require.ErrorAs(t, err, &featErr)
	assert.Equal(t, plan.FeatureQRCodes, featErr.Feature)

	ok, err := tr.CanCreate(ctx, account.Account{ID: uuid.New(), PlanID: "pro"}, plan.QRCodes)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTracker_CounterFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	counter := &mockCounter{}
	counter.On("CountCreated", mock.Anything, mock.Anything, plan.Labels, mock.Anything, mock.Anything).Return(0, boom)
	tr := usage.NewTracker(catalog(t), usage.NewMemoryLedger(), counter, usage.WithClock(func() time.Time { return now }))

	ok, err := tr.CanCreate(context.Background(), account.Account{ID: uuid.New(), PlanID: "free"}, plan.Labels)
	assert.False(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestTracker_CurrentUsage_QRAnalyticsSurviveDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	acc := account.Account{ID: uuid.New(), PlanID: "pro"}
	ledger := usage.NewMemoryLedger()
	qrID := uuid.New()

	previous := monthStart.Add(-48 * time.Hour)
	require.NoError(t, ledger.Append(ctx, usage.Event{AccountID: acc.ID, Resource: plan.QRCodes, Kind: usage.KindCreated, ResourceID: uuid.New(), OccurredAt: previous}))
	require.NoError(t, ledger.Append(ctx, usage.Event{AccountID: acc.ID, Resource: plan.QRCodes, Kind: usage.KindCreated, ResourceID: qrID, OccurredAt: now.Add(-time.Hour)}))
	require.NoError(t, ledger.Append(ctx, usage.Event{AccountID: acc.ID, Resource: plan.QRCodes, Kind: usage.KindDeleted, ResourceID: qrID, OccurredAt: now}))

	counter := &mockCounter{}
	counter.On("CountCreated", ctx, acc.ID, plan.Products, monthStart, now).Return(7, nil)
	counter.On("CountCreated", ctx, acc.ID, plan.Labels, monthStart, now).Return(2, nil)

	tr := usage.NewTracker(catalog(t), ledger, counter, usage.WithClock(func() time.Time { return now }))
	u, err := tr.CurrentUsage(ctx, acc)
	require.NoError(t, err)

	assert.Equal(t, monthStart, u.PeriodStart)
	assert.Equal(t, usage.Quota{Used: 7, Limit: 0}, u.Products)
	assert.Equal(t, usage.Quota{Used: 2, Limit: 0}, u.Labels)
	assert.True(t, u.QRCodes.Enabled)
	assert.Equal(t, 10, u.QRCodes.Limit)
	assert.Equal(t, usage.Counts{Created: 1, Deleted: 1, Net: 0}, u.QRCodes.CurrentMonth)
	assert.Equal(t, usage.Counts{Created: 2, Deleted: 1, Net: 1}, u.QRCodes.Total)
}

func TestMemoryLedger_RejectsInvalidEvents(t *testing.T) {
	t.Parallel()

	l := usage.NewMemoryLedger()
	err := l.Append(context.Background(), usage.Event{AccountID: uuid.New(), Resource: "widgets", Kind: usage.KindCreated, ResourceID: uuid.New(), OccurredAt: now})
	assert.ErrorIs(t, err, usage.ErrInvalidEvent)
}

func TestMonthStart(t *testing.T) {
	t.Parallel()
	assert.Equal(t, monthStart, usage.MonthStart(now))
	assert.Equal(t, monthStart, usage.MonthStart(monthStart))
}
