package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newMemory() *gateway.Memory {
	return gateway.NewMemory(gateway.WithMemoryClock(func() time.Time { return fixedNow }))
}

func card(number string) gateway.Card {
	return gateway.Card{Number: number, ExpMonth: 12, ExpYear: 2030, CVC: "123"}
}

func subscribe(t *testing.T, gw gateway.Gateway, number string) (gateway.CustomerRef, gateway.Subscription, error) {
	t.Helper()
	ctx := context.Background()
	cust, err := gw.CreateCustomer(ctx, "jane@example.com", "Jane", gateway.Address{})
	require.NoError(t, err)
	pm, err := gw.TokenizePaymentMethod(ctx, card(number))
	require.NoError(t, err)
	require.NoError(t, gw.AttachMethod(ctx, pm.Ref, cust))
	require.NoError(t, gw.SetDefaultMethod(ctx, cust, pm.Ref))
	sub, err := gw.Subscribe(ctx, cust, "price_pro", pm.Ref)
	return cust, sub, err
}

func TestMemory_Tokenize(t *testing.T) {
	t.Parallel()

	gw := newMemory()
	ctx := context.Background()

	pm, err := gw.TokenizePaymentMethod(ctx, card("4242 4242 4242 4242"))
	require.NoError(t, err)
	assert.Equal(t, "visa", pm.Brand)
	assert.Equal(t, "4242", pm.Last4)
	assert.NotEmpty(t, pm.Ref)

	_, err = gw.TokenizePaymentMethod(ctx, card("4242424242424241"))
	require.Error(t, err)
	assert.True(t, gateway.IsDeclined(err))
	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "incorrect_number", gerr.Code)

	_, err = gw.TokenizePaymentMethod(ctx, gateway.Card{Number: gateway.CardSuccess, ExpMonth: 1, ExpYear: 2026, CVC: "123"})
	assert.True(t, gateway.IsDeclined(err))
}

func TestMemory_SubscribeAndDecline(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		gw := newMemory()
		_, sub, err := subscribe(t, gw, gateway.CardSuccess)
		require.NoError(t, err)
		assert.NotEmpty(t, sub.Ref)
		assert.NotEmpty(t, sub.TransactionID)
		assert.True(t, sub.PeriodEnd.After(fixedNow))
	})

	t.Run("declined card", func(t *testing.T) {
		t.Parallel()
		gw := newMemory()
		_, _, err := subscribe(t, gw, gateway.CardDeclined)
		require.Error(t, err)
		assert.True(t, gateway.IsDeclined(err))
	})

	t.Run("injected failure", func(t *testing.T) {
		t.Parallel()
		gw := newMemory()
		gw.FailNext(gateway.OpSubscribe, &gateway.Error{Op: gateway.OpSubscribe, Code: "api_error"})
		_, _, err := subscribe(t, gw, gateway.CardSuccess)
		require.Error(t, err)
		assert.False(t, gateway.IsDeclined(err))
		assert.True(t, gateway.IsGatewayError(err))

		_, _, err = subscribe(t, gw, gateway.CardSuccess)
		assert.NoError(t, err)
	})
}

func TestMemory_CancelResumeRenew(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gw := newMemory()
	cust, sub, err := subscribe(t, gw, gateway.CardSuccess)
	require.NoError(t, err)

	require.NoError(t, gw.CancelAtPeriodEnd(ctx, sub.Ref))
	state, ok := gw.Subscription(sub.Ref)
	require.True(t, ok)
	assert.True(t, state.CancelAtPeriodEnd)

	_, err = gw.Renew(ctx, cust, sub.Ref, "price_pro")
	assert.True(t, gateway.IsDeclined(err))

	require.NoError(t, gw.ResumeFromCancelAtPeriodEnd(ctx, sub.Ref))
	renewed, err := gw.Renew(ctx, cust, sub.Ref, "price_pro")
	require.NoError(t, err)
	assert.True(t, renewed.PeriodEnd.After(sub.PeriodEnd))
	assert.NotEqual(t, sub.TransactionID, renewed.TransactionID)

	require.NoError(t, gw.CancelImmediately(ctx, sub.Ref))
	assert.Error(t, gw.CancelAtPeriodEnd(ctx, sub.Ref))

	assert.Equal(t, []string{
		gateway.OpCreateCustomer, gateway.OpTokenize, gateway.OpAttachMethod, gateway.OpSetDefaultMethod,
		gateway.OpSubscribe, gateway.OpCancelAtPeriodEnd, gateway.OpRenew, gateway.OpResume,
		gateway.OpRenew, gateway.OpCancelImmediately, gateway.OpCancelAtPeriodEnd,
	}, gw.Calls())
}

func TestMemory_RenewDeclinesOnRenewalCard(t *testing.T) {
	t.Parallel()

	gw := newMemory()
	cust, sub, err := subscribe(t, gw, gateway.CardDeclineOnRenew)
	require.NoError(t, err)

	_, err = gw.Renew(context.Background(), cust, sub.Ref, "price_pro")
	assert.True(t, gateway.IsDeclined(err))
}

func TestResilient_DeclinesDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	gw := gateway.NewResilient(newMemory(), gateway.ResilientConfig{Failures: 2, OpenFor: time.Minute}, logger.Discard())
	for range 5 {
		_, err := gw.TokenizePaymentMethod(context.Background(), card("1234567812345678"))
		require.Error(t, err)
		assert.True(t, gateway.IsDeclined(err))
	}
	assert.Equal(t, gobreaker.StateClosed, gw.State())
}

func TestResilient_OpensAfterFailures(t *testing.T) {
	t.Parallel()

	mem := newMemory()
	outage := &gateway.Error{Op: gateway.OpCreateCustomer, Code: "api_connection_error", Err: errors.New("connection reset")}
	mem.FailNext(gateway.OpCreateCustomer, outage)
	mem.FailNext(gateway.OpCreateCustomer, outage)

	gw := gateway.NewResilient(mem, gateway.ResilientConfig{Failures: 2, OpenFor: time.Minute}, logger.Discard())
	ctx := context.Background()

	for range 2 {
		_, err := gw.CreateCustomer(ctx, "a@example.com", "A", gateway.Address{})
		require.ErrorIs(t, err, outage)
	}
	assert.Equal(t, gobreaker.StateOpen, gw.State())

	_, err := gw.CreateCustomer(ctx, "a@example.com", "A", gateway.Address{})
	require.ErrorIs(t, err, gateway.ErrUnavailable)
	assert.True(t, gateway.IsGatewayError(err))
	assert.Len(t, mem.Calls(), 2)
}

type slowGateway struct {
	*gateway.Memory
}

func (slowGateway) CreateCustomer(ctx context.Context, _, _ string, _ gateway.Address) (gateway.CustomerRef, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestResilient_Timeout(t *testing.T) {
	t.Parallel()

	gw := gateway.NewResilient(slowGateway{newMemory()}, gateway.ResilientConfig{
		CallTimeout: 20 * time.Millisecond,
		Failures:    1,
		OpenFor:     time.Minute,
	}, logger.Discard())

	_, err := gw.CreateCustomer(context.Background(), "a@example.com", "A", gateway.Address{})
	require.ErrorIs(t, err, gateway.ErrTimeout)
	assert.False(t, gateway.IsDeclined(err))
	assert.Equal(t, gobreaker.StateOpen, gw.State())
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	err := &gateway.Error{Op: gateway.OpSubscribe, Code: "card_declined", Message: "Your card was declined.", Declined: true}
	assert.Equal(t, "gateway subscribe: card_declined: Your card was declined.", err.Error())
	assert.True(t, gateway.IsDeclined(errors.Join(errors.New("complete payment"), err)))
}
