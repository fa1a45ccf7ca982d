package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dmitrymomot/nutrilabel/pkg/logger"
)

// ResilientConfig bounds every gateway call with a timeout and guards the
// processor with a circuit breaker.
type ResilientConfig struct {
	CallTimeout time.Duration
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// OpenFor is how long the breaker stays open before a half-open probe.
	OpenFor time.Duration
	// Interval resets closed-state counts. Zero never resets.
	Interval time.Duration
}

// Resilient decorates a Gateway. Declines count as successful calls for the
// breaker; timeouts and transport errors count as failures. No call is
// retried here because gateway calls are not idempotent.
type Resilient struct {
	next    Gateway
	cb      *gobreaker.CircuitBreaker[any]
	timeout time.Duration
}

func NewResilient(next Gateway, cfg ResilientConfig, log *slog.Logger) *Resilient {
	if next == nil {
		panic("gateway: nil gateway")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Failures == 0 {
		cfg.Failures = 5
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsDeclined(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.Component("gateway"),
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &Resilient{next: next, cb: cb, timeout: cfg.CallTimeout}
}

// State returns the breaker state.
func (r *Resilient) State() gobreaker.State { return r.cb.State() }

func call[T any](ctx context.Context, r *Resilient, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	res, err := r.cb.Execute(func() (any, error) {
		v, err := fn(ctx)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Op: op, Code: "timeout", Err: errors.Join(ErrTimeout, err)}
		}
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, &Error{Op: op, Code: "unavailable", Err: errors.Join(ErrUnavailable, err)}
	}
	if err != nil {
		return zero, err
	}
	if v, ok := res.(T); ok {
		return v, nil
	}
	return zero, nil
}

func exec(ctx context.Context, r *Resilient, op string, fn func(context.Context) error) error {
	_, err := call(ctx, r, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (r *Resilient) CreateCustomer(ctx context.Context, email, name string, addr Address) (CustomerRef, error) {
	return call(ctx, r, OpCreateCustomer, func(ctx context.Context) (CustomerRef, error) {
		return r.next.CreateCustomer(ctx, email, name, addr)
	})
}

func (r *Resilient) TokenizePaymentMethod(ctx context.Context, card Card) (PaymentMethod, error) {
	return call(ctx, r, OpTokenize, func(ctx context.Context) (PaymentMethod, error) {
		return r.next.TokenizePaymentMethod(ctx, card)
	})
}

func (r *Resilient) AttachMethod(ctx context.Context, method MethodRef, customer CustomerRef) error {
	return exec(ctx, r, OpAttachMethod, func(ctx context.Context) error {
		return r.next.AttachMethod(ctx, method, customer)
	})
}

func (r *Resilient) SetDefaultMethod(ctx context.Context, customer CustomerRef, method MethodRef) error {
	return exec(ctx, r, OpSetDefaultMethod, func(ctx context.Context) error {
		return r.next.SetDefaultMethod(ctx, customer, method)
	})
}

func (r *Resilient) Subscribe(ctx context.Context, customer CustomerRef, priceRef string, method MethodRef) (Subscription, error) {
	return call(ctx, r, OpSubscribe, func(ctx context.Context) (Subscription, error) {
		return r.next.Subscribe(ctx, customer, priceRef, method)
	})
}

func (r *Resilient) CancelImmediately(ctx context.Context, sub SubscriptionRef) error {
	return exec(ctx, r, OpCancelImmediately, func(ctx context.Context) error {
		return r.next.CancelImmediately(ctx, sub)
	})
}

func (r *Resilient) CancelAtPeriodEnd(ctx context.Context, sub SubscriptionRef) error {
	return exec(ctx, r, OpCancelAtPeriodEnd, func(ctx context.Context) error {
		return r.next.CancelAtPeriodEnd(ctx, sub)
	})
}

func (r *Resilient) ResumeFromCancelAtPeriodEnd(ctx context.Context, sub SubscriptionRef) error {
	return exec(ctx, r, OpResume, func(ctx context.Context) error {
		return r.next.ResumeFromCancelAtPeriodEnd(ctx, sub)
	})
}

func (r *Resilient) Renew(ctx context.Context, customer CustomerRef, sub SubscriptionRef, priceRef string) (Subscription, error) {
	return call(ctx, r, OpRenew, func(ctx context.Context) (Subscription, error) {
		return r.next.Renew(ctx, customer, sub, priceRef)
	})
}
