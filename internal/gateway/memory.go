package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/pkg/validator"
)

// Test card numbers understood by Memory.
const (
	CardSuccess        = "4242424242424242"
	CardMastercard     = "5555555555554444"
	CardDeclined       = "4000000000000002"
	CardInsufficient   = "4000000000009995"
	CardDeclineOnRenew = "4000000000000341"
)

// MemorySubscription is the processor-side state Memory keeps per subscription.
type MemorySubscription struct {
	Customer          CustomerRef
	PriceRef          string
	Method            MethodRef
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
	Cancelled         bool
}

type memoryMethod struct {
	number   string
	customer CustomerRef
	PaymentMethod
}

// Memory is a deterministic in-process gateway for development and tests.
type Memory struct {
	mu            sync.Mutex
	now           func() time.Time
	period        func(priceRef string) time.Duration
	customers     map[CustomerRef]string
	defaults      map[CustomerRef]MethodRef
	methods       map[MethodRef]*memoryMethod
	subscriptions map[SubscriptionRef]*MemorySubscription
	failures      map[string][]error
	calls         []string
}

type MemoryOption func(*Memory)

func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// WithBillingPeriod sets the period reported for a price reference.
func WithBillingPeriod(fn func(priceRef string) time.Duration) MemoryOption {
	return func(m *Memory) {
		if fn != nil {
			m.period = fn
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		now:           time.Now,
		period:        func(string) time.Duration { return 30 * 24 * time.Hour },
		customers:     make(map[CustomerRef]string),
		defaults:      make(map[CustomerRef]MethodRef),
		methods:       make(map[MethodRef]*memoryMethod),
		subscriptions: make(map[SubscriptionRef]*MemorySubscription),
		failures:      make(map[string][]error),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailNext makes the next call of op return err. Calls queue up in order.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// Calls returns the operation names invoked so far, in order.
func (m *Memory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Subscription returns the stored state of ref.
func (m *Memory) Subscription(ref SubscriptionRef) (MemorySubscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[ref]
	if !ok {
		return MemorySubscription{}, false
	}
	return *s, true
}

// begin records the call and pops an injected failure. Caller holds mu.
func (m *Memory) begin(ctx context.Context, op string) error {
	m.calls = append(m.calls, op)
	if err := ctx.Err(); err != nil {
		return &Error{Op: op, Code: "context", Err: err}
	}
	if q := m.failures[op]; len(q) > 0 {
		m.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func newRef(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (m *Memory) CreateCustomer(ctx context.Context, email, _ string, _ Address) (CustomerRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpCreateCustomer); err != nil {
		return "", err
	}
	if email == "" {
		return "", &Error{Op: OpCreateCustomer, Code: "invalid_request", Message: "email is required"}
	}
	ref := CustomerRef(newRef("cus"))
	m.customers[ref] = email
	return ref, nil
}

func (m *Memory) TokenizePaymentMethod(ctx context.Context, card Card) (PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpTokenize); err != nil {
		return PaymentMethod{}, err
	}

	number := strings.ReplaceAll(card.Number, " ", "")
	if !validator.LuhnValid(number) {
		return PaymentMethod{}, declined(OpTokenize, "incorrect_number", "Your card number is incorrect.")
	}
	now := m.now()
	if card.ExpYear < now.Year() || (card.ExpYear == now.Year() && card.ExpMonth < int(now.Month())) {
		return PaymentMethod{}, declined(OpTokenize, "expired_card", "Your card has expired.")
	}

	pm := PaymentMethod{
		Ref:      MethodRef(newRef("pm")),
		Brand:    brandOf(number),
		Last4:    number[len(number)-4:],
		ExpMonth: card.ExpMonth,
		ExpYear:  card.ExpYear,
	}
	m.methods[pm.Ref] = &memoryMethod{number: number, PaymentMethod: pm}
	return pm, nil
}

func (m *Memory) AttachMethod(ctx context.Context, method MethodRef, customer CustomerRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpAttachMethod); err != nil {
		return err
	}
	pm, err := m.lookup(OpAttachMethod, customer, method)
	if err != nil {
		return err
	}
	pm.customer = customer
	return nil
}

func (m *Memory) SetDefaultMethod(ctx context.Context, customer CustomerRef, method MethodRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpSetDefaultMethod); err != nil {
		return err
	}
	pm, err := m.lookup(OpSetDefaultMethod, customer, method)
	if err != nil {
		return err
	}
	if pm.customer != customer {
		return &Error{Op: OpSetDefaultMethod, Code: "invalid_request", Message: "payment method is not attached to customer"}
	}
	m.defaults[customer] = method
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, customer CustomerRef, priceRef string, method MethodRef) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpSubscribe); err != nil {
		return Subscription{}, err
	}
	if priceRef == "" {
		return Subscription{}, &Error{Op: OpSubscribe, Code: "invalid_request", Message: "price is required", Err: ErrMisconfig}
	}
	pm, err := m.lookup(OpSubscribe, customer, method)
	if err != nil {
		return Subscription{}, err
	}
	if err := chargeOutcome(OpSubscribe, pm.number, false); err != nil {
		return Subscription{}, err
	}

	ref := SubscriptionRef(newRef("sub"))
	s := &MemorySubscription{
		Customer:  customer,
		PriceRef:  priceRef,
		Method:    method,
		PeriodEnd: m.now().Add(m.period(priceRef)),
	}
	m.subscriptions[ref] = s
	return Subscription{Ref: ref, TransactionID: newRef("in"), PeriodEnd: s.PeriodEnd}, nil
}

func (m *Memory) CancelImmediately(ctx context.Context, ref SubscriptionRef) error {
	return m.updateSubscription(ctx, OpCancelImmediately, ref, func(s *MemorySubscription) {
		s.Cancelled = true
	})
}

func (m *Memory) CancelAtPeriodEnd(ctx context.Context, ref SubscriptionRef) error {
	return m.updateSubscription(ctx, OpCancelAtPeriodEnd, ref, func(s *MemorySubscription) {
		s.CancelAtPeriodEnd = true
	})
}

func (m *Memory) ResumeFromCancelAtPeriodEnd(ctx context.Context, ref SubscriptionRef) error {
	return m.updateSubscription(ctx, OpResume, ref, func(s *MemorySubscription) {
		s.CancelAtPeriodEnd = false
	})
}

func (m *Memory) Renew(ctx context.Context, customer CustomerRef, ref SubscriptionRef, priceRef string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OpRenew); err != nil {
		return Subscription{}, err
	}
	s, ok := m.subscriptions[ref]
	if !ok || s.Customer != customer {
		return Subscription{}, &Error{Op: OpRenew, Code: "resource_missing", Err: ErrNotFound}
	}
	if s.Cancelled || s.CancelAtPeriodEnd {
		return Subscription{}, declined(OpRenew, "subscription_canceled", "Subscription is not renewing.")
	}
	method := s.Method
	if def, ok := m.defaults[customer]; ok {
		method = def
	}
	pm, ok := m.methods[method]
	if !ok {
		return Subscription{}, declined(OpRenew, "payment_method_missing", "No payment method on file.")
	}
	if err := chargeOutcome(OpRenew, pm.number, true); err != nil {
		return Subscription{}, err
	}

	if priceRef != "" {
		s.PriceRef = priceRef
	}
	start := s.PeriodEnd
	if now := m.now(); now.After(start) {
		start = now
	}
	s.PeriodEnd = start.Add(m.period(s.PriceRef))
	return Subscription{Ref: ref, TransactionID: newRef("in"), PeriodEnd: s.PeriodEnd}, nil
}

func (m *Memory) updateSubscription(ctx context.Context, op string, ref SubscriptionRef, fn func(*MemorySubscription)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, op); err != nil {
		return err
	}
	s, ok := m.subscriptions[ref]
	if !ok {
		return &Error{Op: op, Code: "resource_missing", Err: ErrNotFound}
	}
	if s.Cancelled {
		return &Error{Op: op, Code: "subscription_canceled", Message: "subscription is already canceled"}
	}
	fn(s)
	return nil
}

// lookup resolves a method. Caller holds mu.
func (m *Memory) lookup(op string, customer CustomerRef, method MethodRef) (*memoryMethod, error) {
	if _, ok := m.customers[customer]; !ok {
		return nil, &Error{Op: op, Code: "resource_missing", Message: fmt.Sprintf("no such customer: %s", customer), Err: ErrNotFound}
	}
	pm, ok := m.methods[method]
	if !ok {
		return nil, &Error{Op: op, Code: "resource_missing", Message: fmt.Sprintf("no such payment method: %s", method), Err: ErrNotFound}
	}
	return pm, nil
}

func chargeOutcome(op, number string, renewal bool) error {
	switch {
	case number == CardDeclined:
		return declined(op, "card_declined", "Your card was declined.")
	case number == CardInsufficient:
		return declined(op, "insufficient_funds", "Your card has insufficient funds.")
	case number == CardDeclineOnRenew && renewal:
		return declined(op, "card_declined", "Your card was declined.")
	}
	return nil
}

func brandOf(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case strings.HasPrefix(number, "5"):
		return "mastercard"
	case strings.HasPrefix(number, "34"), strings.HasPrefix(number, "37"):
		return "amex"
	case strings.HasPrefix(number, "6"):
		return "discover"
	}
	return "unknown"
}
