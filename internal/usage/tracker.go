package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
)

// PlanLookup resolves an account's plan.
type PlanLookup interface {
	Get(id string) (plan.Plan, error)
}

// ResourceCounter counts owned resources created in [since, until].
// Deleted resources are gone from the table and no longer count.
type ResourceCounter interface {
	CountCreated(ctx context.Context, accountID uuid.UUID, r plan.Resource, since, until time.Time) (int, error)
}

// Quota is the monthly usage of a numerically limited resource. Limit 0 is unlimited.
type Quota struct {
	Used  int `json:"used"`
	Limit int `json:"limit"`
}

// QRCodeUsage is advisory analytics; QR creation is gated by the plan feature flag.
type QRCodeUsage struct {
	Enabled      bool   `json:"enabled"`
	CurrentMonth Counts `json:"current_month"`
	Total        Counts `json:"total"`
	Limit        int    `json:"limit"`
}

type Usage struct {
	PeriodStart time.Time   `json:"period_start"`
	Products    Quota       `json:"products"`
	Labels      Quota       `json:"labels"`
	QRCodes     QRCodeUsage `json:"qr_codes"`
}

// Tracker answers whether an account may create one more resource.
type Tracker struct {
	plans   PlanLookup
	ledger  Ledger
	counter ResourceCounter
	now     func() time.Time
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTracker(plans PlanLookup, ledger Ledger, counter ResourceCounter, opts ...Option) *Tracker {
	if plans == nil || ledger == nil || counter == nil {
		panic("usage: nil dependency")
	}
	t := &Tracker{plans: plans, ledger: ledger, counter: counter, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MonthStart returns the first instant of the calendar month containing t.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func (t *Tracker) CurrentUsage(ctx context.Context, acc account.Account) (Usage, error) {
	p, err := t.plans.Get(acc.PlanID)
	if err != nil {
		return Usage{}, err
	}
	now := t.now()
	start := MonthStart(now)

	u := Usage{PeriodStart: start}
	for _, r := range []plan.Resource{plan.Products, plan.Labels} {
		used, err := t.counter.CountCreated(ctx, acc.ID, r, start, now)
		if err != nil {
			return Usage{}, fmt.Errorf("count %s: %w", r, err)
		}
		q := Quota{Used: used, Limit: p.LimitFor(r)}
		if r == plan.Products {
			u.Products = q
		} else {
			u.Labels = q
		}
	}

	month, err := t.ledger.Summary(ctx, acc.ID, plan.QRCodes, start)
	if err != nil {
		return Usage{}, err
	}
	total, err := t.ledger.Summary(ctx, acc.ID, plan.QRCodes, time.Time{})
	if err != nil {
		return Usage{}, err
	}
	u.QRCodes = QRCodeUsage{
		Enabled:      p.HasFeature(plan.FeatureQRCodes),
		CurrentMonth: month,
		Total:        total,
		Limit:        p.QRCodeLimit,
	}
	return u, nil
}

// Check returns nil when acc may create one more r, *QuotaExceededError for
// products and labels at their limit and *FeatureUnavailableError for QR codes
// on plans without the feature. The check reserves nothing; callers serialize
// check and insert under the account lock.
func (t *Tracker) Check(ctx context.Context, acc account.Account, r plan.Resource) error {
	p, err := t.plans.Get(acc.PlanID)
	if err != nil {
		return err
	}

	switch r {
	case plan.QRCodes:
		if !p.HasFeature(plan.FeatureQRCodes) {
			return &FeatureUnavailableError{Feature: plan.FeatureQRCodes, PlanID: p.ID}
		}
		return nil
	case plan.Products, plan.Labels:
	default:
		return fmt.Errorf("unknown resource %q", r)
	}

	limit := p.LimitFor(r)
	if limit == 0 {
		return nil
	}

	now := t.now()
	used, err := t.counter.CountCreated(ctx, acc.ID, r, MonthStart(now), now)
	if err != nil {
		return fmt.Errorf("count %s: %w", r, err)
	}
	if used >= limit {
		return &QuotaExceededError{Resource: r, Limit: limit, Used: used}
	}
	return nil
}

// CanCreate is Check reduced to a boolean; only infrastructure errors are returned.
func (t *Tracker) CanCreate(ctx context.Context, acc account.Account, r plan.Resource) (bool, error) {
	switch err := t.Check(ctx, acc, r).(type) {
	case nil:
		return true, nil
	case *QuotaExceededError, *FeatureUnavailableError:
		return false, nil
	default:
		return false, err
	}
}
