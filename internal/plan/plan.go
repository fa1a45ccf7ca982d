package plan

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

var (
	ErrPlanNotFound   = errors.New("membership plan not found")
	ErrInvalidPlan    = errors.New("invalid membership plan")
	ErrInvalidCatalog = errors.New("invalid plan catalog")
)

// Interval is the billing period of a plan.
type Interval string

const (
	IntervalNone    Interval = "none"
	IntervalMonthly Interval = "monthly"
	IntervalAnnual  Interval = "annual"
)

// Resource is a quota-bearing resource kind.
type Resource string

const (
	Products Resource = "products"
	Labels   Resource = "labels"
	QRCodes  Resource = "qr_codes"
)

// Valid reports whether r is a known resource kind.
func (r Resource) Valid() bool {
	return r == Products || r == Labels || r == QRCodes
}

// Feature is a binary capability granted by a plan.
type Feature string

const FeatureQRCodes Feature = "qr_codes"

// Price is an amount in minor units of an ISO 4217 currency.
type Price struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

func (p Price) IsFree() bool { return p.Amount == 0 }

func (p Price) String() string {
	return fmt.Sprintf("%d.%02d %s", p.Amount/100, p.Amount%100, p.Currency)
}

// Plan is an immutable catalog entry. Limits are per calendar month; 0 means unlimited.
type Plan struct {
	ID              string    `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description,omitempty" yaml:"description"`
	Price           Price     `json:"price" yaml:"price"`
	ExternalPriceID string    `json:"-" yaml:"external_price_id"`
	Interval        Interval  `json:"interval" yaml:"interval"`
	TrialDays       int       `json:"trial_days" yaml:"trial_days"`
	ProductLimit    int       `json:"product_limit" yaml:"product_limit"`
	LabelLimit      int       `json:"label_limit" yaml:"label_limit"`
	QRCodeLimit     int       `json:"qr_code_limit" yaml:"qr_code_limit"`
	Features        []Feature `json:"features" yaml:"features"`
	Default         bool      `json:"default" yaml:"default"`
	Public          bool      `json:"-" yaml:"public"`
	SortOrder       int       `json:"-" yaml:"sort_order"`
}

// LimitFor returns the monthly limit for r, 0 meaning unlimited.
func (p Plan) LimitFor(r Resource) int {
	switch r {
	case Products:
		return p.ProductLimit
	case Labels:
		return p.LabelLimit
	case QRCodes:
		return p.QRCodeLimit
	}
	return 0
}

func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

func (p Plan) GrantsTrial() bool { return p.TrialDays > 0 }

// TrialEnd returns the end of a trial started at start.
func (p Plan) TrialEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, p.TrialDays)
}

// TermEnd returns the end of a billing term starting at start.
// Plans without an interval have open-ended terms and return false.
func (p Plan) TermEnd(start time.Time) (time.Time, bool) {
	switch p.Interval {
	case IntervalMonthly:
		return addMonths(start, 1), true
	case IntervalAnnual:
		return addMonths(start, 12), true
	}
	return time.Time{}, false
}

// IsFree reports whether subscribing to p needs no gateway charge.
func (p Plan) IsFree() bool { return p.Price.IsFree() }

func (p Plan) Validate() error {
	var errs []error
	if strings.TrimSpace(p.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if p.Price.Amount < 0 {
		errs = append(errs, errors.New("price must not be negative"))
	}
	if _, err := currency.ParseISO(p.Price.Currency); err != nil {
		errs = append(errs, fmt.Errorf("currency %q: %w", p.Price.Currency, err))
	}
	switch p.Interval {
	case IntervalNone:
		if !p.IsFree() {
			errs = append(errs, errors.New("paid plans need a monthly or annual interval"))
		}
	case IntervalMonthly, IntervalAnnual:
		if !p.IsFree() && p.ExternalPriceID == "" {
			errs = append(errs, errors.New("paid plans need an external price id"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown interval %q", p.Interval))
	}
	if p.TrialDays < 0 || p.ProductLimit < 0 || p.LabelLimit < 0 || p.QRCodeLimit < 0 {
		errs = append(errs, errors.New("trial days and limits must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", ErrInvalidPlan, p.ID, errors.Join(errs...))
	}
	return nil
}

// addMonths adds n months, clamping the day to the last day of the target month
// so Jan 31 + 1 month is Feb 28/29 rather than early March.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}
