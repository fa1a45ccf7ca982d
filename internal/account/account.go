package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("account not found")
	ErrEmailTaken = errors.New("email is already registered")
)

// Status is the payment status of an account.
type Status string

const (
	StatusPending               Status = "pending"
	StatusTrial                 Status = "trial"
	StatusPaid                  Status = "paid"
	StatusCancellationRequested Status = "cancellation_requested"
	StatusCancellationConfirmed Status = "cancellation_confirmed"
	StatusCancelled             Status = "cancelled"
	StatusExpired               Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTrial, StatusPaid, StatusCancellationRequested,
		StatusCancellationConfirmed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CancellationInFlight reports whether s carries cancellation fields.
func (s Status) CancellationInFlight() bool {
	return s == StatusCancellationRequested || s == StatusCancellationConfirmed
}

// Account is a billable tenant. It is mutated only through lifecycle transitions.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	PlanID       string    `json:"plan_id"`
	Status       Status    `json:"payment_status"`

	TrialEndsAt          *time.Time `json:"trial_ends_at"`
	SubscriptionStartsAt *time.Time `json:"subscription_starts_at"`
	SubscriptionEndsAt   *time.Time `json:"subscription_ends_at"`

	CancellationRequestedAt *time.Time `json:"cancellation_requested_at"`
	CancellationEffectiveAt *time.Time `json:"cancellation_effective_at"`
	CancellationReason      string     `json:"cancellation_reason,omitempty"`
	CancelledAt             *time.Time `json:"cancelled_at"`

	AutoRenew              bool   `json:"auto_renew"`
	ExternalCustomerID     string `json:"-"`
	ExternalSubscriptionID string `json:"-"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// ClearCancellation drops every cancellation_* field.
func (a *Account) ClearCancellation() {
	a.CancellationRequestedAt = nil
	a.CancellationEffectiveAt = nil
	a.CancellationReason = ""
}

// Clone returns a deep copy so callers can mutate it without aliasing time pointers.
func (a Account) Clone() Account {
	a.TrialEndsAt = cloneTime(a.TrialEndsAt)
	a.SubscriptionStartsAt = cloneTime(a.SubscriptionStartsAt)
	a.SubscriptionEndsAt = cloneTime(a.SubscriptionEndsAt)
	a.CancellationRequestedAt = cloneTime(a.CancellationRequestedAt)
	a.CancellationEffectiveAt = cloneTime(a.CancellationEffectiveAt)
	a.CancelledAt = cloneTime(a.CancelledAt)
	a.DeletedAt = cloneTime(a.DeletedAt)
	return a
}

// Validate checks the field invariants tied to Status.
func (a Account) Validate() error {
	var errs []error
	if !a.Status.Valid() {
		errs = append(errs, errors.New("unknown payment status "+string(a.Status)))
	}
	if !a.Status.CancellationInFlight() &&
		(a.CancellationRequestedAt != nil || a.CancellationEffectiveAt != nil || a.CancellationReason != "") {
		errs = append(errs, errors.New("cancellation fields set outside a cancellation"))
	}
	if a.Status == StatusTrial && a.TrialEndsAt == nil {
		errs = append(errs, errors.New("trial account without trial end"))
	}
	if a.Status == StatusTrial && a.SubscriptionEndsAt != nil {
		errs = append(errs, errors.New("trial account with a subscription term"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Ptr returns a pointer to a copy of t.
func Ptr(t time.Time) *time.Time { return &t }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Equal reports whether the persisted fields of a and b match.
func (a Account) Equal(b Account) bool {
	return a.ID == b.ID &&
		a.Email == b.Email &&
		a.Name == b.Name &&
		a.PasswordHash == b.PasswordHash &&
		a.PlanID == b.PlanID &&
		a.Status == b.Status &&
		equalTime(a.TrialEndsAt, b.TrialEndsAt) &&
		equalTime(a.SubscriptionStartsAt, b.SubscriptionStartsAt) &&
		equalTime(a.SubscriptionEndsAt, b.SubscriptionEndsAt) &&
		equalTime(a.CancellationRequestedAt, b.CancellationRequestedAt) &&
		equalTime(a.CancellationEffectiveAt, b.CancellationEffectiveAt) &&
		a.CancellationReason == b.CancellationReason &&
		equalTime(a.CancelledAt, b.CancelledAt) &&
		a.AutoRenew == b.AutoRenew &&
		a.ExternalCustomerID == b.ExternalCustomerID &&
		a.ExternalSubscriptionID == b.ExternalSubscriptionID &&
		equalTime(a.DeletedAt, b.DeletedAt)
}
