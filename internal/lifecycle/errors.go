package lifecycle

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/nutrilabel/internal/account"
)

var (
	ErrPlanNotPurchasable = errors.New("plan does not require payment")
	ErrNoPaymentMethod    = errors.New("no payment method on file")
	ErrNoSubscription     = errors.New("account has no external subscription")
)

// ConflictError reports a transition that is not allowed from the account's
// current status. Status is attached so clients can resync.
type ConflictError struct {
	Op     string
	Status account.Status
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s not allowed in status %s: %s", e.Op, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s not allowed in status %s", e.Op, e.Status)
}

// AuthMismatchError is returned when password re-verification fails. The
// caller's session stays valid.
type AuthMismatchError struct {
	Op string
}

func (e *AuthMismatchError) Error() string {
	return e.Op + ": password does not match"
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsAuthMismatch(err error) bool {
	var e *AuthMismatchError
	return errors.As(err, &e)
}
