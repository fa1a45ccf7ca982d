package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable = errors.New("payment gateway unavailable")
	ErrTimeout     = errors.New("payment gateway timeout")
	ErrNotFound    = errors.New("payment gateway object not found")
	ErrMisconfig   = errors.New("payment gateway misconfigured")
)

// Error is returned by every gateway call that fails. Declined is true when the
// processor rejected the card or the charge; such failures are business
// outcomes, not outages.
type Error struct {
	Op       string
	Code     string
	Message  string
	Declined bool
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("gateway %s: %s: %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsDeclined reports whether err is a processor decline.
func IsDeclined(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Declined
}

// IsGatewayError reports whether err came from a gateway call.
func IsGatewayError(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr)
}

func declined(op, code, msg string) *Error {
	return &Error{Op: op, Code: code, Message: msg, Declined: true}
}
