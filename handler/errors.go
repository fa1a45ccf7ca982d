package handler

import (
	"fmt"
	"net/http"
)

// HTTPError is an error that knows its HTTP representation.
type HTTPError struct {
	Status  int                 `json:"-"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Meta    map[string]any      `json:"meta,omitempty"`
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// NewHTTPError builds an HTTPError; an empty message falls back to the status text.
func NewHTTPError(status int, code, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{Status: status, Code: code, Message: message}
}

// errorResponse defers rendering of err to the configured ErrorHandler.
type errorResponse struct {
	err error
}

func (e errorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.err
}

// Error returns a Response that hands err to the error handler configured in Wrap.
func Error(err error) Response {
	return errorResponse{err: err}
}
