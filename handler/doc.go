// Package handler adapts typed request handlers to net/http.
//
// A HandlerFunc receives a bound request value and returns a Response.
// Successful responses use the {"data": ...} envelope; failures are returned
// through Error and rendered by the ErrorHandler passed to Wrap, which lets the
// API layer own the mapping from domain errors to status codes.
package handler
