// Package httpapi exposes accounts, membership plans, billing, usage and
// owned resources as a JSON API over chi.
//
// Every authenticated request reconciles the account first, so a trial or
// grace period that ran out is reflected before the handler runs.
// Successful responses use {"data": ...}; errors use
// {"code", "message", "errors", "meta"}.
package httpapi
