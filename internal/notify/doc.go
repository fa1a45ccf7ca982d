// Package notify delivers account lifecycle notifications (payment received,
// cancellation confirmed, renewal failed and so on) through Postmark or the log.
package notify
