// Package resource stores the products, labels and QR codes an account owns.
//
// Products and labels are limited per calendar month by the account's plan;
// QR codes are gated by the plan's qr_codes feature. Every create and delete is
// also appended to the usage ledger, so analytics keep a created event after
// the row is gone.
package resource
