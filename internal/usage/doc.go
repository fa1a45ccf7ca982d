// Package usage keeps the append-only usage event ledger and the quota tracker.
//
// Products and labels are limited per calendar month by counting the account's
// rows created since the first of the month. QR codes are gated by the
// qr_codes plan feature; their ledger counts are reported as analytics only.
package usage
