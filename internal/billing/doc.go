// Package billing is the append-only invoice ledger plus the store of saved
// payment methods (brand, last four digits, expiry; never the card number).
package billing
