package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/nutrilabel/internal/plan"
)

// RecordStore persists billing records. Insert returns ErrDuplicateInvoice on
// an invoice number collision. Records are never updated or deleted.
type RecordStore interface {
	Insert(ctx context.Context, r Record) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Record, error)
}

// Ledger writes paid invoices for confirmed gateway transactions.
type Ledger struct {
	store      RecordStore
	now        func() time.Time
	newInvoice func(time.Time) string
}

type LedgerOption func(*Ledger)

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithInvoiceNumbers replaces the invoice number generator.
func WithInvoiceNumbers(fn func(time.Time) string) LedgerOption {
	return func(l *Ledger) {
		if fn != nil {
			l.newInvoice = fn
		}
	}
}

func NewLedger(store RecordStore, opts ...LedgerOption) *Ledger {
	if store == nil {
		panic("billing: nil record store")
	}
	l := &Ledger{store: store, now: time.Now, newInvoice: NewInvoiceNumber}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends a paid invoice for p. There is no dedup key: call it once per
// confirmed gateway transaction. An invoice number collision is retried once.
func (l *Ledger) Record(ctx context.Context, accountID uuid.UUID, p plan.Plan, amount plan.Price, externalTxnID string) (Record, error) {
	if accountID == uuid.Nil || amount.Amount < 0 || amount.Currency == "" {
		return Record{}, ErrInvalidRecord
	}

	now := l.now()
	rec := Record{
		ID:                    uuid.New(),
		AccountID:             accountID,
		PlanID:                p.ID,
		ExternalTransactionID: externalTxnID,
		Amount:                amount.Amount,
		Currency:              amount.Currency,
		Status:                StatusPaid,
		BillingDate:           now,
		PaidAt:                &now,
		CreatedAt:             now,
	}

	var err error
	for range 2 {
		rec.InvoiceNumber = l.newInvoice(now)
		if err = l.store.Insert(ctx, rec); !errors.Is(err, ErrDuplicateInvoice) {
			break
		}
	}
	if err != nil {
		return Record{}, fmt.Errorf("record invoice: %w", err)
	}
	return rec, nil
}

// History returns the account's records, newest first.
func (l *Ledger) History(ctx context.Context, accountID uuid.UUID) ([]Record, error) {
	return l.store.ListByAccount(ctx, accountID)
}
