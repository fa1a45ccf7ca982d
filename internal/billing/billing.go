package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDuplicateInvoice = errors.New("invoice number already exists")
	ErrMethodNotFound   = errors.New("payment method not found")
	ErrInvalidMethod    = errors.New("invalid payment method")
	ErrInvalidRecord    = errors.New("invalid billing record")
)

// Status of a billing record.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Record is an append-only invoice row. A renewal writes a new record.
type Record struct {
	ID                    uuid.UUID  `json:"id"`
	AccountID             uuid.UUID  `json:"account_id"`
	PlanID                string     `json:"plan_id"`
	InvoiceNumber         string     `json:"invoice_number"`
	ExternalTransactionID string     `json:"external_transaction_id"`
	Amount                int64      `json:"amount"`
	Currency              string     `json:"currency"`
	Status                Status     `json:"status"`
	BillingDate           time.Time  `json:"billing_date"`
	PaidAt                *time.Time `json:"paid_at"`
	CreatedAt             time.Time  `json:"created_at"`
}

// PaymentMethod stores display data only: brand, last four digits and expiry.
type PaymentMethod struct {
	ID         uuid.UUID `json:"id"`
	AccountID  uuid.UUID `json:"-"`
	ExternalID string    `json:"-"`
	Brand      string    `json:"brand"`
	Last4      string    `json:"last4"`
	ExpMonth   int       `json:"exp_month"`
	ExpYear    int       `json:"exp_year"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m PaymentMethod) validate() error {
	if m.AccountID == uuid.Nil || m.ExternalID == "" {
		return fmt.Errorf("%w: account and external id are required", ErrInvalidMethod)
	}
	if len(m.Last4) != 4 || strings.Trim(m.Last4, "0123456789") != "" {
		return fmt.Errorf("%w: last4 must be exactly four digits", ErrInvalidMethod)
	}
	if m.ExpMonth < 1 || m.ExpMonth > 12 {
		return fmt.Errorf("%w: expiry month out of range", ErrInvalidMethod)
	}
	return nil
}

// NewInvoiceNumber returns INV-YYYYMM-XXXXXXXX with eight random uppercase hex characters.
func NewInvoiceNumber(at time.Time) string {
	return "INV-" + at.UTC().Format("200601") + "-" + strings.ToUpper(uuid.NewString()[:8])
}
