package gateway

import (
	"context"
	"time"
)

// Gateway is the contract with the external card processor. Implementations
// hold no local state that the caller depends on; every reference returned is
// the processor's own identifier.
//
// Calls are not idempotent. Callers must not retry a call whose outcome is
// unknown without first checking the processor state.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name string, addr Address) (CustomerRef, error)
	// TokenizePaymentMethod exchanges raw card data for a processor reference.
	// The card number never leaves this call.
	TokenizePaymentMethod(ctx context.Context, card Card) (PaymentMethod, error)
	AttachMethod(ctx context.Context, method MethodRef, customer CustomerRef) error
	SetDefaultMethod(ctx context.Context, customer CustomerRef, method MethodRef) error
	Subscribe(ctx context.Context, customer CustomerRef, priceRef string, method MethodRef) (Subscription, error)
	CancelImmediately(ctx context.Context, sub SubscriptionRef) error
	CancelAtPeriodEnd(ctx context.Context, sub SubscriptionRef) error
	ResumeFromCancelAtPeriodEnd(ctx context.Context, sub SubscriptionRef) error
	Renew(ctx context.Context, customer CustomerRef, sub SubscriptionRef, priceRef string) (Subscription, error)
}

type (
	CustomerRef     string
	MethodRef       string
	SubscriptionRef string
)

// Card is raw card input. It is only held in memory for the tokenize call.
type Card struct {
	Number     string
	ExpMonth   int
	ExpYear    int
	CVC        string
	HolderName string
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// PaymentMethod is a tokenized card with display data only.
type PaymentMethod struct {
	Ref      MethodRef
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
}

type Subscription struct {
	Ref           SubscriptionRef
	TransactionID string
	PeriodEnd     time.Time
}

// Operation names used in errors and logs.
const (
	OpCreateCustomer    = "create_customer"
	OpTokenize          = "tokenize_payment_method"
	OpAttachMethod      = "attach_method"
	OpSetDefaultMethod  = "set_default_method"
	OpSubscribe         = "subscribe"
	OpCancelImmediately = "cancel_immediately"
	OpCancelAtPeriodEnd = "cancel_at_period_end"
	OpResume            = "resume"
	OpRenew             = "renew"
)
