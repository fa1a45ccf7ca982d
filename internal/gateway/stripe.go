package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeConfig configures the Stripe adapter.
type StripeConfig struct {
	SecretKey string
	// MaxNetworkRetries is handled by the Stripe transport, which sends an
	// idempotency key with every retried request.
	MaxNetworkRetries int64
}

// Stripe implements Gateway on top of the Stripe API.
type Stripe struct {
	api *client.API
}

func NewStripe(cfg StripeConfig) (*Stripe, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key is required", ErrMisconfig)
	}
	backendCfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(cfg.MaxNetworkRetries)}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}
	return &Stripe{api: client.New(cfg.SecretKey, backends)}, nil
}

func (s *Stripe) CreateCustomer(ctx context.Context, email, name string, addr Address) (CustomerRef, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	if addr.Line1 != "" {
		params.Address = &stripe.AddressParams{
			Line1:      stripe.String(addr.Line1),
			Line2:      stripe.String(addr.Line2),
			City:       stripe.String(addr.City),
			State:      stripe.String(addr.State),
			PostalCode: stripe.String(addr.PostalCode),
			Country:    stripe.String(addr.Country),
		}
	}
	params.Context = ctx

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", stripeError(OpCreateCustomer, err)
	}
	return CustomerRef(c.ID), nil
}

func (s *Stripe) TokenizePaymentMethod(ctx context.Context, card Card) (PaymentMethod, error) {
	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.Int64(int64(card.ExpMonth)),
			ExpYear:  stripe.Int64(int64(card.ExpYear)),
			CVC:      stripe.String(card.CVC),
		},
	}
	if card.HolderName != "" {
		params.BillingDetails = &stripe.PaymentMethodBillingDetailsParams{Name: stripe.String(card.HolderName)}
	}
	params.Context = ctx

	pm, err := s.api.PaymentMethods.New(params)
	if err != nil {
		return PaymentMethod{}, stripeError(OpTokenize, err)
	}
	out := PaymentMethod{Ref: MethodRef(pm.ID)}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
		out.ExpMonth = int(pm.Card.ExpMonth)
		out.ExpYear = int(pm.Card.ExpYear)
	}
	return out, nil
}

func (s *Stripe) AttachMethod(ctx context.Context, method MethodRef, customer CustomerRef) error {
	params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(string(customer))}
	params.Context = ctx
	if _, err := s.api.PaymentMethods.Attach(string(method), params); err != nil {
		return stripeError(OpAttachMethod, err)
	}
	return nil
}

func (s *Stripe) SetDefaultMethod(ctx context.Context, customer CustomerRef, method MethodRef) error {
	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(string(method)),
		},
	}
	params.Context = ctx
	if _, err := s.api.Customers.Update(string(customer), params); err != nil {
		return stripeError(OpSetDefaultMethod, err)
	}
	return nil
}

func (s *Stripe) Subscribe(ctx context.Context, customer CustomerRef, priceRef string, method MethodRef) (Subscription, error) {
	if priceRef == "" {
		return Subscription{}, &Error{Op: OpSubscribe, Code: "invalid_request", Message: "price is required", Err: ErrMisconfig}
	}
	params := &stripe.SubscriptionParams{
		Customer:             stripe.String(string(customer)),
		Items:                []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceRef)}},
		DefaultPaymentMethod: stripe.String(string(method)),
		PaymentBehavior:      stripe.String("error_if_incomplete"),
	}
	params.AddExpand("latest_invoice")
	params.Context = ctx

	sub, err := s.api.Subscriptions.New(params)
	if err != nil {
		return Subscription{}, stripeError(OpSubscribe, err)
	}
	return subscriptionFrom(sub), nil
}

func (s *Stripe) CancelImmediately(ctx context.Context, ref SubscriptionRef) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := s.api.Subscriptions.Cancel(string(ref), params); err != nil {
		return stripeError(OpCancelImmediately, err)
	}
	return nil
}

func (s *Stripe) CancelAtPeriodEnd(ctx context.Context, ref SubscriptionRef) error {
	return s.setCancelAtPeriodEnd(ctx, OpCancelAtPeriodEnd, ref, true)
}

func (s *Stripe) ResumeFromCancelAtPeriodEnd(ctx context.Context, ref SubscriptionRef) error {
	return s.setCancelAtPeriodEnd(ctx, OpResume, ref, false)
}

func (s *Stripe) setCancelAtPeriodEnd(ctx context.Context, op string, ref SubscriptionRef, v bool) error {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(v)}
	params.Context = ctx
	if _, err := s.api.Subscriptions.Update(string(ref), params); err != nil {
		return stripeError(op, err)
	}
	return nil
}

// Renew confirms the processor's own automatic renewal: Stripe bills the
// subscription at period end, so renewal succeeds when the subscription is
// active with a period that ends in the future.
func (s *Stripe) Renew(ctx context.Context, customer CustomerRef, ref SubscriptionRef, _ string) (Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.AddExpand("latest_invoice")
	params.Context = ctx

	sub, err := s.api.Subscriptions.Get(string(ref), params)
	if err != nil {
		return Subscription{}, stripeError(OpRenew, err)
	}
	if sub.Customer != nil && sub.Customer.ID != string(customer) {
		return Subscription{}, &Error{Op: OpRenew, Code: "resource_missing", Message: "subscription belongs to another customer", Err: ErrNotFound}
	}
	if sub.Status != stripe.SubscriptionStatusActive {
		return Subscription{}, declined(OpRenew, string(sub.Status), "Subscription is not active.")
	}
	out := subscriptionFrom(sub)
	if !out.PeriodEnd.After(time.Now()) {
		return Subscription{}, declined(OpRenew, "renewal_pending", "Renewal payment has not been confirmed yet.")
	}
	return out, nil
}

func subscriptionFrom(sub *stripe.Subscription) Subscription {
	out := Subscription{
		Ref:       SubscriptionRef(sub.ID),
		PeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.LatestInvoice != nil {
		out.TransactionID = sub.LatestInvoice.ID
	}
	return out
}

func stripeError(op string, err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return &Error{Op: op, Code: "transport", Err: err}
	}
	out := &Error{
		Op:       op,
		Code:     string(serr.Code),
		Message:  serr.Msg,
		Declined: serr.Type == stripe.ErrorTypeCard,
		Err:      err,
	}
	if serr.DeclineCode != "" {
		out.Code = string(serr.DeclineCode)
	}
	if out.Code == "" {
		out.Code = "http_" + strconv.Itoa(serr.HTTPStatusCode)
	}
	if serr.Code == stripe.ErrorCodeResourceMissing {
		out.Err = errors.Join(ErrNotFound, err)
	}
	return out
}
