package httpapi

import (
	"strings"
	"time"

	"github.com/dmitrymomot/nutrilabel/handler"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/pkg/validator"
)

// cardRequest carries raw card data for one tokenize call. It is never
// stored or logged.
type cardRequest struct {
	Number     string `json:"number"`
	ExpMonth   int    `json:"exp_month"`
	ExpYear    int    `json:"exp_year"`
	CVC        string `json:"cvc"`
	HolderName string `json:"holder_name"`
}

func (c cardRequest) validate(now time.Time) error {
	return validator.Apply(cardRules(c, now)...)
}

func (c cardRequest) card() gateway.Card {
	return gateway.Card{
		Number:     strings.NewReplacer(" ", "", "-", "").Replace(c.Number),
		ExpMonth:   c.ExpMonth,
		ExpYear:    c.ExpYear,
		CVC:        c.CVC,
		HolderName: strings.TrimSpace(c.HolderName),
	}
}

type paymentRequest struct {
	PlanID  string          `json:"plan_id"`
	Card    cardRequest     `json:"card"`
	Address gateway.Address `json:"billing_address"`
}

type requestCancellationRequest struct {
	Reason string `json:"reason"`
}

type confirmCancellationRequest struct {
	Password string `json:"password"`
}

type autoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew"`
}

func (a *api) completePayment(ctx handler.Context, req paymentRequest) handler.Response {
	if err := validator.Apply(append([]validator.Rule{
		validator.Required("plan_id", req.PlanID),
		validator.Required("billing_address.line1", req.Address.Line1),
		validator.Required("billing_address.city", req.Address.City),
		validator.Required("billing_address.postal_code", req.Address.PostalCode),
		validator.Required("billing_address.country", req.Address.Country),
	}, cardRules(req.Card, a.Lifecycle.Now())...)...); err != nil {
		return handler.Error(err)
	}

	acc, err := a.Lifecycle.CompletePayment(ctx, accountOf(ctx).ID, lifecycle.PaymentParams{
		PlanID:  req.PlanID,
		Card:    req.Card.card(),
		Address: req.Address,
	})
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(a.accountView(acc))
}

func cardRules(c cardRequest, now time.Time) []validator.Rule {
	return []validator.Rule{
		validator.CardNumber("card.number", c.Number),
		validator.CardExpiry("card.exp_month", c.ExpMonth, c.ExpYear, now),
		validator.CVC("card.cvc", c.CVC),
		validator.Required("card.holder_name", c.HolderName),
		validator.MaxLen("card.holder_name", c.HolderName, 255),
	}
}

func (a *api) requestCancellation(ctx handler.Context, req requestCancellationRequest) handler.Response {
	if err := validator.Apply(validator.MaxLen("reason", req.Reason, 1000)); err != nil {
		return handler.Error(err)
	}
	acc, err := a.Lifecycle.RequestCancellation(ctx, accountOf(ctx).ID, strings.TrimSpace(req.Reason))
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(a.Lifecycle.CancellationStatus(acc))
}

func (a *api) confirmCancellation(ctx handler.Context, req confirmCancellationRequest) handler.Response {
	if err := validator.Apply(validator.Required("password", req.Password)); err != nil {
		return handler.Error(err)
	}
	acc, err := a.Lifecycle.ConfirmCancellation(ctx, accountOf(ctx).ID, req.Password)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(a.Lifecycle.CancellationStatus(acc))
}

func (a *api) cancelCancellationRequest(ctx handler.Context, _ struct{}) handler.Response {
	acc, err := a.Lifecycle.CancelCancellationRequest(ctx, accountOf(ctx).ID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(a.Lifecycle.CancellationStatus(acc))
}

func (a *api) cancellationStatus(ctx handler.Context, _ struct{}) handler.Response {
	return handler.JSON(a.Lifecycle.CancellationStatus(accountOf(ctx)))
}

func (a *api) setAutoRenew(ctx handler.Context, req autoRenewRequest) handler.Response {
	if req.AutoRenew == nil {
		var verr validator.ValidationErrors
		verr.Add("auto_renew", "is required")
		return handler.Error(verr)
	}
	acc, err := a.Lifecycle.SetAutoRenew(ctx, accountOf(ctx).ID, *req.AutoRenew)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(a.accountView(acc))
}

func (a *api) billingHistory(ctx handler.Context, _ struct{}) handler.Response {
	records, err := a.Invoices.History(ctx, accountOf(ctx).ID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(records)
}

func (a *api) paymentMethods(ctx handler.Context, _ struct{}) handler.Response {
	methods, err := a.Methods.List(ctx, accountOf(ctx).ID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(methods)
}
