package httpapi

import (
	"github.com/dmitrymomot/nutrilabel/handler"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
)

type upgradeRequest struct {
	PlanID  string          `json:"plan_id"`
	Card    *cardRequest    `json:"card,omitempty"`
	Address gateway.Address `json:"billing_address"`
}

func (a *api) listPlans(_ handler.Context, _ struct{}) handler.Response {
	return handler.JSON(a.Plans.List(false))
}

func (a *api) currentPlan(ctx handler.Context, _ struct{}) handler.Response {
	p, err := a.Plans.Get(accountOf(ctx).PlanID)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(p)
}

func (a *api) upgrade(ctx handler.Context, req upgradeRequest) handler.Response {
	params := lifecycle.UpgradeParams{PlanID: req.PlanID, Address: req.Address}
	if req.Card != nil {
		if err := req.Card.validate(a.Lifecycle.Now()); err != nil {
			return handler.Error(err)
		}
		card := req.Card.card()
		params.Card = &card
	}

	acc, err := a.Lifecycle.UpgradePlan(ctx, accountOf(ctx).ID, params)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(a.accountView(acc))
}
