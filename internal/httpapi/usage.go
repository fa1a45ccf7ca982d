package httpapi

import (
	"github.com/dmitrymomot/nutrilabel/handler"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/pkg/validator"
)

type checkRequest struct {
	Action string `query:"action"`
}

type checkResponse struct {
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
}

// actions maps the client's action names to the resource they create.
var actions = map[string]plan.Resource{
	"create_product": plan.Products,
	"create_label":   plan.Labels,
	"create_qr_code": plan.QRCodes,
}

func (a *api) currentUsage(ctx handler.Context, _ struct{}) handler.Response {
	u, err := a.Usage.CurrentUsage(ctx, accountOf(ctx))
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(u)
}

func (a *api) checkUsage(ctx handler.Context, req checkRequest) handler.Response {
	kind, ok := actions[req.Action]
	if !ok {
		var verr validator.ValidationErrors
		verr.Add("action", "must be one of create_product, create_label, create_qr_code")
		return handler.Error(verr)
	}
	acc := accountOf(ctx)
	if !lifecycle.CanUseFeatures(acc, a.Lifecycle.Now()) {
		return handler.JSON(checkResponse{Action: req.Action, Allowed: false})
	}
	allowed, err := a.Usage.CanCreate(ctx, acc, kind)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(checkResponse{Action: req.Action, Allowed: allowed})
}
