package httpapi

import (
	"github.com/dmitrymomot/nutrilabel/handler"
	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/auth"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	PlanID   string `json:"plan_id"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	Account account.Account  `json:"user"`
	Access  lifecycle.Access `json:"access"`
}

type sessionResponse struct {
	accountResponse
	Token auth.Token `json:"token"`
}

func (a *api) accountView(acc account.Account) accountResponse {
	return accountResponse{Account: acc, Access: a.Lifecycle.Access(acc)}
}

func (a *api) register(ctx handler.Context, req registerRequest) handler.Response {
	sess, err := a.Auth.Register(ctx, auth.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		PlanID:   req.PlanID,
	})
	if err != nil {
		return handler.Error(err)
	}
	return handler.Created(sessionResponse{accountResponse: a.accountView(sess.Account), Token: sess.Token})
}

func (a *api) login(ctx handler.Context, req loginRequest) handler.Response {
	sess, err := a.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return handler.Error(err)
	}
	return handler.JSON(sessionResponse{accountResponse: a.accountView(sess.Account), Token: sess.Token})
}

func (a *api) user(ctx handler.Context, _ struct{}) handler.Response {
	return handler.JSON(a.accountView(accountOf(ctx)))
}
