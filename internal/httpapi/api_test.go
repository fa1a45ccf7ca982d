package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/auth"
	"github.com/dmitrymomot/nutrilabel/internal/billing"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/httpapi"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/internal/resource"
	"github.com/dmitrymomot/nutrilabel/internal/usage"
	"github.com/dmitrymomot/nutrilabel/pkg/httpserver"
	"github.com/dmitrymomot/nutrilabel/pkg/jwt"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
	"github.com/dmitrymomot/nutrilabel/pkg/qrcode"
)

const password = "s3cret-passw0rd"

type envelope struct {
	Data    json.RawMessage     `json:"data"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Meta    map[string]any      `json:"meta"`
}

type server struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T, checks ...httpserver.Check) *server {
	t.Helper()

	catalog, err := plan.NewCatalog([]plan.Plan{
		{ID: "free", Name: "Free", Price: plan.Price{Currency: "USD"}, Interval: plan.IntervalNone, TrialDays: 14, ProductLimit: 1, LabelLimit: 1, Default: true, Public: true},
		{ID: "pro", Name: "Pro", Price: plan.Price{Amount: 4900, Currency: "USD"}, ExternalPriceID: "price_pro", Interval: plan.IntervalMonthly, QRCodeLimit: 10, Features: []plan.Feature{plan.FeatureQRCodes}, Public: true},
	})
	require.NoError(t, err)

	log := logger.Discard()
	accounts := account.NewMemoryStore()
	methods := billing.NewMemoryMethodStore()
	invoices := billing.NewLedger(billing.NewMemoryRecordStore())
	hasher := auth.NewHasher(4)
	lc := lifecycle.New(lifecycle.Deps{
		Accounts:  accounts,
		Plans:     catalog,
		Gateway:   gateway.NewMemory(),
		Invoices:  invoices,
		Methods:   methods,
		Passwords: hasher,
	}, lifecycle.WithLogger(log))

	tokens, err := jwt.New("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	items := resource.NewMemoryStore()
	ledger := usage.NewMemoryLedger()
	tracker := usage.NewTracker(catalog, ledger, items)

	h := httpapi.NewRouter(httpapi.Deps{
		Auth:      auth.NewService(accounts, lc, hasher, tokens, log),
		Lifecycle: lc,
		Plans:     catalog,
		Usage:     tracker,
		Resources: resource.NewService(accounts, items, tracker, ledger, qrcode.NewRenderer(qrcode.Medium), resource.WithLogger(log)),
		Invoices:  invoices,
		Methods:   methods,
		Tokens:    tokens,
		Logger:    log,
		Checks:    checks,
	})
	return &server{t: t, handler: h}
}

func (s *server) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "image/png" {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

type session struct {
	User   account.Account  `json:"user"`
	Access lifecycle.Access `json:"access"`
	Token  auth.Token       `json:"token"`
}

func (s *server) register(email string) session {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/register", "", map[string]string{
		"email": email, "name": "Jane", "password": password,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess session
	require.NoError(s.t, json.Unmarshal(env.Data, &sess))
	return sess
}

func (s *server) pay(token, planID string) {
	s.t.Helper()
	rec, _ := s.do(http.MethodPost, "/billing/payment-intent", token, map[string]any{
		"plan_id": planID,
		"card": map[string]any{
			"number": gateway.CardSuccess, "exp_month": 12, "exp_year": 2040, "cvc": "123", "holder_name": "Jane Doe",
		},
		"billing_address": map[string]string{
			"line1": "1 Main St", "city": "Springfield", "postal_code": "12345", "country": "US",
		},
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRegisterLoginAndUser(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	sess := s.register("jane@example.com")
	assert.Equal(t, account.StatusTrial, sess.User.Status)
	assert.True(t, sess.Access.CanUseFeatures)
	assert.Equal(t, "Bearer", sess.Token.TokenType)

	rec, env := s.do(http.MethodPost, "/login", "", map[string]string{"email": "JANE@example.com", "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login session
	require.NoError(t, json.Unmarshal(env.Data, &login))
	assert.Equal(t, sess.User.ID, login.User.ID)

	rec, env = s.do(http.MethodGet, "/user", login.Token.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user session
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "jane@example.com", user.User.Email)
	assert.Equal(t, "free", user.Access.PlanID)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	rec, env := s.do(http.MethodPost, "/register", "", map[string]string{"email": "nope", "name": "", "password": "short"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_failed", env.Code)
	assert.Contains(t, env.Errors, "email")
	assert.Contains(t, env.Errors, "name")
	assert.Contains(t, env.Errors, "password")

	s.register("taken@example.com")
	rec, env = s.do(http.MethodPost, "/register", "", map[string]string{"email": "taken@example.com", "name": "X", "password": password})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Errors, "email")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	s.register("jane@example.com")

	rec, env := s.do(http.MethodPost, "/login", "", map[string]string{"email": "jane@example.com", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", env.Code)
}

func TestAuthRequired(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	rec, env := s.do(http.MethodGet, "/user", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Code)

	rec, _ = s.do(http.MethodGet, "/usage", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMembershipPlans(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	rec, env := s.do(http.MethodGet, "/membership-plans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var plans []plan.Plan
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	require.Len(t, plans, 2)

	sess := s.register("jane@example.com")
	rec, env = s.do(http.MethodGet, "/membership-plans/current", sess.Token.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current plan.Plan
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, "free", current.ID)
}

func TestUpgrade_SamePlanIsConflict(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	sess := s.register("jane@example.com")
	s.pay(sess.Token.AccessToken, "pro")

	rec, env := s.do(http.MethodPost, "/membership-plans/upgrade", sess.Token.AccessToken, map[string]string{"plan_id": "pro"})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "invalid_state", env.Code)
	assert.Equal(t, string(account.StatusPaid), env.Meta["payment_status"])
}

func TestPaymentAndCancellationFlow(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	sess := s.register("jane@example.com")
	token := sess.Token.AccessToken

	s.pay(token, "pro")

	rec, env := s.do(http.MethodGet, "/billing/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []billing.Record
	require.NoError(t, json.Unmarshal(env.Data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, int64(4900), records[0].Amount)

	rec, env = s.do(http.MethodGet, "/billing/payment-methods", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var methods []billing.PaymentMethod
	require.NoError(t, json.Unmarshal(env.Data, &methods))
	require.Len(t, methods, 1)
	assert.Equal(t, "4242", methods[0].Last4)

	rec, env = s.do(http.MethodPost, "/billing/request-cancellation", token, map[string]string{"reason": "too pricey"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status lifecycle.CancellationStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, account.StatusCancellationRequested, status.Status)
	assert.True(t, status.CanConfirm)

	rec, env = s.do(http.MethodPost, "/billing/confirm-cancellation", token, map[string]string{"password": "wrong-password"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "password_mismatch", env.Code)

	rec, env = s.do(http.MethodPost, "/billing/confirm-cancellation", token, map[string]string{"password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, account.StatusCancellationConfirmed, status.Status)
	assert.Equal(t, 3, status.GraceDaysLeft)

	// Features stay available during the grace period.
	rec, _ = s.do(http.MethodPost, "/products", token, map[string]string{"name": "Oat bar"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = s.do(http.MethodPost, "/billing/cancel-cancellation-request", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, account.StatusPaid, status.Status)
	assert.Nil(t, status.RequestedAt)
}

func TestCancelCancellationRequest_Conflict(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	sess := s.register("jane@example.com")

	rec, env := s.do(http.MethodPost, "/billing/cancel-cancellation-request", sess.Token.AccessToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_state", env.Code)
	assert.Equal(t, string(account.StatusTrial), env.Meta["payment_status"])
}

func TestTrialCancellation_Immediate(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	token := s.register("jane@example.com").Token.AccessToken

	rec, env := s.do(http.MethodGet, "/usage/check?action=create_label", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"create_label","allowed":true}`, string(env.Data))

	rec, env = s.do(http.MethodPost, "/billing/request-cancellation", token, map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status lifecycle.CancellationStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, account.StatusExpired, status.Status)

	rec, env = s.do(http.MethodPost, "/labels", token, map[string]string{"name": "Front"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "subscription_required", env.Code)
	assert.Equal(t, string(account.StatusExpired), env.Meta["payment_status"])

	rec, env = s.do(http.MethodGet, "/usage/check?action=create_label", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"create_label","allowed":false}`, string(env.Data))
}

func TestAutoRenew(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	token := s.register("jane@example.com").Token.AccessToken

	rec, env := s.do(http.MethodPatch, "/billing/auto-renew", token, map[string]any{})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Errors, "auto_renew")

	s.pay(token, "pro")
	rec, env = s.do(http.MethodPatch, "/billing/auto-renew", token, map[string]any{"auto_renew": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view session
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.False(t, view.Access.AutoRenew)
}

func TestResources_QuotaAndFeatureGate(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	token := s.register("jane@example.com").Token.AccessToken

	rec, env := s.do(http.MethodPost, "/products", token, map[string]string{"name": "Granola"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item resource.Item
	require.NoError(t, json.Unmarshal(env.Data, &item))

	rec, env = s.do(http.MethodPost, "/products", token, map[string]string{"name": "Muesli"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "quota_exceeded", env.Code)
	assert.EqualValues(t, 1, env.Meta["limit"])

	rec, env = s.do(http.MethodGet, "/usage/check?action=create_product", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"create_product","allowed":false}`, string(env.Data))

	rec, env = s.do(http.MethodPost, "/qr-codes", token, map[string]string{"name": "Box", "content": "https://example.com"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "feature_unavailable", env.Code)

	rec, _ = s.do(http.MethodDelete, "/products/"+item.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = s.do(http.MethodGet, "/products/"+item.ID.String(), token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodGet, "/products/not-a-uuid", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQRCodes(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	token := s.register("jane@example.com").Token.AccessToken
	s.pay(token, "pro")

	rec, env := s.do(http.MethodPost, "/qr-codes", token, map[string]string{"name": "Box", "content": "https://example.com/p/1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var qr resource.Item
	require.NoError(t, json.Unmarshal(env.Data, &qr))

	rec, _ = s.do(http.MethodGet, "/qr-codes/"+qr.ID.String()+"/image?size=128", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec, _ = s.do(http.MethodGet, "/qr-codes/"+qr.ID.String()+"/image?size=5", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = s.do(http.MethodDelete, "/qr-codes/"+qr.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = s.do(http.MethodGet, "/usage", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var u usage.Usage
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.True(t, u.QRCodes.Enabled)
	assert.Equal(t, 1, u.QRCodes.Total.Created)
	assert.Equal(t, 1, u.QRCodes.Total.Deleted)
}

func TestUsageCheck_UnknownAction(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	token := s.register("jane@example.com").Token.AccessToken

	rec, env := s.do(http.MethodGet, "/usage/check?action=launch_rocket", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Errors, "action")
}

func TestPaymentIntent_DeclinedCard(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	token := s.register("jane@example.com").Token.AccessToken

	rec, env := s.do(http.MethodPost, "/billing/payment-intent", token, map[string]any{
		"plan_id": "pro",
		"card": map[string]any{
			"number": gateway.CardDeclined, "exp_month": 12, "exp_year": 2040, "cvc": "123", "holder_name": "Jane Doe",
		},
		"billing_address": map[string]string{
			"line1": "1 Main St", "city": "Springfield", "postal_code": "12345", "country": "US",
		},
	})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "payment_failed", env.Code)
	assert.Equal(t, "declined", env.Meta["reason"])

	rec, env = s.do(http.MethodGet, "/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view session
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, account.StatusTrial, view.User.Status)
}

func TestPaymentIntent_Validation(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	token := s.register("jane@example.com").Token.AccessToken

	rec, env := s.do(http.MethodPost, "/billing/payment-intent", token, map[string]any{
		"plan_id": "pro",
		"card":    map[string]any{"number": "1234", "exp_month": 13, "exp_year": 2040, "cvc": "1"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	for _, field := range []string{"card.number", "card.exp_month", "card.cvc", "card.holder_name", "billing_address.line1"} {
		assert.Contains(t, env.Errors, field)
	}

	rec, _ = s.do(http.MethodPost, "/billing/payment-intent", token, map[string]any{"unknown": true})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := newServer(t, httpserver.Check{Name: "postgres", Fn: func(context.Context) error { return nil }})
	rec, _ := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s = newServer(t, httpserver.Check{Name: "redis", Fn: func(context.Context) error { return errors.New("down") }})
	rec, _ = s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
