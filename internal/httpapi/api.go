package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/nutrilabel/binder"
	"github.com/dmitrymomot/nutrilabel/handler"
	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/auth"
	"github.com/dmitrymomot/nutrilabel/internal/billing"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/internal/resource"
	"github.com/dmitrymomot/nutrilabel/internal/usage"
	"github.com/dmitrymomot/nutrilabel/pkg/httpserver"
	"github.com/dmitrymomot/nutrilabel/pkg/jwt"
)

// Deps are the services behind the JSON API.
type Deps struct {
	Auth      *auth.Service
	Lifecycle *lifecycle.Service
	Plans     *plan.Catalog
	Usage     *usage.Tracker
	Resources *resource.Service
	Invoices  *billing.Ledger
	Methods   billing.MethodStore
	Tokens    *jwt.Service
	Logger    *slog.Logger
	// Checks back the /healthz endpoint.
	Checks []httpserver.Check
}

type api struct {
	Deps
	errs handler.ErrorHandler
}

// NewRouter builds the HTTP handler for the account and billing API.
func NewRouter(deps Deps) http.Handler {
	if deps.Auth == nil || deps.Lifecycle == nil || deps.Plans == nil || deps.Usage == nil ||
		deps.Resources == nil || deps.Invoices == nil || deps.Methods == nil || deps.Tokens == nil {
		panic("httpapi: nil dependency")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	a := &api{Deps: deps, errs: errorHandler(deps.Logger)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthHandler(deps.Logger, deps.Checks...))

	r.Post("/register", wrap(a, a.register, binder.JSON()))
	r.Post("/login", wrap(a, a.login, binder.JSON()))
	r.Get("/membership-plans", wrap(a, a.listPlans))

	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware(deps.Tokens, jwt.ErrorHandler(a.errs)))
		r.Use(a.currentAccount)

		r.Get("/user", wrap(a, a.user))

		r.Get("/membership-plans/current", wrap(a, a.currentPlan))
		r.Post("/membership-plans/upgrade", wrap(a, a.upgrade, binder.JSON()))

		r.Route("/billing", func(r chi.Router) {
			r.Post("/payment-intent", wrap(a, a.completePayment, binder.JSON()))
			r.Post("/request-cancellation", wrap(a, a.requestCancellation, binder.JSON()))
			r.Post("/confirm-cancellation", wrap(a, a.confirmCancellation, binder.JSON()))
			r.Post("/cancel-cancellation-request", wrap(a, a.cancelCancellationRequest))
			r.Get("/cancellation-status", wrap(a, a.cancellationStatus))
			r.Patch("/auto-renew", wrap(a, a.setAutoRenew, binder.JSON()))
			r.Get("/history", wrap(a, a.billingHistory))
			r.Get("/payment-methods", wrap(a, a.paymentMethods))
		})

		r.Get("/usage", wrap(a, a.currentUsage))
		r.Get("/usage/check", wrap(a, a.checkUsage, binder.Query()))

		r.Group(func(r chi.Router) {
			r.Use(a.requireFeatures)
			a.mountResource(r, "/products", plan.Products)
			a.mountResource(r, "/labels", plan.Labels)
			a.mountResource(r, "/qr-codes", plan.QRCodes, func(r chi.Router) {
				r.Get("/{id}/image", wrap(a, a.qrImage, binder.Path(chi.URLParam), binder.Query()))
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.errs(w, r, handler.NewHTTPError(http.StatusNotFound, "not_found", "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.errs(w, r, handler.NewHTTPError(http.StatusMethodNotAllowed, "method_not_allowed", ""))
	})
	return r
}

func wrap[R any](a *api, h handler.HandlerFunc[R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(h, handler.WithBinders(binders...), handler.WithErrorHandler(a.errs))
}

func (a *api) mountResource(r chi.Router, path string, kind plan.Resource, extra ...func(chi.Router)) {
	r.Route(path, func(r chi.Router) {
		for _, fn := range extra {
			fn(r)
		}
		r.Get("/", wrap(a, a.listResources(kind)))
		r.Post("/", wrap(a, a.createResource(kind), binder.JSON()))
		r.Get("/{id}", wrap(a, a.getResource(kind), binder.Path(chi.URLParam)))
		r.Delete("/{id}", wrap(a, a.deleteResource(kind), binder.Path(chi.URLParam)))
	})
}

// accountOf returns the account loaded by currentAccount.
func accountOf(ctx handler.Context) account.Account {
	acc, _ := ctx.Value(accountKey{}).(account.Account)
	return acc
}
