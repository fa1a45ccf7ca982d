package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/nutrilabel/binder"
	"github.com/dmitrymomot/nutrilabel/handler"
	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/auth"
	"github.com/dmitrymomot/nutrilabel/internal/billing"
	"github.com/dmitrymomot/nutrilabel/internal/gateway"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/internal/plan"
	"github.com/dmitrymomot/nutrilabel/internal/resource"
	"github.com/dmitrymomot/nutrilabel/internal/usage"
	"github.com/dmitrymomot/nutrilabel/pkg/jwt"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
	"github.com/dmitrymomot/nutrilabel/pkg/qrcode"
	"github.com/dmitrymomot/nutrilabel/pkg/validator"
)

// errorHandler renders domain errors as the JSON error envelope. Anything it
// does not recognize is logged and returned as an opaque 500.
func errorHandler(log *slog.Logger) handler.ErrorHandler {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		e := toHTTPError(err)
		if e.Status >= http.StatusInternalServerError {
			log.ErrorContext(r.Context(), "request failed",
				slog.String("path", r.URL.Path),
				logger.Error(err),
			)
		}
		_ = handler.WriteError(w, r, e)
	}
}

func toHTTPError(err error) *handler.HTTPError {
	var (
		httpErr     *handler.HTTPError
		conflict    *lifecycle.ConflictError
		mismatch    *lifecycle.AuthMismatchError
		quota       *usage.QuotaExceededError
		unavailable *usage.FeatureUnavailableError
		gwErr       *gateway.Error
	)

	switch {
	case errors.As(err, &httpErr):
		return httpErr

	case validator.IsValidationError(err):
		e := handler.NewHTTPError(http.StatusUnprocessableEntity, "validation_failed", "the given data was invalid")
		e.Errors = validator.ExtractValidationErrors(err).Map()
		return e

	case binder.IsBindError(err):
		return handler.NewHTTPError(http.StatusBadRequest, "bad_request", err.Error())

	case errors.Is(err, auth.ErrInvalidCredentials):
		return handler.NewHTTPError(http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")

	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrExpiredToken),
		errors.Is(err, jwt.ErrMissingSubject):
		return handler.NewHTTPError(http.StatusUnauthorized, "unauthorized", "authentication required")

	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, plan.ErrPlanNotFound),
		errors.Is(err, resource.ErrNotFound),
		errors.Is(err, resource.ErrUnknownKind),
		errors.Is(err, billing.ErrMethodNotFound):
		return handler.NewHTTPError(http.StatusNotFound, "not_found", err.Error())

	case errors.As(err, &conflict):
		e := handler.NewHTTPError(http.StatusBadRequest, "invalid_state", conflict.Error())
		e.Meta = map[string]any{"payment_status": conflict.Status}
		return e

	case errors.As(err, &mismatch):
		e := handler.NewHTTPError(http.StatusUnprocessableEntity, "password_mismatch", "the password is incorrect")
		e.Errors = map[string][]string{"password": {"the password is incorrect"}}
		return e

	case errors.Is(err, lifecycle.ErrNoPaymentMethod),
		errors.Is(err, lifecycle.ErrPlanNotPurchasable),
		errors.Is(err, qrcode.ErrInvalidSize):
		return handler.NewHTTPError(http.StatusUnprocessableEntity, "unprocessable", err.Error())

	case errors.As(err, &quota):
		e := handler.NewHTTPError(http.StatusForbidden, "quota_exceeded", quota.Error())
		e.Meta = map[string]any{"resource": quota.Resource, "limit": quota.Limit, "used": quota.Used}
		return e

	case errors.As(err, &unavailable):
		e := handler.NewHTTPError(http.StatusForbidden, "feature_unavailable", unavailable.Error())
		e.Meta = map[string]any{"feature": unavailable.Feature}
		return e

	case errors.Is(err, resource.ErrSubscriptionRequired):
		return handler.NewHTTPError(http.StatusForbidden, "subscription_required", err.Error())

	case errors.As(err, &gwErr):
		e := handler.NewHTTPError(http.StatusInternalServerError, "payment_failed", "the payment could not be processed")
		if gwErr.Declined {
			e.Meta = map[string]any{"reason": "declined"}
		}
		return e
	}

	return handler.NewHTTPError(http.StatusInternalServerError, "internal_error", "")
}
