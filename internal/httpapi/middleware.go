package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/nutrilabel/handler"
	"github.com/dmitrymomot/nutrilabel/internal/account"
	"github.com/dmitrymomot/nutrilabel/internal/auth"
	"github.com/dmitrymomot/nutrilabel/internal/lifecycle"
	"github.com/dmitrymomot/nutrilabel/pkg/jwt"
	"github.com/dmitrymomot/nutrilabel/pkg/logger"
)

type accountKey struct{}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			log.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				logger.Duration(time.Since(start)),
			)
		})
	}
}

// currentAccount loads the token's account and applies any time-based
// transition that is due before the handler sees it.
func (a *api) currentAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := jwt.ClaimsFromContext(r.Context())
		id, err := a.Auth.Authenticate(claims)
		if err != nil {
			a.errs(w, r, err)
			return
		}

		res, err := a.Lifecycle.Reconcile(r.Context(), id)
		if errors.Is(err, account.ErrNotFound) {
			a.errs(w, r, auth.ErrUnauthorized)
			return
		}
		if err != nil {
			a.errs(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), accountKey{}, res.Account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireFeatures rejects accounts whose status grants no access to
// products, labels or QR codes.
func (a *api) requireFeatures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acc, _ := r.Context().Value(accountKey{}).(account.Account)
		if !lifecycle.CanUseFeatures(acc, a.Lifecycle.Now()) {
			e := handler.NewHTTPError(http.StatusForbidden, "subscription_required",
				"an active subscription or trial is required")
			e.Meta = map[string]any{"payment_status": acc.Status}
			a.errs(w, r, e)
			return
		}
		next.ServeHTTP(w, r)
	})
}
