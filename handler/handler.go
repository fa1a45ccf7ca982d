package handler

import (
	"errors"
	"net/http"
)

// ErrNilResponse indicates a handler returned nil instead of a Response.
var ErrNilResponse = errors.New("handler returned nil response")

// HandlerFunc is a typed HTTP handler: R is bound from the request before the call.
//
//	h := handler.HandlerFunc[UpgradeRequest](func(ctx handler.Context, req UpgradeRequest) handler.Response {
//		acc, err := svc.UpgradePlan(ctx, ...)
//		if err != nil {
//			return handler.Error(err)
//		}
//		return handler.JSON(acc)
//	})
type HandlerFunc[R any] func(ctx Context, req R) Response

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind parses HTTP requests into typed values.
type Bind func(r *http.Request, v any) error

// ErrorHandler writes the response for an error from binding, the handler or rendering.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type Option func(*wrapConfig)

type wrapConfig struct {
	binders      []Bind
	errorHandler ErrorHandler
}

// WithBinders sets request binders applied in order.
func WithBinders(binders ...Bind) Option {
	return func(c *wrapConfig) {
		c.binders = append(c.binders, binders...)
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		_ = WriteError(w, r, httpErr)
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// Wrap converts a typed HandlerFunc into an http.HandlerFunc.
func Wrap[R any](h HandlerFunc[R], opts ...Option) http.HandlerFunc {
	cfg := &wrapConfig{errorHandler: defaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req R
		for _, bind := range cfg.binders {
			if err := bind(r, &req); err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
		}

		resp := h(NewContext(w, r), req)
		if resp == nil {
			cfg.errorHandler(w, r, ErrNilResponse)
			return
		}
		if e, ok := resp.(errorResponse); ok {
			cfg.errorHandler(w, r, e.err)
			return
		}
		if err := resp.Render(w, r); err != nil {
			cfg.errorHandler(w, r, err)
		}
	}
}
