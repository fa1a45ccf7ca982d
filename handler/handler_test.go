package handler_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/binder"
	"github.com/dmitrymomot/nutrilabel/handler"
)

type echoRequest struct {
	Name string `json:"name"`
}

func TestWrap_JSON(t *testing.T) {
	t.Parallel()

	h := handler.Wrap(func(ctx handler.Context, req echoRequest) handler.Response {
		return handler.Created(map[string]string{"name": req.Name})
	}, handler.WithBinders(binder.JSON()))

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"oats"}`))
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"name":"oats"}}`, rec.Body.String())
}

func TestWrap_ErrorRouting(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("boom")
	var got error
	h := handler.Wrap(func(ctx handler.Context, _ struct{}) handler.Response {
		return handler.Error(sentinel)
	}, handler.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.ErrorIs(t, got, sentinel)
}

func TestDefaultErrorHandler(t *testing.T) {
	t.Parallel()

	h := handler.Wrap(func(ctx handler.Context, _ struct{}) handler.Response {
		e := handler.NewHTTPError(http.StatusForbidden, "quota_exceeded", "")
		e.Meta = map[string]any{"limit": 5}
		return handler.Error(e)
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"code":"quota_exceeded","message":"Forbidden","meta":{"limit":5}}`, rec.Body.String())
}

func TestEmptyAndBlob(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	require.NoError(t, handler.Empty().Render(rec, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	require.NoError(t, handler.Blob("image/png", []byte{1, 2, 3}).Render(rec, nil))
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
}
