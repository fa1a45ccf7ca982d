package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/nutrilabel/pkg/jwt"
)

const key = "0123456789abcdef0123456789abcdef"

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, err := jwt.New(key, jwt.WithIssuer("nutrilabel"), jwt.WithTTL(time.Hour), jwt.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	token, exp, err := svc.Issue("acc-1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc, err := jwt.New(key, jwt.WithTTL(time.Minute), jwt.WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	token, _, err := svc.Issue("acc-1", "")
	require.NoError(t, err)

	other, err := jwt.New("another-key-another-key-another-k", jwt.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	_, err = svc.Parse("garbage")
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)

	clock = now.Add(2 * time.Minute)
	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrExpiredToken)
}

func TestNew_MissingKey(t *testing.T) {
	t.Parallel()
	_, err := jwt.New("")
	assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc, err := jwt.New(key)
	require.NoError(t, err)
	token, _, err := svc.Issue("acc-42", "")
	require.NoError(t, err)

	h := jwt.Middleware(svc, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := jwt.ClaimsFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(c.Subject))
	}))

	t.Run("valid token", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "acc-42", rec.Body.String())
	})

	t.Run("missing token", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
