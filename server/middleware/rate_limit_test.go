package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(0.001, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("session_a"), "request %d", i)
	}
	assert.False(t, rl.Allow("session_a"))

	// Keys do not share buckets.
	assert.True(t, rl.Allow("session_b"))
	assert.Equal(t, 2, rl.Len())

	rl.Forget("session_a")
	assert.Equal(t, 1, rl.Len())
	assert.True(t, rl.Allow("session_a"))
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
}

func TestRateLimiter_WaitCanceled(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	require.True(t, rl.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "k"))
}

func TestLimit(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiter(0.001, 1)
	limited := 0
	key := func(c echo.Context) string { return c.QueryParam("k") }
	h := Limit(rl, key, func(echo.Context) { limited++ })(func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	serve := func(k string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/?k="+k, nil)
		rec := httptest.NewRecorder()
		require.NoError(t, h(e.NewContext(req, rec)))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, serve("a").Code)
	rec := serve("a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, 1, limited)

	// An empty key is never limited.
	assert.Equal(t, http.StatusNoContent, serve("").Code)
	assert.Equal(t, http.StatusNoContent, serve("").Code)
}
