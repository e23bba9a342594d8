package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-engine/internal/obs"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	lim, err := New(nil, "test", time.Minute, 1)
	require.NoError(t, err)

	counted := Handler{Limiter: lim}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil)
	req.Header.Set(obs.RegisterHeader, "till-1")

	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr2.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rr2.Header().Get("Retry-After"))
	require.Contains(t, rr2.Body.String(), "RATE_LIMITED")

	other := req.Clone(req.Context())
	other.Header.Set(obs.RegisterHeader, "till-2")
	rr3 := httptest.NewRecorder()
	counted.ServeHTTP(rr3, other)
	require.Equal(t, http.StatusOK, rr3.Code)
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer func() { _ = client.Close() }()
	lim, err := New(client, "test", time.Second, 1)
	require.NoError(t, err)
	mr.Close()

	called := false
	handler := Handler{Limiter: lim, OnError: func(error) { called = true }}

	rr := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sales", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, called)
}

func TestDisabledLimiterAllows(t *testing.T) {
	lim, err := New(nil, "test", time.Minute, 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		d, err := lim.Allow(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := (*Limiter)(nil).Allow(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestRegisterKeyFallsBackToAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	require.Equal(t, "POST:/api/v1/returns:10.0.0.7", RegisterKey(req))

	req.Header.Set(obs.RegisterHeader, "till-9")
	require.Equal(t, "POST:/api/v1/returns:till-9", RegisterKey(req))
}
