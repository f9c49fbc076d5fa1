package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/omicron/pkg/httputil"
	"github.com/platinummonkey/omicron/pkg/observability"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{
		RequestsPerWindow: 3,
		WindowDuration:    time.Minute,
		BurstSize:         1,
	}, "test")

	for i := 0; i < 4; i++ {
		allowed, err := limiter.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.True(t, mr.Exists("test:ip:10.0.0.1"))
	assert.Equal(t, time.Minute, mr.TTL("test:ip:10.0.0.1"))

	// The window expires and the counter starts over.
	mr.FastForward(time.Minute + time.Second)
	allowed, err = limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestDistributedRateLimiter_Remaining(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}, "")

	remaining, err := limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	for i := 0; i < 7; i++ {
		_, _ = limiter.Allow(ctx, "k")
	}

	remaining, err = limiter.Remaining(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestDistributedRateLimiter_RetryAfter(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "")

	// Unknown keys report the whole window.
	assert.Equal(t, time.Minute, limiter.RetryAfter(ctx, "k"))

	_, _ = limiter.Allow(ctx, "k")
	mr.FastForward(20 * time.Second)
	assert.Equal(t, 40*time.Second, limiter.RetryAfter(ctx, "k"))
}

func TestDistributedRateLimiter_FailsOpen(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	limiter := NewDistributedRateLimiter(client, nil, "")
	mr.Close()

	allowed, err := limiter.Allow(ctx, "k")
	assert.Error(t, err)
	assert.True(t, allowed)

	_, err = limiter.Remaining(ctx, "k")
	assert.Error(t, err)
}

func TestDistributedRateLimiter_Middleware(t *testing.T) {
	_, client := newMiniredis(t)
	limiter := NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, "omicron:login")
	// Behind a trusted proxy the forwarded address is the rate-limit key.
	handler := httputil.RequestIDMiddleware(observability.NewNopLogger(), true)(
		RateLimitMiddleware(limiter, "login", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/token", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	w := send()
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = send()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	n, err := client.Get(context.Background(), "omicron:login:ip:203.0.113.7").Int()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
