package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/omicron/pkg/observability"
)

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config, clock)

	key := "test-user"

	// Should allow initial requests up to limit + burst
	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		allowed, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		if allowed {
			allowedCount++
		}
	}

	expected := config.RequestsPerWindow + config.BurstSize
	if allowedCount != expected {
		t.Errorf("Allowed %d requests, want %d", allowedCount, expected)
	}

	// One token comes back every 100ms
	clock.Advance(100 * time.Millisecond)
	allowed, _ := limiter.Allow(ctx, key)
	if !allowed {
		t.Error("Should allow request after refill")
	}
	allowed, _ = limiter.Allow(ctx, key)
	if allowed {
		t.Error("Should deny request once the refilled token is spent")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}, clockwork.NewFakeClock())

	allowed, _ := limiter.Allow(ctx, "a")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "a")
	assert.False(t, allowed)
	allowed, _ = limiter.Allow(ctx, "b")
	assert.True(t, allowed)
}

func TestRateLimiter_Remaining(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(&RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}, clock)

	key := "test-user"
	if got, _ := limiter.Remaining(ctx, key); got != 12 {
		t.Errorf("Remaining() = %d, want 12", got)
	}

	for i := 0; i < 5; i++ {
		_, _ = limiter.Allow(ctx, key)
	}
	if got, _ := limiter.Remaining(ctx, key); got != 7 {
		t.Errorf("Remaining() = %d, want 7", got)
	}

	clock.Advance(time.Hour)
	if got, _ := limiter.Remaining(ctx, key); got != 12 {
		t.Errorf("Remaining() after refill = %d, want capped 12", got)
	}
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 6, WindowDuration: time.Minute}, clock)

	assert.Zero(t, limiter.RetryAfter(ctx, "k"))
	for i := 0; i < 6; i++ {
		_, _ = limiter.Allow(ctx, "k")
	}
	assert.Equal(t, 10*time.Second, limiter.RetryAfter(ctx, "k"))

	clock.Advance(4 * time.Second)
	assert.Equal(t, 6*time.Second, limiter.RetryAfter(ctx, "k"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}, clock)

	_, _ = limiter.Allow(ctx, "old")
	clock.Advance(3 * time.Second)
	_, _ = limiter.Allow(ctx, "fresh")

	limiter.Cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "fresh")
}

func TestRateLimiter_StartCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := clockwork.NewFakeClock()
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}, clock)

	_, _ = limiter.Allow(ctx, "old")
	limiter.StartCleanup(ctx)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(3 * time.Second)

	assert.Eventually(t, func() bool {
		limiter.mu.RLock()
		defer limiter.mu.RUnlock()
		return len(limiter.buckets) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestDefaultRateLimitConfig(t *testing.T) {
	config := DefaultRateLimitConfig()
	assert.Equal(t, 60, config.RequestsPerWindow)
	assert.Equal(t, time.Minute, config.WindowDuration)
	assert.Equal(t, 70, config.Capacity())
}

// failingLimiter always errors and returns allow as its fallback answer.
type failingLimiter struct {
	allow bool
}

func (l failingLimiter) Allow(context.Context, string) (bool, error) {
	return l.allow, errors.New("backend down")
}

func (l failingLimiter) Remaining(context.Context, string) (int, error) {
	return 0, errors.New("backend down")
}

func (l failingLimiter) RetryAfter(context.Context, string) time.Duration { return time.Minute }

func (l failingLimiter) Config() *RateLimitConfig { return DefaultRateLimitConfig() }

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("throttles per client address", func(t *testing.T) {
		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)
		limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}, clockwork.NewFakeClock())
		handler := RateLimitMiddleware(limiter, "login", metrics)(ok)

		send := func(addr string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/token", nil)
			req.RemoteAddr = addr
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			return w
		}

		w := send("10.0.0.1:1234")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, http.StatusOK, send("10.0.0.1:1235").Code)

		w = send("10.0.0.1:1236")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "30", w.Header().Get("Retry-After"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":30}`, w.Body.String())
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RateLimitedTotal.WithLabelValues("login")))

		assert.Equal(t, http.StatusOK, send("10.0.0.2:1234").Code)
	})

	t.Run("ignores forwarded headers by default", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour}, clockwork.NewFakeClock())
		handler := RateLimitMiddleware(limiter, "login", nil)(ok)

		var codes []int
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/token", nil)
			req.RemoteAddr = "10.0.0.9:4000"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			codes = append(codes, w.Code)
		}
		assert.Equal(t, []int{200, 429, 429, 429, 429}, codes)
	})

	t.Run("uses fallback answer on limiter errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		RateLimitMiddleware(failingLimiter{allow: true}, "login", nil)(ok).
			ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Remaining"))

		w = httptest.NewRecorder()
		RateLimitMiddleware(failingLimiter{allow: false}, "login", nil)(ok).
			ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
	})
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 2, retryAfterSeconds(1500*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}
