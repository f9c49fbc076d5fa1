package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/omicron/pkg/contextkeys"
	"github.com/platinummonkey/omicron/pkg/httputil"
	"github.com/platinummonkey/omicron/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns default rate limit settings
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 60,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// Capacity is the most requests a fresh key may make at once.
func (c *RateLimitConfig) Capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	// Allow returns an error when the decision could not be made. The
	// boolean is then the limiter's fallback answer.
	Allow(ctx context.Context, key string) (bool, error)
	// Remaining reports how many more requests key may make right now.
	Remaining(ctx context.Context, key string) (int, error)
	// RetryAfter estimates how long key must wait before its next request.
	RetryAfter(ctx context.Context, key string) time.Duration
	// Config returns the limits the limiter enforces.
	Config() *RateLimitConfig
}

// RateLimiter implements rate limiting using token bucket algorithm.
// Buckets live in process memory; use DistributedRateLimiter to share
// limits across instances.
type RateLimiter struct {
	config  *RateLimitConfig
	clock   clockwork.Clock
	buckets map[string]*bucket
	mu      sync.RWMutex
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter. A nil clock uses the real clock.
func NewRateLimiter(config *RateLimitConfig, clock clockwork.Clock) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &RateLimiter{
		config:  config,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// Config returns the limiter settings
func (rl *RateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     float64(rl.config.Capacity()),
			lastUpdate: rl.clock.Now(),
		}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	rl.refill(b)

	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}

	return false, nil
}

// refill must be called with b.mu held.
func (rl *RateLimiter) refill(b *bucket) {
	now := rl.clock.Now()
	elapsed := now.Sub(b.lastUpdate)
	if elapsed <= 0 {
		return
	}

	rate := float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
	b.tokens = math.Min(b.tokens+elapsed.Seconds()*rate, float64(rl.config.Capacity()))
	b.lastUpdate = now
}

// Remaining returns the number of whole tokens left for a key
func (rl *RateLimiter) Remaining(_ context.Context, key string) (int, error) {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		return rl.config.Capacity(), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rl.refill(b)
	return int(b.tokens), nil
}

// RetryAfter returns the time until the bucket for key holds a whole token
func (rl *RateLimiter) RetryAfter(_ context.Context, key string) time.Duration {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists || rl.config.RequestsPerWindow <= 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	rl.refill(b)
	if b.tokens >= 1 {
		return 0
	}
	perToken := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)
	return time.Duration((1 - b.tokens) * float64(perToken))
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup starts a background goroutine to cleanup old buckets
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := rl.clock.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware throttles requests per client address. When the
// limiter fails, the error is logged and its fallback answer is used.
func RateLimitMiddleware(limiter Limiter, name string, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !throttle(w, r, limiter, name, metrics) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// throttle charges one request to the caller's address and sets the
// rate-limit headers. It writes a 429 and returns false when the caller is
// over the limit.
func throttle(w http.ResponseWriter, r *http.Request, limiter Limiter, name string, metrics *observability.Metrics) bool {
	key := clientKey(r)

	allowed, err := limiter.Allow(r.Context(), key)
	if err != nil {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("limiter", name).
			Warn("rate limiter unavailable")
	}

	cfg := limiter.Config()
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity()))
	if !allowed {
		metrics.RecordRateLimited(name)
		retryAfter := retryAfterSeconds(limiter.RetryAfter(r.Context(), key))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		w.Header().Set("X-RateLimit-Remaining", "0")
		httputil.WriteTooManyRequests(w, retryAfter)
		return false
	}

	if remaining, err := limiter.Remaining(r.Context(), key); err == nil {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	}
	return true
}

// clientKey names the caller for rate limiting. It prefers the address
// resolved by httputil.RequestIDMiddleware, which only trusts proxy headers
// when configured to, and otherwise uses the connection's remote address.
func clientKey(r *http.Request) string {
	ip := contextkeys.GetClientIP(r.Context())
	if ip == "" {
		ip = httputil.ClientIP(r)
	}
	return "ip:" + ip
}

// retryAfterSeconds rounds up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
