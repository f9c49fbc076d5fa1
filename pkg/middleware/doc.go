// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Overview
//
// AuthMiddleware resolves the caller's credential inside the request's
// store session and hands the outcome to the endpoint, which runs in the
// same session. Rate limiting is keyed by client address and backed either
// by process memory or by Redis.
//
// # Authentication
//
//	authMW := middleware.NewAuthMiddleware(store, authenticator, writeError)
//	router.Handle("/api/v1/token", authMW.Require(issueToken)).Methods("POST")
//
// Accepted Authorization headers:
//
//	Bearer <token>
//	Basic base64(<token>:)            token in the username field
//	Basic base64(<username>:<password>)
//
// Every rejected credential produces the same 401 with a Basic challenge.
// ThrottlePasswords charges username/password attempts to a Limiter on every
// route wrapped by Require; tokens are not charged.
//
//	authMW.ThrottlePasswords(limiter, "login", metrics)
//
// # Rate Limiting
//
//	limiter := middleware.NewRateLimiter(cfg, nil)        // single instance
//	limiter := middleware.NewDistributedRateLimiter(rdb, cfg, "omicron:login")
//	router.Use(middleware.RateLimitMiddleware(limiter, "login", metrics))
//
// The in-memory limiter is a token bucket holding RequestsPerWindow+BurstSize
// tokens. The Redis limiter counts requests per window with INCR and EXPIRE
// and fails open when Redis is unreachable. Responses carry X-RateLimit-Limit
// and X-RateLimit-Remaining; throttled ones add Retry-After.
//
// The key is the client address stored by httputil.RequestIDMiddleware, or
// the connection's remote address. Proxy headers count only when that
// middleware is told to trust them.
package middleware
