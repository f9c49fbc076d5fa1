package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/omicron/pkg/async"
	"github.com/platinummonkey/omicron/pkg/audit"
	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/config"
	"github.com/platinummonkey/omicron/pkg/middleware"
	"github.com/platinummonkey/omicron/pkg/observability"
	"github.com/platinummonkey/omicron/pkg/storage/postgres"
)

// newAuditLogger returns the audit sink named by the configuration.
func newAuditLogger(sink string, db *sql.DB, logger *observability.Logger) (audit.Logger, error) {
	switch sink {
	case config.AuditSinkDatabase:
		l, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit logger: %w", err)
		}
		return l, nil
	case config.AuditSinkLog:
		return audit.NewLogLogger(logger), nil
	case config.AuditSinkNone, "":
		return audit.NewNoOpLogger(), nil
	default:
		return nil, fmt.Errorf("unknown audit sink %q", sink)
	}
}

// bootstrapAdmin creates the configured admin account on first start.
func bootstrapAdmin(ctx context.Context, store auth.Store, registrar *auth.Registrar, cfg config.AuthConfig) error {
	if cfg.AdminUsername == "" {
		return nil
	}

	reg := auth.Registration{Username: cfg.AdminUsername, Password: cfg.AdminPassword}
	if cfg.AdminEmail != "" {
		email := cfg.AdminEmail
		reg.Email = &email
	}

	err := store.WithSession(ctx, func(ctx context.Context, sess auth.Session) error {
		_, err := registrar.EnsureAdmin(ctx, sess, reg)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin %s: %w", cfg.AdminUsername, err)
	}
	return nil
}

// newLoginLimiter builds the password attempt throttle. It is shared through
// Redis when a Redis URL is configured and kept in memory otherwise. A zero
// rate disables throttling and returns a nil limiter.
func newLoginLimiter(ctx context.Context, cfg *config.Config, checker *observability.HealthChecker, shutdown *observability.ShutdownManager, logger *observability.Logger) (middleware.Limiter, error) {
	if cfg.Auth.LoginRatePerMinute == 0 {
		logger.Info("login rate limiting is disabled")
		return nil, nil
	}

	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Auth.LoginRatePerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Auth.LoginBurst,
	}

	if cfg.Redis.URL == "" {
		limiter := middleware.NewRateLimiter(limits, nil)
		limiter.StartCleanup(ctx)
		return limiter, nil
	}

	client, err := postgres.NewRedisClient(ctx, postgres.RedisConfig{
		URL:        cfg.Redis.URL,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	shutdown.RegisterCloser("redis", client)
	// The limiter fails open, so Redis is not critical for readiness.
	checker.AddCheck("redis", false, observability.RedisCheck(client))
	logger.Info("login rate limits are shared through redis")

	return middleware.NewDistributedRateLimiter(client, limits, "omicron:login"), nil
}

// reportDBStats copies connection pool statistics into the metrics until
// ctx ends. The returned channel is closed once reporting has stopped.
func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics, interval time.Duration, logger *observability.Logger) <-chan struct{} {
	return async.Every(ctx, logger, interval, "db stats", func(context.Context) {
		metrics.UpdateDBStats(db.Stats())
	})
}
