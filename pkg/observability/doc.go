// Package observability provides structured logging, Prometheus metrics,
// health probes, graceful shutdown and OpenTelemetry tracing.
//
// # Structured Logging
//
// Logs are JSON lines written by logrus:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("username", "scott").Info("token issued")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger.WithField("request_id", id))
//	observability.FromContext(ctx).Warn("rejected")
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordAuthAttempt("password", "success")
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// Every Record helper is safe on a nil *Metrics.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version)
//	checker.AddCheck("database", true, observability.DatabaseCheck(db))
//	checker.AddCheck("redis", false, observability.RedisCheck(client))
//	observability.RegisterHealthRoutes(mux, checker)
//
// # Shutdown
//
// ShutdownManager runs registered steps in reverse order, so servers stop
// before the stores they use are closed.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "omicron",
//	}, logger)
//	defer providers.Shutdown(ctx)
package observability
