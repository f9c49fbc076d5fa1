package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/omicron/pkg/api"
	"github.com/platinummonkey/omicron/pkg/async"
	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/config"
	"github.com/platinummonkey/omicron/pkg/observability"
	"github.com/platinummonkey/omicron/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "omicron: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName).
		WithField("version", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	serviceVersion := cfg.Observability.OTelServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: serviceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.Register("opentelemetry", providers.Shutdown)

	db, err := postgres.Open(ctx, postgres.ConnectionConfig{
		Driver:      cfg.Database.Driver,
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		Retry:       async.RetryConfig{MaxAttempts: cfg.Database.ConnectAttempts},
	})
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}
	shutdown.RegisterCloser("database", db)
	logger.WithField("driver", cfg.Database.Driver).Info("database connected")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db, cfg.Database.Driver, logger); err != nil {
			_ = shutdown.Shutdown(context.Background())
			return err
		}
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	auditLogger, err := newAuditLogger(cfg.Auth.AuditSink, db, logger)
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}
	shutdown.RegisterCloser("audit", auditLogger)

	deps := auth.Dependencies{
		Clock:   clockwork.NewRealClock(),
		Logger:  logger,
		Metrics: metrics,
		Audit:   auditLogger,
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	store := postgres.NewStore(db)

	if err := bootstrapAdmin(ctx, store, auth.NewRegistrar(deps, hasher), cfg.Auth); err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}

	checker := observability.NewHealthChecker(version)
	checker.AddCheck("database", true, observability.DatabaseCheck(db))

	limiter, err := newLoginLimiter(ctx, cfg, checker, shutdown, logger)
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return err
	}

	server := api.NewServer(api.Config{
		Store:             store,
		Deps:              deps,
		Hasher:            hasher,
		TokenTTL:          cfg.Auth.TokenTTL,
		LoginLimiter:      limiter,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
		CORSOrigins:       cfg.Server.CORSOrigins,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
	})

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(server, "omicron"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              cfg.Server.HealthAddr(),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Reverse order: the API stops first, the database and tracer last.
	shutdown.RegisterServer("health server", healthServer)
	shutdown.RegisterServer("api server", apiServer)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("API server listening")
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		return listen(healthServer)
	})
	if metrics != nil {
		reportDBStats(gctx, db, metrics, 15*time.Second, logger)
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown.Timeout())
		defer cancel()
		return shutdown.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// listen serves until the server is shut down.
func listen(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", server.Addr, err)
	}
	return nil
}
