package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/omicron/pkg/async"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	Driver      string
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration

	// Retry governs the startup ping; the zero value pings once.
	Retry async.RetryConfig
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open connects to the database, configures the pool and pings it.
func Open(ctx context.Context, config ConnectionConfig) (*sql.DB, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverPostgres
	}
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlOpen(driver, config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; an in-memory database also exists
		// only on its own connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.MaxConns)
		db.SetMaxIdleConns(config.MinConns)
	}
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	err = async.NewRetryPolicy(config.Retry).Do(ctx, func(ctx context.Context, attempt int) error {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", driver, err)
	}

	return db, nil
}
