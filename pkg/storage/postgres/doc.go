// Package postgres implements auth.Store on database/sql.
//
// The queries use $N placeholders and RETURNING, so the same repositories run
// against PostgreSQL (lib/pq) in production and SQLite (go-sqlite3) for local
// development and tests. Schema changes are embedded goose migrations, one
// directory per dialect.
//
// Open retries its startup ping with exponential backoff when
// ConnectionConfig.Retry allows more than one attempt. NewRedisClient opens
// the optional Redis connection that backs shared login rate limits.
package postgres
