// Package config provides application configuration management.
//
// # Overview
//
// Configuration is built from built-in defaults, then an optional YAML file
// named by OMICRON_CONFIG_FILE, then environment variables. The result is
// validated before use.
//
// # Configuration Structure
//
// Server settings:
//
//	OMICRON_HOST="0.0.0.0"
//	OMICRON_PORT="8080"
//	OMICRON_HEALTH_PORT="9090"
//	OMICRON_CORS_ORIGINS="*"
//
// Database settings:
//
//	OMICRON_DATABASE_DRIVER="postgres"  # postgres, sqlite3
//	OMICRON_DATABASE_URL="postgres://localhost/omicron"
//	OMICRON_DATABASE_MAX_CONNS="25"
//	OMICRON_DATABASE_AUTO_MIGRATE="true"
//
// Auth settings:
//
//	OMICRON_TOKEN_TTL="1800"  # seconds or a duration
//	OMICRON_BCRYPT_COST="10"
//	OMICRON_LOGIN_RATE_PER_MINUTE="60"
//	OMICRON_AUDIT_SINK="db"  # db, log, none
//	OMICRON_ADMIN_USERNAME="admin"
//	OMICRON_ADMIN_PASSWORD="change-me"
//
// Redis settings (optional, shares login rate limits between replicas):
//
//	OMICRON_REDIS_URL="redis://localhost:6379/0"
//
// Observability settings:
//
//	OMICRON_LOG_LEVEL="info"  # debug, info, warn, error
//	OMICRON_METRICS_ENABLED="true"
//	OMICRON_OTEL_ENABLED="true"
//	OMICRON_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings can be given in YAML:
//
//	server:
//	  port: "8080"
//	database:
//	  url: postgres://localhost/omicron
//	auth:
//	  token_ttl: 30m
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Listening on %s\n", cfg.Server.Addr())
package config
