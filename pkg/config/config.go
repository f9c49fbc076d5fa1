package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/observability"
)

// Audit sinks
const (
	AuditSinkDatabase = "db"
	AuditSinkLog      = "log"
	AuditSinkNone     = "none"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Redis         RedisConfig         `yaml:"redis"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// Take client addresses from X-Forwarded-For/X-Real-IP; only behind a proxy
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds the account store connection settings
type DatabaseConfig struct {
	Driver      string        `yaml:"driver"` // postgres or sqlite3
	URL         string        `yaml:"url"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
	AutoMigrate bool          `yaml:"auto_migrate"`

	// Startup pings before giving up, with exponential backoff between them
	ConnectAttempts int `yaml:"connect_attempts"`
}

// AuthConfig holds credential and token settings
type AuthConfig struct {
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`

	// Password logins allowed per client IP per minute; 0 disables throttling
	LoginRatePerMinute int `yaml:"login_rate_per_minute"`
	LoginBurst         int `yaml:"login_burst"`

	AuditSink string `yaml:"audit_sink"`

	// Bootstrap admin, created at startup when both are set
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`
	AdminEmail    string `yaml:"admin_email"`
}

// RedisConfig holds the optional Redis connection used for shared rate limits
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			CORSOrigins:     []string{"*"},
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver:      "postgres",
			URL:         "postgres://localhost:5432/omicron?sslmode=disable",
			MaxConns:    25,
			MinConns:    5,
			Timeout:     5 * time.Second,
			MaxLifetime: time.Hour,
			MaxIdleTime: 10 * time.Minute,
			AutoMigrate: true,

			ConnectAttempts: 5,
		},
		Auth: AuthConfig{
			TokenTTL:           1800 * time.Second,
			BcryptCost:         bcrypt.DefaultCost,
			LoginRatePerMinute: 60,
			LoginBurst:         10,
			AuditSink:          AuditSinkDatabase,
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "omicron",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// OMICRON_CONFIG_FILE and OMICRON_* environment variables, in that order
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv("OMICRON_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("OMICRON_HOST", s.Host)
	s.Port = getEnv("OMICRON_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("OMICRON_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("OMICRON_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("OMICRON_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("OMICRON_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("OMICRON_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.CORSOrigins = getEnvList("OMICRON_CORS_ORIGINS", s.CORSOrigins)
	s.HealthPort = getEnv("OMICRON_HEALTH_PORT", s.HealthPort)
	s.TrustProxyHeaders = getEnvBool("OMICRON_TRUST_PROXY_HEADERS", s.TrustProxyHeaders)

	d := &c.Database
	d.Driver = getEnv("OMICRON_DATABASE_DRIVER", d.Driver)
	d.URL = getEnv("OMICRON_DATABASE_URL", d.URL)
	d.MaxConns = getEnvInt("OMICRON_DATABASE_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvInt("OMICRON_DATABASE_MIN_CONNS", d.MinConns)
	d.Timeout = getEnvDuration("OMICRON_DATABASE_TIMEOUT", d.Timeout)
	d.MaxLifetime = getEnvDuration("OMICRON_DATABASE_MAX_LIFETIME", d.MaxLifetime)
	d.MaxIdleTime = getEnvDuration("OMICRON_DATABASE_MAX_IDLE_TIME", d.MaxIdleTime)
	d.AutoMigrate = getEnvBool("OMICRON_DATABASE_AUTO_MIGRATE", d.AutoMigrate)
	d.ConnectAttempts = getEnvInt("OMICRON_DATABASE_CONNECT_ATTEMPTS", d.ConnectAttempts)

	a := &c.Auth
	a.TokenTTL = getEnvSeconds("OMICRON_TOKEN_TTL", a.TokenTTL)
	a.BcryptCost = getEnvInt("OMICRON_BCRYPT_COST", a.BcryptCost)
	a.LoginRatePerMinute = getEnvInt("OMICRON_LOGIN_RATE_PER_MINUTE", a.LoginRatePerMinute)
	a.LoginBurst = getEnvInt("OMICRON_LOGIN_BURST", a.LoginBurst)
	a.AuditSink = getEnv("OMICRON_AUDIT_SINK", a.AuditSink)
	a.AdminUsername = getEnv("OMICRON_ADMIN_USERNAME", a.AdminUsername)
	a.AdminPassword = getEnv("OMICRON_ADMIN_PASSWORD", a.AdminPassword)
	a.AdminEmail = getEnv("OMICRON_ADMIN_EMAIL", a.AdminEmail)

	r := &c.Redis
	r.URL = getEnv("OMICRON_REDIS_URL", r.URL)
	r.Password = getEnv("OMICRON_REDIS_PASSWORD", r.Password)
	r.DB = getEnvInt("OMICRON_REDIS_DB", r.DB)
	r.PoolSize = getEnvInt("OMICRON_REDIS_POOL_SIZE", r.PoolSize)
	r.MaxRetries = getEnvInt("OMICRON_REDIS_MAX_RETRIES", r.MaxRetries)

	o := &c.Observability
	if level := getEnv("OMICRON_LOG_LEVEL", ""); level != "" {
		o.LogLevel = observability.ParseLogLevel(level)
	}
	o.MetricsEnabled = getEnvBool("OMICRON_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("OMICRON_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("OMICRON_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("OMICRON_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("OMICRON_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("OMICRON_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	// Validate auth config
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.LoginRatePerMinute < 0 || c.Auth.LoginBurst < 0 {
		return fmt.Errorf("login rate limits must not be negative")
	}
	switch c.Auth.AuditSink {
	case AuditSinkDatabase:
		// SQLite has a single connection, which the request transaction holds.
		if c.Database.Driver == "sqlite3" {
			return fmt.Errorf("the %q audit sink requires the postgres driver", AuditSinkDatabase)
		}
	case AuditSinkLog, AuditSinkNone:
	default:
		return fmt.Errorf("invalid audit sink: %s (must be db, log or none)", c.Auth.AuditSink)
	}
	if (c.Auth.AdminUsername == "") != (c.Auth.AdminPassword == "") {
		return fmt.Errorf("admin username and password must be set together")
	}
	if c.Auth.AdminUsername != "" {
		admin := auth.Registration{Username: c.Auth.AdminUsername, Password: c.Auth.AdminPassword}
		if c.Auth.AdminEmail != "" {
			admin.Email = &c.Auth.AdminEmail
		}
		if err := admin.Validate(); err != nil {
			return fmt.Errorf("invalid admin account: %w", err)
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Addr returns the API listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// HealthAddr returns the health/metrics listen address
func (s ServerConfig) HealthAddr() string {
	return s.Host + ":" + s.HealthPort
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvSeconds accepts a bare number of seconds as well as a duration string
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return getEnvDuration(key, defaultValue)
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
