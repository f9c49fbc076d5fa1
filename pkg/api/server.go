package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/httputil"
	"github.com/platinummonkey/omicron/pkg/middleware"
	"github.com/platinummonkey/omicron/pkg/observability"
)

// Config wires the server to its collaborators.
type Config struct {
	Store auth.Store
	// Deps is shared by the authenticator, issuer, revoker and registrar.
	Deps   auth.Dependencies
	Hasher *auth.PasswordHasher
	// TokenTTL is the lifetime of tokens issued without ?expiration.
	TokenTTL time.Duration
	// LoginLimiter throttles username/password attempts per client address
	// on every authenticated route, and registrations, which also run bcrypt.
	// Nil disables it.
	LoginLimiter middleware.Limiter
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Enable it only behind a proxy that sets those headers.
	TrustProxyHeaders bool
	CORSOrigins  []string
	MaxBodyBytes int64
}

// Server represents our API server
type Server struct {
	router    *mux.Router
	handler   http.Handler
	store     auth.Store
	authMW    *middleware.AuthMiddleware
	issuer    *auth.Issuer
	revoker   *auth.Revoker
	registrar *auth.Registrar
	limiter   middleware.Limiter
	metrics   *observability.Metrics
}

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	logger := cfg.Deps.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(0)
	}

	authMW := middleware.NewAuthMiddleware(cfg.Store, auth.NewAuthenticator(cfg.Deps), writeError).
		ThrottlePasswords(cfg.LoginLimiter, "login", cfg.Deps.Metrics)

	s := &Server{
		router:    mux.NewRouter(),
		store:     cfg.Store,
		authMW:    authMW,
		issuer:    auth.NewIssuer(cfg.Deps, cfg.TokenTTL),
		revoker:   auth.NewRevoker(cfg.Deps),
		registrar: auth.NewRegistrar(cfg.Deps, hasher),
		limiter:   cfg.LoginLimiter,
		metrics:   cfg.Deps.Metrics,
	}

	s.setupRoutes()
	logger.WithFields(map[string]interface{}{
		"token_ttl":      s.issuer.DefaultTTL().String(),
		"bcrypt_cost":    hasher.Cost(),
		"login_throttle": s.limiter != nil,
		"trust_proxy":    cfg.TrustProxyHeaders,
	}).Info("API server configured")

	s.handler = httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware(logger, cfg.TrustProxyHeaders),
		httputil.LoggingMiddleware,
		httputil.CORSMiddleware(cfg.CORSOrigins),
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
	)(s.router)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Installed through the router so the matched route template is known.
	s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))

	s.router.HandleFunc("/", s.index).Methods("GET")
	s.router.HandleFunc("/index", s.index).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.Handle("/token", s.authMW.Require(s.issueToken)).Methods("POST")
	v1.Handle("/token", s.authMW.Require(s.revokeToken)).Methods("DELETE")

	var register http.Handler = http.HandlerFunc(s.registerUser)
	if s.limiter != nil {
		register = middleware.RateLimitMiddleware(s.limiter, "register", s.metrics)(register)
	}
	v1.Handle("/users", register).Methods("POST")
	v1.Handle("/users/{username}", s.authMW.Require(s.getUser)).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router returns the underlying router without the outer middleware chain.
func (s *Server) Router() *mux.Router {
	return s.router
}

// index handles GET / and GET /index
func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, map[string]string{"message": "hello_world"})
}
