// Package api provides the HTTP REST API server for Omicron accounts and tokens.
//
// # Overview
//
// The API is built on gorilla/mux. Every request runs in one store session;
// authenticated endpoints share that session with the authenticator through
// middleware.AuthMiddleware, so a request either commits as a whole or not at all.
//
// # Endpoints
//
//	GET    /, /index                 {"message":"hello_world"}
//	POST   /api/v1/token             issue a token (password callers only)
//	DELETE /api/v1/token             revoke a token
//	POST   /api/v1/users             register an account
//	GET    /api/v1/users/{username}  view an account
//
// POST /api/v1/token accepts ?expiration=<seconds>; a missing or unusable
// value falls back to the configured default lifetime. DELETE /api/v1/token
// accepts ?username= (honoured for admins only) and an optional JSON body
// {"token": "..."} naming the token to revoke. Callers authenticated by a
// token must send that body.
//
// # Usage
//
//	server := api.NewServer(api.Config{
//		Store:    postgres.NewStore(db),
//		Deps:     auth.Dependencies{Logger: logger, Metrics: metrics, Audit: auditLogger},
//		TokenTTL: cfg.Auth.TokenTTL,
//	})
//	http.ListenAndServe(":8080", server)
//
// # Errors
//
// Errors are JSON objects of the form {"error": "..."}. Every rejected
// credential yields the same 401 with a Basic challenge; internal failures
// yield a generic 500 and are logged with the request ID.
package api
