package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/httputil"
	"github.com/platinummonkey/omicron/pkg/observability"
)

// Reply is the response produced by a SessionHandlerFunc. It is written only
// after the session commits.
type Reply struct {
	Status int
	Body   interface{}
}

// SessionHandlerFunc serves an authenticated request inside the request's
// session. Returning an error rolls the session back.
type SessionHandlerFunc func(ctx context.Context, sess auth.Session, out *auth.Outcome, r *http.Request) (*Reply, error)

// ErrorWriter turns an authentication or handler error into a response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	store         auth.Store
	authenticator *auth.Authenticator
	onError       ErrorWriter

	// passwordLimiter throttles username/password attempts per client.
	passwordLimiter Limiter
	limiterName     string
	metrics         *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware. A nil onError
// falls back to WriteAuthError.
func NewAuthMiddleware(store auth.Store, authenticator *auth.Authenticator, onError ErrorWriter) *AuthMiddleware {
	if onError == nil {
		onError = WriteAuthError
	}
	return &AuthMiddleware{
		store:         store,
		authenticator: authenticator,
		onError:       onError,
	}
}

// ThrottlePasswords rate limits requests that present a username and
// password, on every route guarded by Require. Token credentials are not
// charged. A nil limiter leaves password attempts unthrottled.
func (m *AuthMiddleware) ThrottlePasswords(limiter Limiter, name string, metrics *observability.Metrics) *AuthMiddleware {
	m.passwordLimiter = limiter
	m.limiterName = name
	m.metrics = metrics
	return m
}

// Require authenticates the caller and runs h in the same session. Requests
// without a usable credential get a 401, and throttled password attempts a
// 429, before the store is touched.
func (m *AuthMiddleware) Require(h SessionHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, ok := CredentialFromRequest(r)
		if !ok {
			observability.FromContext(r.Context()).Debug("request carries no credential")
			httputil.WriteUnauthorized(w)
			return
		}
		if _, isPassword := cred.(auth.PasswordCredential); isPassword && m.passwordLimiter != nil {
			if !throttle(w, r, m.passwordLimiter, m.limiterName, m.metrics) {
				return
			}
		}

		var reply *Reply
		err := m.store.WithSession(r.Context(), func(ctx context.Context, sess auth.Session) error {
			out, err := m.authenticator.Resolve(ctx, sess, cred)
			if err != nil {
				return err
			}
			ctx = auth.WithOutcome(ctx, out)
			reply, err = h(ctx, sess, out, r.WithContext(ctx))
			return err
		})
		if err != nil {
			m.onError(w, r, err)
			return
		}
		if reply == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = httputil.WriteJSON(w, reply.Status, reply.Body)
	})
}

// CredentialFromRequest extracts the caller's credential from the
// Authorization header. "Bearer <token>" and Basic auth with an empty
// password both carry a token; Basic auth with a password carries a
// username and password.
func CredentialFromRequest(r *http.Request) (auth.Credential, bool) {
	if token, ok := httputil.BearerToken(r); ok {
		return auth.BearerCredential{Token: token}, true
	}

	username, password, ok := r.BasicAuth()
	if !ok || username == "" {
		return nil, false
	}
	if password == "" {
		return auth.BearerCredential{Token: username}, true
	}
	return auth.PasswordCredential{Username: username, Password: password}, true
}

// GetOutcome extracts the authentication outcome from request
func GetOutcome(r *http.Request) *auth.Outcome {
	return auth.OutcomeFromContext(r.Context())
}

// WriteAuthError answers rejected credentials with 401 and anything else
// with a logged 500.
func WriteAuthError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrUnauthorized) || errors.Is(err, auth.ErrTokenMinting) {
		httputil.WriteUnauthorized(w)
		return
	}
	observability.FromContext(r.Context()).WithError(err).Error("request failed")
	httputil.WriteInternalError(w)
}
