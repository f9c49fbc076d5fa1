package auth

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/omicron/pkg/audit"
)

// maxExpirationSeconds is the longest lifetime a time.Duration can hold.
const maxExpirationSeconds = math.MaxInt64 / int64(time.Second)

// ParseExpiration converts a lifetime in whole seconds. Empty, non-numeric,
// non-positive and out-of-range input reports ok == false and yields fallback.
func ParseExpiration(raw string, fallback time.Duration) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, false
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 || secs > maxExpirationSeconds {
		return fallback, false
	}
	return time.Duration(secs) * time.Second, true
}

// IssuedToken is a freshly issued token. Secret is shown to the caller once.
type IssuedToken struct {
	Secret    string
	ExpiresAt time.Time
}

// Issuer mints tokens for password-authenticated callers.
type Issuer struct {
	deps       Dependencies
	defaultTTL time.Duration
}

// NewIssuer creates an Issuer. A non-positive defaultTTL means DefaultTokenTTL.
func NewIssuer(deps Dependencies, defaultTTL time.Duration) *Issuer {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	return &Issuer{deps: deps.withDefaults(), defaultTTL: defaultTTL}
}

// DefaultTTL returns the lifetime used when the caller supplies none.
func (i *Issuer) DefaultTTL() time.Duration {
	return i.defaultTTL
}

// Issue mints a token for the authenticated caller. rawExpiration is the
// requested lifetime in seconds; a missing or malformed value falls back to
// the default lifetime. Callers authenticated by a token are rejected with
// ErrTokenMinting.
func (i *Issuer) Issue(ctx context.Context, sess Session, caller *Outcome, rawExpiration string) (*IssuedToken, error) {
	if caller == nil || caller.User == nil {
		return nil, ErrUnauthorized
	}
	user := caller.User

	if caller.ViaToken {
		i.deps.Logger.WithField("username", user.Username).Info("token issuance refused for token-authenticated caller")
		i.deps.recordAuthz(ctx, audit.EventTypeAuthzAccessDenied, &user.ID, audit.ResourceTypeToken, "", audit.EventStatusDenied, "token used to request a token")
		return nil, ErrTokenMinting
	}

	ttl, ok := ParseExpiration(rawExpiration, i.defaultTTL)
	if !ok {
		logger := i.deps.Logger.WithFields(map[string]interface{}{
			"username":    user.Username,
			"expiration":  rawExpiration,
			"ttl_seconds": int64(ttl / time.Second),
		})
		if strings.TrimSpace(rawExpiration) == "" {
			logger.Debug("no expiration supplied, using default")
		} else {
			logger.Warn("malformed expiration ignored, using default")
		}
	}

	secret, expiresAt, err := user.GenerateAuthToken(ctx, sess.Tokens(), i.deps.Clock.Now(), ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	i.deps.Metrics.RecordTokenIssued()
	i.deps.recordAuth(ctx, audit.EventTypeAuthTokenCreate, &user.ID, user.Username, audit.EventStatusSuccess,
		fmt.Sprintf("token issued, expires %s", expiresAt.Format(time.RFC3339)))

	return &IssuedToken{Secret: secret, ExpiresAt: expiresAt}, nil
}
