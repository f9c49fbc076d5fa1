package auth

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/omicron/pkg/audit"
	"github.com/platinummonkey/omicron/pkg/storage"
)

var tracer = otel.Tracer("github.com/platinummonkey/omicron/pkg/auth")

// Authenticator decides who is making a request.
type Authenticator struct {
	deps Dependencies
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(deps Dependencies) *Authenticator {
	return &Authenticator{deps: deps.withDefaults()}
}

// Resolve checks cred against the store. It returns ErrUnauthorized for every
// kind of rejection; any other error is a fault.
func (a *Authenticator) Resolve(ctx context.Context, sess Session, cred Credential) (*Outcome, error) {
	method := Method(cred)
	ctx, span := tracer.Start(ctx, "auth.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("auth.method", method))

	var (
		out *Outcome
		err error
	)
	switch c := cred.(type) {
	case BearerCredential:
		out, err = a.resolveToken(ctx, sess, c.Token)
	case PasswordCredential:
		out, err = a.resolvePassword(ctx, sess, c.Username, c.Password)
	default:
		err = ErrUnauthorized
	}

	switch {
	case err == nil:
		span.SetAttributes(attribute.Int64("auth.user_id", out.User.ID))
		a.deps.Metrics.RecordAuthAttempt(method, "success")
	case errors.Is(err, ErrUnauthorized):
		span.SetAttributes(attribute.Bool("auth.rejected", true))
		a.deps.Metrics.RecordAuthAttempt(method, "rejected")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.deps.Metrics.RecordAuthAttempt(method, "error")
	}

	return out, err
}

func (a *Authenticator) resolveToken(ctx context.Context, sess Session, secret string) (*Outcome, error) {
	tok, ok, err := LookupToken(ctx, sess.Tokens(), secret)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.deps.Logger.Debug("token authentication rejected: unknown token")
		a.deps.recordAuth(ctx, audit.EventTypeAuthTokenValidateFail, nil, "", audit.EventStatusFailure, "unknown token")
		return nil, ErrUnauthorized
	}

	now := a.deps.Clock.Now()
	if !tok.Verify(secret, now) {
		a.deps.Logger.WithField("token_id", tok.ID).Debug("token authentication rejected: expired")
		a.deps.recordAuth(ctx, audit.EventTypeAuthTokenValidateFail, &tok.OwnerID, "", audit.EventStatusFailure, "expired token")
		return nil, ErrUnauthorized
	}

	res, err := sess.Users().FindByID(ctx, tok.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load token owner: %w", err)
	}
	if res.State() == storage.Many {
		return nil, fmt.Errorf("%w: users with id %d", ErrStoreContract, tok.OwnerID)
	}
	owner, ok := res.Get()
	if !ok {
		a.deps.Logger.WithField("token_id", tok.ID).Warn("token authentication rejected: owner no longer exists")
		return nil, ErrUnauthorized
	}

	// Only the owner's most recent token authenticates.
	valid, err := owner.VerifyAuthToken(ctx, sess.Tokens(), secret, now)
	if err != nil {
		return nil, err
	}
	if !valid {
		a.deps.Logger.WithFields(map[string]interface{}{
			"token_id": tok.ID,
			"username": owner.Username,
		}).Debug("token authentication rejected: superseded by a newer token")
		a.deps.recordAuth(ctx, audit.EventTypeAuthTokenValidateFail, &owner.ID, owner.Username, audit.EventStatusFailure, "superseded token")
		return nil, ErrUnauthorized
	}

	a.deps.recordAuth(ctx, audit.EventTypeAuthTokenValidate, &owner.ID, owner.Username, audit.EventStatusSuccess, "token authentication")
	return &Outcome{User: owner, ViaToken: true, Token: tok}, nil
}

func (a *Authenticator) resolvePassword(ctx context.Context, sess Session, username, password string) (*Outcome, error) {
	user, ok, err := LookupUser(ctx, sess.Users(), username)
	if err != nil {
		return nil, err
	}
	if !ok {
		a.deps.Logger.WithField("username", username).Debug("password authentication rejected: unknown user")
		a.deps.recordAuth(ctx, audit.EventTypeAuthLoginFailed, nil, username, audit.EventStatusFailure, "unknown user")
		return nil, ErrUnauthorized
	}

	if !user.VerifyPassword(password) {
		a.deps.Logger.WithField("username", username).Debug("password authentication rejected: wrong password")
		a.deps.recordAuth(ctx, audit.EventTypeAuthLoginFailed, &user.ID, username, audit.EventStatusFailure, "wrong password")
		return nil, ErrUnauthorized
	}

	a.deps.recordAuth(ctx, audit.EventTypeAuthLogin, &user.ID, username, audit.EventStatusSuccess, "password authentication")
	return &Outcome{User: user}, nil
}
