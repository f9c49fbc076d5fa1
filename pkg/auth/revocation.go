package auth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/platinummonkey/omicron/pkg/audit"
)

// RevokeBody is the optional JSON body of a revocation request.
type RevokeBody struct {
	Token *string `json:"token"`
}

// RevokeRequest describes one revocation attempt.
type RevokeRequest struct {
	Requester *Outcome
	// Username selects the account whose current token is revoked. Only
	// admins may name an account other than their own.
	Username string
	// Body is nil when the request had no body or it could not be parsed.
	Body *RevokeBody
}

// RevokeResult reports what was revoked. Token is nil when the target had no
// token to revoke.
type RevokeResult struct {
	Target *User
	Token  *Token
}

// Revoker ends tokens before their natural expiry.
type Revoker struct {
	deps Dependencies
}

// NewRevoker creates a Revoker.
func NewRevoker(deps Dependencies) *Revoker {
	return &Revoker{deps: deps.withDefaults()}
}

// Revoke applies the revocation rules:
//
//   - a caller authenticated by token must name the token in the body
//   - a token named in the body may be revoked by its owner or an admin
//   - otherwise an admin may revoke the current token of any account, and
//     everyone else revokes their own current token
func (r *Revoker) Revoke(ctx context.Context, sess Session, req RevokeRequest) (*RevokeResult, error) {
	if req.Requester == nil || req.Requester.User == nil {
		return nil, ErrUnauthorized
	}

	if req.Requester.ViaToken {
		if req.Body == nil {
			return nil, ErrMalformedBody
		}
		if req.Body.Token == nil {
			return nil, ErrMissingTokenField
		}
	}

	if req.Body != nil && req.Body.Token != nil {
		return r.revokeBySecret(ctx, sess, req.Requester.User, *req.Body.Token)
	}
	return r.revokeByUsername(ctx, sess, req.Requester.User, req.Username)
}

func (r *Revoker) revokeBySecret(ctx context.Context, sess Session, requester *User, secret string) (*RevokeResult, error) {
	tok, ok, err := LookupToken(ctx, sess.Tokens(), secret)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}

	if tok.OwnerID != requester.ID && !requester.IsAdmin() {
		r.deps.Logger.WithFields(map[string]interface{}{
			"username": requester.Username,
			"token_id": tok.ID,
		}).Warn("refused to revoke a token owned by another account")
		r.deps.recordAuthz(ctx, audit.EventTypeAuthzAccessDenied, &requester.ID, audit.ResourceTypeToken,
			strconv.FormatInt(tok.ID, 10), audit.EventStatusDenied, "not the token owner")
		return nil, ErrForbidden
	}

	owner := requester
	if tok.OwnerID != requester.ID {
		res, err := sess.Users().FindByID(ctx, tok.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("failed to load token owner: %w", err)
		}
		if u, found := res.Get(); found {
			owner = u
		}
	}

	if err := tok.Revoke(ctx, sess.Tokens(), r.deps.Clock.Now()); err != nil {
		return nil, err
	}

	target := "self"
	if owner.ID != requester.ID {
		target = "admin"
	}
	r.recordRevoked(ctx, requester, owner, tok, target)
	return &RevokeResult{Target: owner, Token: tok}, nil
}

func (r *Revoker) revokeByUsername(ctx context.Context, sess Session, requester *User, username string) (*RevokeResult, error) {
	target := requester
	if username != "" && username != requester.Username && requester.IsAdmin() {
		user, ok, err := LookupUser(ctx, sess.Users(), username)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.deps.Logger.WithFields(map[string]interface{}{
				"username": requester.Username,
				"target":   username,
			}).Info("admin revocation refused: no such account")
			return nil, ErrForbidden
		}
		target = user
	}

	tok, ok, err := target.CurrentToken(ctx, sess.Tokens())
	if err != nil {
		return nil, err
	}
	if !ok {
		r.deps.Logger.WithField("target", target.Username).Debug("no token to revoke")
		return &RevokeResult{Target: target}, nil
	}

	if err := tok.Revoke(ctx, sess.Tokens(), r.deps.Clock.Now()); err != nil {
		return nil, err
	}

	kind := "self"
	if target.ID != requester.ID {
		kind = "admin"
	}
	r.recordRevoked(ctx, requester, target, tok, kind)
	return &RevokeResult{Target: target, Token: tok}, nil
}

func (r *Revoker) recordRevoked(ctx context.Context, requester, owner *User, tok *Token, target string) {
	r.deps.Metrics.RecordTokenRevoked(target)
	r.deps.Logger.WithFields(map[string]interface{}{
		"username": requester.Username,
		"owner":    owner.Username,
		"token_id": tok.ID,
	}).Info("token revoked")
	r.deps.recordAuth(ctx, audit.EventTypeAuthTokenRevoke, &owner.ID, owner.Username, audit.EventStatusSuccess,
		fmt.Sprintf("token %d revoked by %s", tok.ID, requester.Username))
}
