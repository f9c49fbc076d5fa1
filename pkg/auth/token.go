package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/omicron/pkg/storage"
)

// DefaultTokenTTL is the lifetime of a token issued without an explicit one.
const DefaultTokenTTL = 1800 * time.Second

// Token is a persisted bearer token. Only the fingerprint of the secret is kept.
type Token struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"user_id"`
	Fingerprint string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewToken builds a token record for secret. When expiresAt is nil the token
// expires ttl after createdAt; a non-positive ttl means DefaultTokenTTL.
func NewToken(ownerID int64, secret string, createdAt time.Time, expiresAt *time.Time, ttl time.Duration) *Token {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	createdAt = createdAt.UTC()

	exp := createdAt.Add(ttl)
	if expiresAt != nil {
		exp = expiresAt.UTC()
	}

	return &Token{
		OwnerID:     ownerID,
		Fingerprint: HashToken(secret),
		CreatedAt:   createdAt,
		ExpiresAt:   exp,
	}
}

// NewTokenFromUUID is NewToken for UUID secrets, which are used in their
// canonical string form.
func NewTokenFromUUID(ownerID int64, secret uuid.UUID, createdAt time.Time, expiresAt *time.Time, ttl time.Duration) *Token {
	return NewToken(ownerID, secret.String(), createdAt, expiresAt, ttl)
}

// Expired reports whether the token is no longer usable at now.
func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Verify reports whether secret matches the token and the token is still valid
// at now. Expired tokens are rejected before the secret is hashed.
func (t *Token) Verify(secret string, now time.Time) bool {
	if t.Expired(now) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(secret)), []byte(t.Fingerprint)) == 1
}

// Revoke expires the token at now and persists the change. Revoking a token
// that has already expired leaves it untouched.
func (t *Token) Revoke(ctx context.Context, tokens TokenRepository, now time.Time) error {
	if t.Expired(now) {
		return nil
	}

	now = now.UTC()
	if err := tokens.UpdateExpiration(ctx, t.ID, now); err != nil {
		return fmt.Errorf("failed to revoke token %d: %w", t.ID, err)
	}
	t.ExpiresAt = now
	return nil
}

// LookupToken finds the token whose fingerprint matches secret. A missing token
// is reported as ok == false, not as an error.
func LookupToken(ctx context.Context, tokens TokenRepository, secret string) (*Token, bool, error) {
	res, err := tokens.FindByFingerprint(ctx, HashToken(secret))
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up token: %w", err)
	}
	if res.State() == storage.Many {
		return nil, false, fmt.Errorf("%w: tokens by fingerprint", ErrStoreContract)
	}

	tok, ok := res.Get()
	return tok, ok, nil
}
