package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/omicron/pkg/storage"
)

// User is an account that can authenticate with a password or a token.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        *string   `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"date_created"`
}

// NewUser creates an account with password hashed by hasher. The plaintext is
// not retained.
func NewUser(hasher *PasswordHasher, username, password string, email *string, role Role) (*User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidUser)
	}
	if role == "" {
		role = RoleUser
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUser, err)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	return &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}, nil
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

// VerifyPassword reports whether password matches the stored hash.
func (u *User) VerifyPassword(password string) bool {
	return VerifyPassword(password, u.PasswordHash)
}

// Equal compares username, password hash and email. ID, role and timestamps are ignored.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	if u.Username != other.Username || u.PasswordHash != other.PasswordHash {
		return false
	}
	if u.Email == nil || other.Email == nil {
		return u.Email == nil && other.Email == nil
	}
	return *u.Email == *other.Email
}

func (u *User) String() string {
	email := ""
	if u.Email != nil {
		email = *u.Email
	}
	return fmt.Sprintf("User(%s, %s, %s)", u.Username, u.PasswordHash, email)
}

// GenerateAuthToken issues a new token valid for ttl from now and returns its
// plaintext secret. This is the only place the secret is ever available.
// A non-positive ttl means DefaultTokenTTL.
func (u *User) GenerateAuthToken(ctx context.Context, tokens TokenRepository, now time.Time, ttl time.Duration) (string, time.Time, error) {
	secret := uuid.New()
	tok := NewTokenFromUUID(u.ID, secret, now, nil, ttl)

	if err := tokens.Create(ctx, tok); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store token for %s: %w", u.Username, err)
	}

	return secret.String(), tok.ExpiresAt, nil
}

// CurrentToken returns the most recently created token of the user. It is
// queried on every call and is never cached.
func (u *User) CurrentToken(ctx context.Context, tokens TokenRepository) (*Token, bool, error) {
	res, err := tokens.Latest(ctx, u.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load current token: %w", err)
	}
	if res.State() == storage.Many {
		return nil, false, fmt.Errorf("%w: current token of %s", ErrStoreContract, u.Username)
	}

	tok, ok := res.Get()
	return tok, ok, nil
}

// VerifyAuthToken checks secret against the user's current token.
func (u *User) VerifyAuthToken(ctx context.Context, tokens TokenRepository, secret string, now time.Time) (bool, error) {
	tok, ok, err := u.CurrentToken(ctx, tokens)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return tok.Verify(secret, now), nil
}

// LookupUser finds an account by username. A missing account is reported as
// ok == false; several matching rows are a store contract violation.
func LookupUser(ctx context.Context, users UserRepository, username string) (*User, bool, error) {
	res, err := users.FindByUsername(ctx, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}
	if res.State() == storage.Many {
		return nil, false, fmt.Errorf("%w: users named %q", ErrStoreContract, username)
	}

	user, ok := res.Get()
	return user, ok, nil
}
