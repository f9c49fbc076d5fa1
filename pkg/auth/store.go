package auth

import (
	"context"
	"time"

	"github.com/platinummonkey/omicron/pkg/storage"
)

// UserRepository persists accounts.
type UserRepository interface {
	// Create inserts user and fills in its ID and CreatedAt.
	// It returns ErrUserExists when the username is taken.
	Create(ctx context.Context, user *User) error
	FindByUsername(ctx context.Context, username string) (storage.Result[*User], error)
	FindByID(ctx context.Context, id int64) (storage.Result[*User], error)
}

// TokenRepository persists token records. Plaintext secrets never reach it.
type TokenRepository interface {
	// Create inserts token and fills in its ID.
	Create(ctx context.Context, token *Token) error
	FindByFingerprint(ctx context.Context, fingerprint string) (storage.Result[*Token], error)
	// Latest returns the most recently created token of an owner, expired or not.
	Latest(ctx context.Context, ownerID int64) (storage.Result[*Token], error)
	UpdateExpiration(ctx context.Context, tokenID int64, expiresAt time.Time) error
}

// Session is a transactional unit of work scoped to one request.
type Session interface {
	Users() UserRepository
	Tokens() TokenRepository
}

// Store opens sessions. WithSession commits when fn returns nil and rolls
// back when fn returns an error or panics.
type Store interface {
	WithSession(ctx context.Context, fn func(ctx context.Context, sess Session) error) error
}
