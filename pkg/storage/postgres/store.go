package postgres

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/storage"
)

// Store is a database-backed auth.Store. Each session is one transaction.
type Store struct {
	db     *sql.DB
	txOpts *sql.TxOptions
}

// NewStore creates a Store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithSession runs fn in a transaction that is committed when fn returns nil.
func (s *Store) WithSession(ctx context.Context, fn func(ctx context.Context, sess auth.Session) error) error {
	return storage.WithTx(ctx, s.db, s.txOpts, func(ctx context.Context, tx storage.DBTX) error {
		return fn(ctx, &session{
			users:  NewUserRepository(tx),
			tokens: NewTokenRepository(tx),
		})
	})
}

type session struct {
	users  *UserRepository
	tokens *TokenRepository
}

func (s *session) Users() auth.UserRepository   { return s.users }
func (s *session) Tokens() auth.TokenRepository { return s.tokens }
