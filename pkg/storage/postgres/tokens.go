package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/storage"
)

// TokenRepository stores token fingerprints in the tokens table.
type TokenRepository struct {
	db storage.DBTX
}

// NewTokenRepository creates a TokenRepository on db.
func NewTokenRepository(db storage.DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

const tokenColumns = `id, user_id, fingerprint, created_at, expires_at`

// Create inserts token.
func (r *TokenRepository) Create(ctx context.Context, token *auth.Token) error {
	query := `
		INSERT INTO tokens (user_id, fingerprint, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		token.OwnerID, token.Fingerprint, token.CreatedAt.UTC(), token.ExpiresAt.UTC(),
	).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// FindByFingerprint looks up a token by the hash of its secret.
func (r *TokenRepository) FindByFingerprint(ctx context.Context, fingerprint string) (storage.Result[*auth.Token], error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE fingerprint = $1 LIMIT 2`
	return r.query(ctx, query, fingerprint)
}

// Latest returns the owner's newest token. Ties on created_at go to the
// higher id.
func (r *TokenRepository) Latest(ctx context.Context, ownerID int64) (storage.Result[*auth.Token], error) {
	query := `
		SELECT ` + tokenColumns + ` FROM tokens
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.query(ctx, query, ownerID)
}

// UpdateExpiration moves a token's expiry.
func (r *TokenRepository) UpdateExpiration(ctx context.Context, tokenID int64, expiresAt time.Time) error {
	query := `UPDATE tokens SET expires_at = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, expiresAt.UTC(), tokenID)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("token %d: %w", tokenID, sql.ErrNoRows)
	}
	return nil
}

func (r *TokenRepository) query(ctx context.Context, query string, args ...any) (storage.Result[*auth.Token], error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.NotFound[*auth.Token](), fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*auth.Token
	for rows.Next() {
		var tok auth.Token
		if err := rows.Scan(&tok.ID, &tok.OwnerID, &tok.Fingerprint, &tok.CreatedAt, &tok.ExpiresAt); err != nil {
			return storage.NotFound[*auth.Token](), fmt.Errorf("failed to scan token: %w", err)
		}
		tok.CreatedAt = tok.CreatedAt.UTC()
		tok.ExpiresAt = tok.ExpiresAt.UTC()
		tokens = append(tokens, &tok)
	}
	if err := rows.Err(); err != nil {
		return storage.NotFound[*auth.Token](), fmt.Errorf("failed to read tokens: %w", err)
	}
	return storage.FromRows(tokens), nil
}
