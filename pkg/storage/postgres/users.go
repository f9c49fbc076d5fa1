package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/storage"
)

// UserRepository stores accounts in the users table.
type UserRepository struct {
	db storage.DBTX
}

// NewUserRepository creates a UserRepository on db.
func NewUserRepository(db storage.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, created_at`

// Create inserts user. A zero CreatedAt is set to the current time.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC()

	query := `
		INSERT INTO users (username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByUsername looks up an account by its unique username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (storage.Result[*auth.User], error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 LIMIT 2`
	return r.query(ctx, query, username)
}

// FindByID looks up an account by its primary key.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (storage.Result[*auth.User], error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 2`
	return r.query(ctx, query, id)
}

func (r *UserRepository) query(ctx context.Context, query string, args ...any) (storage.Result[*auth.User], error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.NotFound[*auth.User](), fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return storage.NotFound[*auth.User](), err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return storage.NotFound[*auth.User](), fmt.Errorf("failed to read users: %w", err)
	}
	return storage.FromRows(users), nil
}

func scanUser(rows *sql.Rows) (*auth.User, error) {
	var (
		user  auth.User
		email sql.NullString
		role  string
	)
	if err := rows.Scan(&user.ID, &user.Username, &email, &user.PasswordHash, &role, &user.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	parsed, err := auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", user.ID, err)
	}
	user.Role = parsed
	if email.Valid {
		user.Email = &email.String
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}
