package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/platinummonkey/omicron/pkg/audit"
)

// Column limits of the users table.
const (
	MaxUsernameLength = 64
	MaxEmailLength    = 64
)

// MaxPasswordLength is the longest password, in bytes, that bcrypt accepts.
const MaxPasswordLength = 72

// Registration is a request to open an account.
type Registration struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email"`
}

// Validate reports the first missing or oversized field as ErrInvalidUser.
func (r Registration) Validate() error {
	username := strings.TrimSpace(r.Username)
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidUser)
	case username != r.Username:
		return fmt.Errorf("%w: username must not start or end with spaces", ErrInvalidUser)
	case len(username) > MaxUsernameLength:
		return fmt.Errorf("%w: username is longer than %d characters", ErrInvalidUser, MaxUsernameLength)
	case strings.ContainsRune(username, ':'):
		// A colon would be ambiguous inside a Basic credential.
		return fmt.Errorf("%w: username must not contain ':'", ErrInvalidUser)
	case r.Password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidUser)
	case len(r.Password) > MaxPasswordLength:
		return fmt.Errorf("%w: password is longer than %d bytes", ErrInvalidUser, MaxPasswordLength)
	case r.Email != nil && len(*r.Email) > MaxEmailLength:
		return fmt.Errorf("%w: email is longer than %d characters", ErrInvalidUser, MaxEmailLength)
	}
	return nil
}

// Registrar opens accounts.
type Registrar struct {
	deps   Dependencies
	hasher *PasswordHasher
}

// NewRegistrar creates a Registrar that hashes passwords with hasher.
func NewRegistrar(deps Dependencies, hasher *PasswordHasher) *Registrar {
	return &Registrar{deps: deps.withDefaults(), hasher: hasher}
}

// Register creates a regular account. It returns ErrInvalidUser for bad input
// and ErrUserExists when the username is taken.
func (r *Registrar) Register(ctx context.Context, sess Session, reg Registration) (*User, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if reg.Email != nil && *reg.Email == "" {
		reg.Email = nil
	}

	user, err := r.create(ctx, sess, reg, RoleUser)
	if err != nil {
		return nil, err
	}

	r.deps.Metrics.RecordUserRegistered()
	r.deps.Logger.WithField("username", user.Username).Info("user registered")
	return user, nil
}

// EnsureAdmin creates an admin account unless the username already exists.
// An existing account is left untouched, whatever its role. It reports
// whether an account was created.
func (r *Registrar) EnsureAdmin(ctx context.Context, sess Session, reg Registration) (bool, error) {
	if err := reg.Validate(); err != nil {
		return false, err
	}

	_, found, err := LookupUser(ctx, sess.Users(), reg.Username)
	if err != nil {
		return false, err
	}
	if found {
		r.deps.Logger.WithField("username", reg.Username).Debug("bootstrap admin already exists")
		return false, nil
	}

	if _, err := r.create(ctx, sess, reg, RoleAdmin); err != nil {
		if errors.Is(err, ErrUserExists) {
			return false, nil
		}
		return false, err
	}

	r.deps.Logger.WithField("username", reg.Username).Info("bootstrap admin created")
	return true, nil
}

func (r *Registrar) create(ctx context.Context, sess Session, reg Registration, role Role) (*User, error) {
	user, err := NewUser(r.hasher, reg.Username, reg.Password, reg.Email, role)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = r.deps.Clock.Now().UTC()

	if err := sess.Users().Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user %s: %w", reg.Username, err)
	}

	r.deps.recordAuthz(ctx, audit.EventTypeAdminUserCreate, &user.ID, audit.ResourceTypeUser,
		strconv.FormatInt(user.ID, 10), audit.EventStatusSuccess, fmt.Sprintf("%s account created", role))
	return user, nil
}
