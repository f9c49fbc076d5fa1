package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/omicron/pkg/storage"
)

// memStore is an in-memory Store. Rows are copied in and out so that tests
// observe only what was persisted.
type memStore struct {
	mu          sync.Mutex
	users       []User
	tokens      []Token
	nextUserID  int64
	nextTokenID int64
	err         error
	updates     int
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) WithSession(ctx context.Context, fn func(ctx context.Context, sess Session) error) error {
	return fn(ctx, s)
}

func (s *memStore) Users() UserRepository  { return memUsers{s} }
func (s *memStore) Tokens() TokenRepository { return memTokens{s} }

// tokensOf returns the persisted tokens of a user in insertion order.
func (s *memStore) tokensOf(userID int64) []Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Token
	for _, tok := range s.tokens {
		if tok.OwnerID == userID {
			out = append(out, tok)
		}
	}
	return out
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(ctx context.Context, user *User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return ErrUserExists
		}
	}
	r.s.nextUserID++
	user.ID = r.s.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.s.users = append(r.s.users, *user)
	return nil
}

func (r memUsers) FindByUsername(ctx context.Context, username string) (storage.Result[*User], error) {
	return r.find(func(u User) bool { return u.Username == username })
}

func (r memUsers) FindByID(ctx context.Context, id int64) (storage.Result[*User], error) {
	return r.find(func(u User) bool { return u.ID == id })
}

func (r memUsers) find(match func(User) bool) (storage.Result[*User], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return storage.NotFound[*User](), r.s.err
	}
	var rows []*User
	for _, u := range r.s.users {
		if match(u) {
			u := u
			rows = append(rows, &u)
		}
	}
	return storage.FromRows(rows), nil
}

type memTokens struct{ s *memStore }

func (r memTokens) Create(ctx context.Context, token *Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	r.s.nextTokenID++
	token.ID = r.s.nextTokenID
	r.s.tokens = append(r.s.tokens, *token)
	return nil
}

func (r memTokens) FindByFingerprint(ctx context.Context, fp string) (storage.Result[*Token], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return storage.NotFound[*Token](), r.s.err
	}
	var rows []*Token
	for _, tok := range r.s.tokens {
		if tok.Fingerprint == fp {
			tok := tok
			rows = append(rows, &tok)
		}
	}
	return storage.FromRows(rows), nil
}

func (r memTokens) Latest(ctx context.Context, ownerID int64) (storage.Result[*Token], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return storage.NotFound[*Token](), r.s.err
	}
	var latest *Token
	for _, tok := range r.s.tokens {
		if tok.OwnerID != ownerID {
			continue
		}
		if latest == nil || tok.CreatedAt.After(latest.CreatedAt) ||
			(tok.CreatedAt.Equal(latest.CreatedAt) && tok.ID > latest.ID) {
			tok := tok
			latest = &tok
		}
	}
	if latest == nil {
		return storage.NotFound[*Token](), nil
	}
	return storage.Found(latest), nil
}

func (r memTokens) UpdateExpiration(ctx context.Context, tokenID int64, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.err != nil {
		return r.s.err
	}
	r.s.updates++
	for i := range r.s.tokens {
		if r.s.tokens[i].ID == tokenID {
			r.s.tokens[i].ExpiresAt = expiresAt
		}
	}
	return nil
}

var testHasher = NewPasswordHasher(bcrypt.MinCost)

var epoch = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func createUser(t *testing.T, store *memStore, username, password string, role Role) *User {
	t.Helper()
	user, err := NewUser(testHasher, username, password, nil, role)
	require.NoError(t, err)
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func testDeps(clock clockwork.Clock) Dependencies {
	return Dependencies{Clock: clock}
}
