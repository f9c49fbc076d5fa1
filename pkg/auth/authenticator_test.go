package auth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/omicron/pkg/audit"
	"github.com/platinummonkey/omicron/pkg/observability"
)

func TestAuthenticator_Password(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	scott := createUser(t, store, "scott", "tiger", RoleUser)
	authn := NewAuthenticator(testDeps(clockwork.NewFakeClockAt(epoch)))

	t.Run("correct password", func(t *testing.T) {
		out, err := authn.Resolve(ctx, store, PasswordCredential{Username: "scott", Password: "tiger"})
		require.NoError(t, err)
		assert.Equal(t, scott.ID, out.User.ID)
		assert.False(t, out.ViaToken)
		assert.Nil(t, out.Token)
	})

	rejections := []struct {
		name string
		cred Credential
	}{
		{"wrong password", PasswordCredential{Username: "scott", Password: "lion"}},
		{"unknown user", PasswordCredential{Username: "nobody", Password: "tiger"}},
		{"empty credential", PasswordCredential{}},
		{"nil credential", nil},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			out, err := authn.Resolve(ctx, store, tt.cred)
			assert.ErrorIs(t, err, ErrUnauthorized)
			assert.Nil(t, out)
		})
	}
}

func TestAuthenticator_Token(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	store := newMemStore()
	scott := createUser(t, store, "scott", "tiger", RoleUser)
	authn := NewAuthenticator(testDeps(clock))

	secret, _, err := scott.GenerateAuthToken(ctx, store.Tokens(), clock.Now(), 0)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		out, err := authn.Resolve(ctx, store, BearerCredential{Token: secret})
		require.NoError(t, err)
		assert.Equal(t, scott.ID, out.User.ID)
		assert.True(t, out.ViaToken)
		require.NotNil(t, out.Token)
		assert.Equal(t, HashToken(secret), out.Token.Fingerprint)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := authn.Resolve(ctx, store, BearerCredential{Token: "not-a-token"})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("secret used as a password is rejected", func(t *testing.T) {
		_, err := authn.Resolve(ctx, store, PasswordCredential{Username: "scott", Password: secret})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired token", func(t *testing.T) {
		clock.Advance(DefaultTokenTTL)

		_, err := authn.Resolve(ctx, store, BearerCredential{Token: secret})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestAuthenticator_SupersededToken(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	store := newMemStore()
	scott := createUser(t, store, "scott", "tiger", RoleUser)
	authn := NewAuthenticator(testDeps(clock))

	first, _, err := scott.GenerateAuthToken(ctx, store.Tokens(), clock.Now(), 0)
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, _, err := scott.GenerateAuthToken(ctx, store.Tokens(), clock.Now(), 0)
	require.NoError(t, err)

	_, err = authn.Resolve(ctx, store, BearerCredential{Token: first})
	assert.ErrorIs(t, err, ErrUnauthorized)

	out, err := authn.Resolve(ctx, store, BearerCredential{Token: second})
	require.NoError(t, err)
	assert.True(t, out.ViaToken)
}

func TestAuthenticator_OrphanedToken(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	require.NoError(t, store.Tokens().Create(ctx, NewToken(99, "orphan", epoch, nil, 0)))

	authn := NewAuthenticator(testDeps(clockwork.NewFakeClockAt(epoch)))
	_, err := authn.Resolve(ctx, store, BearerCredential{Token: "orphan"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticator_Faults(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	createUser(t, store, "scott", "tiger", RoleUser)
	authn := NewAuthenticator(testDeps(clockwork.NewFakeClockAt(epoch)))

	t.Run("store errors are not rejections", func(t *testing.T) {
		store.err = errors.New("connection refused")
		defer func() { store.err = nil }()

		_, err := authn.Resolve(ctx, store, PasswordCredential{Username: "scott", Password: "tiger"})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("duplicate usernames fault", func(t *testing.T) {
		store.users = append(store.users, store.users[0])
		defer func() { store.users = store.users[:1] }()

		_, err := authn.Resolve(ctx, store, PasswordCredential{Username: "scott", Password: "tiger"})
		assert.ErrorIs(t, err, ErrStoreContract)
	})
}

func TestAuthenticator_Observability(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	createUser(t, store, "scott", "tiger", RoleUser)

	var buf bytes.Buffer
	logger := observability.NewLogger(observability.DebugLevel, &buf)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	authn := NewAuthenticator(Dependencies{
		Clock:   clockwork.NewFakeClockAt(epoch),
		Logger:  logger,
		Metrics: metrics,
		Audit:   audit.NewLogLogger(logger),
	})

	_, err := authn.Resolve(ctx, store, PasswordCredential{Username: "scott", Password: "tiger"})
	require.NoError(t, err)
	_, err = authn.Resolve(ctx, store, PasswordCredential{Username: "scott", Password: "hunter2"})
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuthAttemptsTotal.WithLabelValues("password", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AuthAttemptsTotal.WithLabelValues("password", "rejected")))

	logs := buf.String()
	assert.Contains(t, logs, `"event_type":"auth.login"`)
	assert.Contains(t, logs, `"event_type":"auth.login_failed"`)
	assert.False(t, strings.Contains(logs, "tiger") || strings.Contains(logs, "hunter2"), "passwords must not be logged")
}

func TestCredentialMethod(t *testing.T) {
	assert.Equal(t, "token", Method(BearerCredential{}))
	assert.Equal(t, "password", Method(PasswordCredential{}))
	assert.Equal(t, "unknown", Method(nil))
}

func TestOutcomeContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, OutcomeFromContext(ctx))

	out := &Outcome{User: &User{ID: 4, Username: "scott"}, ViaToken: true}
	ctx = WithOutcome(ctx, out)
	assert.Same(t, out, OutcomeFromContext(ctx))
}
