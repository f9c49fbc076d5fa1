package auth

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiration(t *testing.T) {
	tests := []struct {
		raw    string
		want   time.Duration
		wantOK bool
	}{
		{"", DefaultTokenTTL, false},
		{"60", time.Minute, true},
		{" 3600 ", time.Hour, true},
		{"0", DefaultTokenTTL, false},
		{"-5", DefaultTokenTTL, false},
		{"1.5", DefaultTokenTTL, false},
		{"soon", DefaultTokenTTL, false},
		{"9223372036", 9223372036 * time.Second, true},
		{"9223372037", DefaultTokenTTL, false},
		{"20000000000", DefaultTokenTTL, false},
		{"99999999999999999999", DefaultTokenTTL, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseExpiration(tt.raw, DefaultTokenTTL)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestIssuer_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTokenTTL, NewIssuer(Dependencies{}, 0).DefaultTTL())
	assert.Equal(t, time.Minute, NewIssuer(Dependencies{}, time.Minute).DefaultTTL())
}

func TestIssuer_Issue(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	store := newMemStore()
	scott := createUser(t, store, "scott", "tiger", RoleUser)
	issuer := NewIssuer(testDeps(clock), 0)
	caller := &Outcome{User: scott}

	t.Run("default lifetime", func(t *testing.T) {
		issued, err := issuer.Issue(ctx, store, caller, "")
		require.NoError(t, err)
		assert.NotEmpty(t, issued.Secret)
		assert.Equal(t, epoch.Add(1800*time.Second), issued.ExpiresAt)

		toks := store.tokensOf(scott.ID)
		require.NotEmpty(t, toks)
		last := toks[len(toks)-1]
		assert.Equal(t, HashToken(issued.Secret), last.Fingerprint)
		assert.NotEqual(t, issued.Secret, last.Fingerprint)
	})

	t.Run("requested lifetime", func(t *testing.T) {
		issued, err := issuer.Issue(ctx, store, caller, "60")
		require.NoError(t, err)
		assert.Equal(t, epoch.Add(time.Minute), issued.ExpiresAt)
	})

	t.Run("malformed lifetime falls back", func(t *testing.T) {
		for _, raw := range []string{"tomorrow", "9223372037"} {
			issued, err := issuer.Issue(ctx, store, caller, raw)
			require.NoError(t, err)
			assert.Equal(t, epoch.Add(DefaultTokenTTL), issued.ExpiresAt, raw)
		}
	})

	t.Run("issued token authenticates", func(t *testing.T) {
		issued, err := issuer.Issue(ctx, store, caller, "")
		require.NoError(t, err)

		out, err := NewAuthenticator(testDeps(clock)).Resolve(ctx, store, BearerCredential{Token: issued.Secret})
		require.NoError(t, err)
		assert.Equal(t, scott.ID, out.User.ID)
	})
}

func TestIssuer_RefusesTokenCallers(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	store := newMemStore()
	scott := createUser(t, store, "scott", "tiger", RoleUser)
	issuer := NewIssuer(testDeps(clock), 0)

	first, err := issuer.Issue(ctx, store, &Outcome{User: scott}, "")
	require.NoError(t, err)

	out, err := NewAuthenticator(testDeps(clock)).Resolve(ctx, store, BearerCredential{Token: first.Secret})
	require.NoError(t, err)

	issued, err := issuer.Issue(ctx, store, out, "")
	assert.ErrorIs(t, err, ErrTokenMinting)
	assert.Nil(t, issued)
	assert.Len(t, store.tokensOf(scott.ID), 1)
}

func TestIssuer_NoCaller(t *testing.T) {
	_, err := NewIssuer(Dependencies{}, 0).Issue(context.Background(), newMemStore(), nil, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
}
