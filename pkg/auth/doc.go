// Package auth decides who is making a request and manages the bearer tokens
// that let a caller skip sending its password.
//
// # Credentials
//
// Passwords are stored as bcrypt hashes (PasswordHasher) and checked with
// VerifyPassword. Token secrets are random UUID strings handed to the caller
// exactly once; only their SHA-256 hex fingerprint (HashToken) is stored, and
// the fingerprint is also the lookup key.
//
// # Tokens
//
// A token is valid while now is before its expiry. Revoking a token sets its
// expiry to the revocation time; the row stays behind as a record. A user may
// hold several unexpired tokens, but only the most recently created one (the
// current token) authenticates:
//
//	secret, expiresAt, err := user.GenerateAuthToken(ctx, sess.Tokens(), now, 0) // default 30 minutes
//	ok, err := user.VerifyAuthToken(ctx, sess.Tokens(), secret, now)
//
// # Request Authentication
//
// Authenticator.Resolve turns a BearerCredential or PasswordCredential into an
// Outcome, or returns the opaque ErrUnauthorized:
//
//	err := store.WithSession(ctx, func(ctx context.Context, sess auth.Session) error {
//		out, err := authenticator.Resolve(ctx, sess, auth.PasswordCredential{Username: "scott", Password: "tiger"})
//		...
//	})
//
// # Issuance and Revocation
//
// Issuer mints tokens for password-authenticated callers only; a token cannot
// be used to obtain another token. Revoker applies the revocation rules:
// callers authenticated by token must name the token to revoke in the request
// body, owners and admins may revoke a named token, admins may revoke the
// current token of any account, and everyone else revokes their own.
//
// # Storage
//
// The package depends on the Store, Session, UserRepository and
// TokenRepository interfaces. Every single-row lookup returns a
// storage.Result; more than one row is reported as ErrStoreContract.
package auth
