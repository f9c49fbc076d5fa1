package auth

import "errors"

// Rejections. Callers map these to HTTP statuses with errors.Is.
var (
	// ErrUnauthorized is returned for every failed credential check, whatever
	// part of the credential was wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenMinting rejects an attempt to issue a token while authenticated by a token.
	ErrTokenMinting = errors.New("a token cannot be used to issue another token")

	// ErrForbidden rejects an authenticated caller acting outside its authority.
	ErrForbidden = errors.New("forbidden")

	// ErrMalformedBody rejects a revocation whose body is missing or not JSON.
	ErrMalformedBody = errors.New("request body is missing or could not be parsed")

	// ErrMissingTokenField rejects a revocation body that carries no token.
	ErrMissingTokenField = errors.New("request body does not contain a token")

	// ErrTokenNotFound rejects a revocation of a token value that is not on record.
	ErrTokenNotFound = errors.New("token not found")

	// ErrUserExists rejects a registration for a username that is taken.
	ErrUserExists = errors.New("username already exists")

	// ErrInvalidUser rejects a user that is missing required fields.
	ErrInvalidUser = errors.New("invalid user")
)

// ErrStoreContract is a programming fault: the store returned several rows for
// a lookup that the schema guarantees to be unique.
var ErrStoreContract = errors.New("store returned multiple rows for a unique lookup")
