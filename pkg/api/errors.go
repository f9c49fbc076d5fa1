package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/httputil"
	"github.com/platinummonkey/omicron/pkg/observability"
)

// errUserNotFound is returned by the user view for unknown usernames.
var errUserNotFound = errors.New("user not found")

// errBadRequest marks request bodies that could not be decoded.
var errBadRequest = errors.New("invalid request body")

// writeError maps domain errors to HTTP responses. Unknown errors are logged
// and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrTokenMinting):
		httputil.WriteUnauthorized(w)
	case errors.Is(err, auth.ErrForbidden):
		httputil.WriteForbidden(w, auth.ErrForbidden.Error())
	case errors.Is(err, auth.ErrMalformedBody),
		errors.Is(err, auth.ErrMissingTokenField),
		errors.Is(err, auth.ErrTokenNotFound):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrInvalidUser), errors.Is(err, errBadRequest):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		httputil.WriteConflict(w, auth.ErrUserExists.Error())
	case errors.Is(err, errUserNotFound):
		httputil.WriteNotFound(w, errUserNotFound.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w)
	}
}
