package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/httputil"
	"github.com/platinummonkey/omicron/pkg/middleware"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	Username    string  `json:"username"`
	Email       *string `json:"email"`
	DateCreated string  `json:"date_created"`
}

func newUserResponse(u *auth.User) UserResponse {
	return UserResponse{
		Username:    u.Username,
		Email:       u.Email,
		DateCreated: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// registerUser handles POST /api/v1/users
func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var reg auth.Registration
	if err := httputil.ParseJSON(r, &reg); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	var user *auth.User
	err := s.store.WithSession(r.Context(), func(ctx context.Context, sess auth.Session) error {
		var err error
		user, err = s.registrar.Register(ctx, sess, reg)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	_ = httputil.WriteCreated(w, newUserResponse(user))
}

// getUser handles GET /api/v1/users/{username}
func (s *Server) getUser(ctx context.Context, sess auth.Session, out *auth.Outcome, r *http.Request) (*middleware.Reply, error) {
	username, err := httputil.ParsePathString(r, "username")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	user, found, err := auth.LookupUser(ctx, sess.Users(), username)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errUserNotFound
	}

	return &middleware.Reply{Status: http.StatusOK, Body: newUserResponse(user)}, nil
}
