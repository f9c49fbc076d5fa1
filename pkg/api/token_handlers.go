package api

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/omicron/pkg/auth"
	"github.com/platinummonkey/omicron/pkg/httputil"
	"github.com/platinummonkey/omicron/pkg/middleware"
)

// TokenResponse is the body of a successful token issuance.
type TokenResponse struct {
	Token          string `json:"token"`
	ExpirationDate string `json:"expiration_date"`
}

// TokenStatusResponse is the body of a successful revocation.
type TokenStatusResponse struct {
	TokenStatus string `json:"token_status"`
}

// issueToken handles POST /api/v1/token
func (s *Server) issueToken(ctx context.Context, sess auth.Session, out *auth.Outcome, r *http.Request) (*middleware.Reply, error) {
	issued, err := s.issuer.Issue(ctx, sess, out, r.URL.Query().Get("expiration"))
	if err != nil {
		return nil, err
	}

	return &middleware.Reply{
		Status: http.StatusCreated,
		Body: TokenResponse{
			Token:          issued.Secret,
			ExpirationDate: issued.ExpiresAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

// revokeToken handles DELETE /api/v1/token
func (s *Server) revokeToken(ctx context.Context, sess auth.Session, out *auth.Outcome, r *http.Request) (*middleware.Reply, error) {
	req := auth.RevokeRequest{
		Requester: out,
		Username:  r.URL.Query().Get("username"),
	}

	var body auth.RevokeBody
	if httputil.ParseOptionalJSON(r, &body) {
		req.Body = &body
	}

	if _, err := s.revoker.Revoke(ctx, sess, req); err != nil {
		return nil, err
	}

	return &middleware.Reply{
		Status: http.StatusOK,
		Body:   TokenStatusResponse{TokenStatus: "deleted"},
	}, nil
}
