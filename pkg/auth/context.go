package auth

import (
	"context"
	"strconv"

	"github.com/platinummonkey/omicron/pkg/contextkeys"
)

// WithOutcome stores the authentication outcome and the user ID in ctx.
func WithOutcome(ctx context.Context, out *Outcome) context.Context {
	ctx = contextkeys.WithAuth(ctx, out)
	if out != nil && out.User != nil {
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(out.User.ID, 10))
	}
	return ctx
}

// OutcomeFromContext returns the outcome stored by WithOutcome, or nil.
func OutcomeFromContext(ctx context.Context) *Outcome {
	out, _ := ctx.Value(contextkeys.AuthKey).(*Outcome)
	return out
}
