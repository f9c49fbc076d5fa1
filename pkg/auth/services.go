package auth

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/omicron/pkg/audit"
	"github.com/platinummonkey/omicron/pkg/observability"
)

// Dependencies are the collaborators shared by Authenticator, Issuer and Revoker.
// Zero fields are replaced with a real clock, a discarding logger, no metrics
// and a no-op audit logger.
type Dependencies struct {
	Clock   clockwork.Clock
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Audit   audit.Logger
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = observability.NewNopLogger()
	}
	if d.Audit == nil {
		d.Audit = audit.NewNoOpLogger()
	}
	return d
}

// Audit failures are logged and otherwise ignored.

func (d Dependencies) recordAuth(ctx context.Context, eventType audit.EventType, userID *int64, username string, status audit.EventStatus, message string) {
	if err := d.Audit.LogAuthentication(ctx, eventType, userID, username, status, message); err != nil {
		d.Logger.WithError(err).WithField("event_type", string(eventType)).Warn("failed to write audit event")
	}
}

func (d Dependencies) recordAuthz(ctx context.Context, eventType audit.EventType, userID *int64, resourceType audit.ResourceType, resourceID string, status audit.EventStatus, message string) {
	if err := d.Audit.LogAuthorization(ctx, eventType, userID, resourceType, resourceID, status, message); err != nil {
		d.Logger.WithError(err).WithField("event_type", string(eventType)).Warn("failed to write audit event")
	}
}
