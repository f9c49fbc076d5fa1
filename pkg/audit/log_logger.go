package audit

import (
	"context"

	"github.com/platinummonkey/omicron/pkg/observability"
)

// LogLogger writes audit events through the application logger
type LogLogger struct {
	logger *observability.Logger
}

// NewLogLogger creates an audit logger that emits one structured log line per event
func NewLogLogger(logger *observability.Logger) *LogLogger {
	return &LogLogger{logger: logger.WithField("component", "audit")}
}

// Log writes the event at info level, or warn level for failures and denials
func (l *LogLogger) Log(ctx context.Context, event *AuditEvent) error {
	fields := map[string]interface{}{
		"event_type": string(event.EventType),
		"status":     string(event.Status),
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	if event.Username != "" {
		fields["username"] = event.Username
	}
	if event.TokenID != nil {
		fields["token_id"] = *event.TokenID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = string(event.ResourceType)
		fields["resource_id"] = event.ResourceID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := l.logger.WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

// LogAuthentication logs an authentication event
func (l *LogLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, username string, status EventStatus, message string) error {
	return l.Log(ctx, authenticationEvent(ctx, eventType, userID, username, status, message))
}

// LogAuthorization logs an authorization event
func (l *LogLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	return l.Log(ctx, authorizationEvent(ctx, eventType, userID, resourceType, resourceID, status, message))
}

// Close is a no-op
func (l *LogLogger) Close() error {
	return nil
}
