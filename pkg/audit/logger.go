package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/omicron/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// LogAuthentication logs an authentication event
	LogAuthentication(ctx context.Context, eventType EventType, userID *int64, username string, status EventStatus, message string) error

	// LogAuthorization logs an authorization event
	LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error

	// Close flushes and releases the sink
	Close() error
}

// NewNoOpLogger returns a logger that discards every event
func NewNoOpLogger() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (noOpLogger) LogAuthentication(ctx context.Context, eventType EventType, userID *int64, username string, status EventStatus, message string) error {
	return nil
}

func (noOpLogger) LogAuthorization(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) error {
	return nil
}

func (noOpLogger) Close() error { return nil }

// buildBaseEvent creates an event stamped with the request context
func buildBaseEvent(ctx context.Context, eventType EventType, status EventStatus) *AuditEvent {
	return &AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Status:    status,
		IPAddress: contextkeys.GetClientIP(ctx),
		RequestID: contextkeys.GetRequestID(ctx),
	}
}

func authenticationEvent(ctx context.Context, eventType EventType, userID *int64, username string, status EventStatus, message string) *AuditEvent {
	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = userID
	event.Username = username
	event.Message = message
	event.ResourceType = ResourceTypeUser
	return event
}

func authorizationEvent(ctx context.Context, eventType EventType, userID *int64, resourceType ResourceType, resourceID string, status EventStatus, message string) *AuditEvent {
	event := buildBaseEvent(ctx, eventType, status)
	event.UserID = userID
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	return event
}
