// Package audit records security-relevant authentication events.
//
// # Overview
//
// Every password login, token authentication, token issuance and token
// revocation is recorded with its outcome, the acting account and the request
// context (request ID and client address). Rejections are recorded with the
// presented username only; secrets never reach the audit trail.
//
// # Event Types
//
// Authentication: auth.login, auth.login_failed, auth.token_validate,
// auth.token_validate_fail, auth.token_create, auth.token_revoke
// Authorization: authz.access_denied
// Admin: admin.user_create
//
// # Sinks
//
// DBLogger inserts into the audit_logs table created by the storage
// migrations. LogLogger writes events through the structured application
// logger. NewNoOpLogger discards everything and is the default.
//
//	logger := audit.NewDBLogger(db)
//	logger.LogAuthentication(ctx, audit.EventTypeAuthLogin, &user.ID, user.Username,
//		audit.EventStatusSuccess, "password login")
package audit
