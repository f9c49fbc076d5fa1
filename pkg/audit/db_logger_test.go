package audit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/omicron/pkg/contextkeys"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestNewDBLogger(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, _ := setupMockDB(t)
		defer db.Close()

		logger, err := NewDBLogger(db)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("nil database", func(t *testing.T) {
		logger, err := NewDBLogger(nil)
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "database connection is required")
	})
}

func TestDBLogger_Log(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		userID := int64(7)
		event := &AuditEvent{
			Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			EventType: EventTypeAuthTokenCreate,
			Status:    EventStatusSuccess,
			UserID:    &userID,
			Username:  "scott",
			Message:   "token issued",
			Metadata:  map[string]interface{}{"ttl_seconds": 1800},
		}

		mock.ExpectQuery("INSERT INTO audit_logs").
			WithArgs(
				event.Timestamp, event.EventType, event.Status,
				&userID, "scott", nil,
				ResourceType(""), "",
				"", "",
				"token issued", `{"ttl_seconds":1800}`,
			).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		err := logger.Log(context.Background(), event)
		require.NoError(t, err)
		assert.Equal(t, int64(42), event.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		mock.ExpectQuery("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))

		err := logger.Log(context.Background(), &AuditEvent{EventType: EventTypeAuthLogin})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert audit log")
	})

	t.Run("unmarshalable metadata", func(t *testing.T) {
		db, _ := setupMockDB(t)
		defer db.Close()

		logger := &DBLogger{db: db}
		err := logger.Log(context.Background(), &AuditEvent{
			Metadata: map[string]interface{}{"bad": make(chan int)},
		})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to marshal metadata")
	})
}

func TestDBLogger_LogAuthentication(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	logger := &DBLogger{db: db}
	ctx := contextkeys.WithRequestID(context.Background(), "req-1")
	ctx = contextkeys.WithClientIP(ctx, "10.0.0.1")

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(
			sqlmock.AnyArg(), EventTypeAuthLoginFailed, EventStatusFailure,
			nil, "scott", nil,
			ResourceTypeUser, "",
			"10.0.0.1", "req-1",
			"bad credentials", sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := logger.LogAuthentication(ctx, EventTypeAuthLoginFailed, nil, "scott", EventStatusFailure, "bad credentials")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBLogger_LogAuthorization(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	logger := &DBLogger{db: db}
	userID := int64(3)

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(
			sqlmock.AnyArg(), EventTypeAuthzAccessDenied, EventStatusDenied,
			&userID, "", nil,
			ResourceTypeToken, "99",
			"", "",
			"not the token owner", sqlmock.AnyArg(),
		).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	err := logger.LogAuthorization(context.Background(), EventTypeAuthzAccessDenied, &userID, ResourceTypeToken, "99", EventStatusDenied, "not the token owner")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, logger.Close())
}
