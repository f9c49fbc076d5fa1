package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, http.StatusOK, map[string]string{"message": "hello_world"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"hello_world"}`, rec.Body.String())
}

func TestWriteCreated(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteCreated(rec, map[string]string{"token": "abc"}))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter)
		code    int
		message string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "bad") }, http.StatusBadRequest, "bad"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "forbidden") }, http.StatusForbidden, "forbidden"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "user not found") }, http.StatusNotFound, "user not found"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "exists") }, http.StatusConflict, "exists"},
		{"internal", WriteInternalError, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec).Error)
		})
	}
}

func TestWriteUnauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteUnauthorized(rec)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="Authentication Required"`, rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "unauthorized", decodeError(t, rec).Error)
}

func TestWriteTooManyRequests(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTooManyRequests(rec, 30)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "rate limit exceeded", resp.Error)
	assert.Equal(t, 30, resp.RetryAfter)
}
