package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cerineuginga/client-backend/projecthub/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditLines(t *testing.T, stream *bytes.Buffer) []map[string]interface{} {
	lines := make([]map[string]interface{}, 0)
	decoder := json.NewDecoder(stream)
	for decoder.More() {
		var line map[string]interface{}
		require.NoError(t, decoder.Decode(&line))
		lines = append(lines, line)
	}
	return lines
}

func TestAuditLoggerEvent(t *testing.T) {
	stream := new(bytes.Buffer)
	auditLog := NewAuditLogger(stream)

	auditLog.Event("login_failed", "email", "intruder@mail.com")

	lines := auditLines(t, stream)
	require.Len(t, lines, 1)
	assert.Equal(t, "login_failed", lines[0]["msg"])
	assert.Equal(t, "intruder@mail.com", lines[0]["email"])
}

func TestAuditLoggerMiddleware(t *testing.T) {
	stream := new(bytes.Buffer)
	auditLog := NewAuditLogger(stream)

	user := schema.User{Id: uuid.New(), UserName: "auditor"}

	var reached bool
	handler := auditLog.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	r := httptest.NewRequest("GET", "/project/list?status=Ongoing", nil)
	r = r.WithContext(context.WithValue(r.Context(), UserRequestContextKey, user))
	handler.ServeHTTP(httptest.NewRecorder(), r)

	assert.True(t, reached)

	lines := auditLines(t, stream)
	require.Len(t, lines, 1)
	assert.Equal(t, "auditor", lines[0]["username"])
	assert.Equal(t, user.Id.String(), lines[0]["user_id"])
	assert.Equal(t, "GET", lines[0]["method"])
	assert.Equal(t, "/project/list", lines[0]["path"])

	// Requests without an authenticated user never reach the handler.
	stream.Reset()
	denied := httptest.NewRecorder()
	handler.ServeHTTP(denied, httptest.NewRequest("GET", "/project/list", nil))
	assert.Equal(t, http.StatusInternalServerError, denied.Code)
	assert.Empty(t, auditLines(t, stream))
}
