package audithandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesheets/internal/domain/audit"
	"timesheets/internal/domain/auth"
	"timesheets/internal/transport/http/middleware"
)

func TestAuditRoutesRequireAdmin(t *testing.T) {
	secret := "test-secret"
	log := audit.NewMemory()
	require.NoError(t, log.Record(context.Background(), "time_entry.submit", "time_entry", "t1", nil, nil))

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Auth(secret))
	NewHandler(log, auth.StaticPermissions{}).RegisterRoutes(r)

	call := func(role, path string) *httptest.ResponseRecorder {
		token, err := auth.GenerateToken(secret, auth.Claims{UserID: "u1", RoleName: role}, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, call(auth.RoleManager, "/audit/events").Code)

	rec := call(auth.RoleAdmin, "/audit/events?action=time_entry.submit")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entityId":"t1"`)

	rec = call(auth.RoleAdmin, "/audit/events/export")
	assert.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 2)

	rec = call(auth.RoleAdmin, "/audit/events?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"limit"`)
}
