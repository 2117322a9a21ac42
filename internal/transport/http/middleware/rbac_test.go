package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"timesheets/internal/domain/auth"
	"timesheets/internal/requestctx"
)

type failingPermissions struct{}

func (failingPermissions) HasPermission(context.Context, string, string) (bool, error) {
	return false, errors.New("permissions unavailable")
}

func TestRequirePermissionStatusCodes(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	serve := func(store PermissionStore, actor *auth.Actor) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if actor != nil {
			req = req.WithContext(requestctx.WithActor(req.Context(), *actor))
		}
		rec := httptest.NewRecorder()
		RequirePermission(auth.PermTimesheetApprove, store)(ok).ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(auth.StaticPermissions{}, nil))
	assert.Equal(t, http.StatusForbidden, serve(auth.StaticPermissions{}, &auth.Actor{UserID: "u1", Role: auth.RoleEmployee}))
	assert.Equal(t, http.StatusNoContent, serve(auth.StaticPermissions{}, &auth.Actor{UserID: "u2", Role: auth.RoleManager}))
	assert.Equal(t, http.StatusInternalServerError, serve(failingPermissions{}, &auth.Actor{UserID: "u2", Role: auth.RoleManager}))
}
