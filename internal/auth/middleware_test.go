package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-console/internal/auth"
	"clinic-console/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protected(t *testing.T, svc *auth.TokenService, roles ...string) http.Handler {
	t.Helper()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		require.True(t, ok)
		w.Header().Set("X-User", claims.AccessPayload.ID)
		w.WriteHeader(http.StatusNoContent)
	})
	var h http.Handler = inner
	if len(roles) > 0 {
		h = auth.RequireRole(roles...)(h)
	}
	return svc.RequireAuth(h)
}

func TestRequireAuth(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := newTokenService(t, newStore(t), clock)
	token, err := svc.GenerateAccessToken(auth.AccessPayload{ID: "u1", Role: storage.RoleStaff, ClinicID: "c1"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, http.StatusNoContent},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: token})
		}, http.StatusNoContent},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			protected(t, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "u1", rec.Header().Get("X-User"))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	svc := newTokenService(t, newStore(t), clock)

	for role, want := range map[string]int{
		storage.RoleStaff:  http.StatusForbidden,
		storage.RoleAdmin:  http.StatusNoContent,
		storage.RoleMaster: http.StatusNoContent,
	} {
		token, err := svc.GenerateAccessToken(auth.AccessPayload{ID: "u1", Role: role, ClinicID: "c1"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodDelete, "/api/admin/cache", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		protected(t, svc, storage.RoleAdmin, storage.RoleMaster).ServeHTTP(rec, req)

		assert.Equal(t, want, rec.Code, role)
	}
}
