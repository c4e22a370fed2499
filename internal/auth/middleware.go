package auth

import (
	"context"
	"net/http"
	"strings"

	"clinic-console/internal/common/errors"
	httputil "clinic-console/internal/common/http"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/middleware"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type claimsKey struct{}

// ClaimsFromContext returns the claims stored by RequireAuth
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// ContextWithClaims is used by RequireAuth and by handler tests
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = logging.ContextWithUser(ctx, claims.AccessPayload.ID, claims.ClinicID)
	return context.WithValue(ctx, claimsKey{}, claims)
}

// bearerToken reads the Authorization header, falling back to the
// access_token cookie
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid access token with 401
func (s *TokenService) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			httputil.WriteError(w, r, errors.AuthError("authentication required"))
			return
		}

		claims, err := s.ParseAccessToken(token)
		if err != nil {
			httputil.WriteError(w, r, err)
			return
		}

		r.Header.Set(middleware.UserIDHeader, claims.AccessPayload.ID)
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireRole must run after RequireAuth
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, errors.AuthError("authentication required"))
				return
			}
			if !allowed[claims.Role] {
				httputil.WriteError(w, r, errors.ForbiddenError("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
