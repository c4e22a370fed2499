package handlers

import (
	stderrors "errors"
	"net/http"
	"time"

	"clinic-console/internal/auth"
	"clinic-console/internal/common/errors"
	httputil "clinic-console/internal/common/http"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/common/validation"
	"clinic-console/internal/storage"
)

const refreshCookiePath = "/api/auth"

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse is returned by login and refresh. The tokens are also set as httpOnly cookies.
type AuthResponse struct {
	auth.TokenPair
	User *storage.User `json:"user"`
}

// Login exchanges credentials for a token pair
// @Summary Log in
// @Description Verifies the credentials and issues an access token and a refresh token. Repeated failures lock the account for a while.
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} httputil.ErrorResponse "Malformed request"
// @Failure 401 {object} httputil.ErrorResponse "Invalid username or password"
// @Failure 429 {object} httputil.ErrorResponse "Too many attempts"
// @Router /api/auth/login [post]
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r)
	if h.Limiter != nil {
		result, err := h.Limiter.Check(r.Context(), "login:"+ip, h.config.LoginRateLimit, h.config.LoginRateWindow)
		if err != nil {
			h.logger.Warn("login rate limit check failed, allowing request", logging.Err(err))
		} else if !result.Allowed {
			h.Metrics.RateLimited("login")
			httputil.WriteRateLimited(w, result.RetryAfter)
			return
		}
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	pair, user, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var locked *auth.LockedError
		if stderrors.As(err, &locked) {
			h.Metrics.RateLimited("login_lockout")
			httputil.WriteRateLimited(w, locked.RetryAfter)
			return
		}
		httputil.WriteError(w, r, err)
		return
	}

	h.setAuthCookies(w, pair)
	httputil.WriteJSON(w, http.StatusOK, AuthResponse{TokenPair: *pair, User: user})
}

// Refresh rotates the refresh token
// @Summary Refresh tokens
// @Description Exchanges a refresh token (cookie or body) for a new token pair. The presented token is revoked and cannot be used again.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest false "Refresh token when the cookie is not sent"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} httputil.ErrorResponse "Invalid or expired refresh token"
// @Router /api/auth/refresh [post]
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFrom(r)
	if token == "" {
		httputil.WriteError(w, r, auth.ErrInvalidRefreshToken)
		return
	}

	pair, user, err := h.Auth.Refresh(r.Context(), token)
	if err != nil {
		if errors.IsType(err, errors.ErrTypeAuth) {
			h.clearAuthCookies(w)
		}
		httputil.WriteError(w, r, err)
		return
	}

	h.setAuthCookies(w, pair)
	httputil.WriteJSON(w, http.StatusOK, AuthResponse{TokenPair: *pair, User: user})
}

// Logout revokes the presented refresh token
// @Summary Log out
// @Description Revokes the refresh token (cookie or body) and clears the auth cookies. Succeeds even when the token is unknown.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest false "Refresh token when the cookie is not sent"
// @Success 200 {object} map[string]bool
// @Router /api/auth/logout [post]
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := refreshTokenFrom(r); token != "" {
		if err := h.Auth.Logout(r.Context(), token); err != nil {
			httputil.WriteError(w, r, err)
			return
		}
	}
	h.clearAuthCookies(w)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// LogoutAll revokes every refresh token of the caller
// @Summary Log out everywhere
// @Description Revokes all refresh tokens of the authenticated user. Access tokens already issued stay valid until they expire.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/auth/logout-all [post]
func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, errors.AuthError("authentication required"))
		return
	}

	revoked, err := h.Auth.LogoutAll(r.Context(), claims.AccessPayload.ID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	h.clearAuthCookies(w)
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"revoked": revoked})
}

// Me returns the access token payload
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.AccessPayload
// @Failure 401 {object} httputil.ErrorResponse
// @Router /api/auth/me [get]
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, errors.AuthError("authentication required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claims.AccessPayload)
}

// refreshTokenFrom prefers the cookie; the body is optional
func refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(auth.RefreshTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	var req RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *Handlers) setAuthCookies(w http.ResponseWriter, pair *auth.TokenPair) {
	tokens := h.Auth.Tokens()
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(tokens.AccessTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		MaxAge:   int(tokens.RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearAuthCookies(w http.ResponseWriter) {
	for name, path := range map[string]string{
		auth.AccessTokenCookie:  "/",
		auth.RefreshTokenCookie: refreshCookiePath,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
