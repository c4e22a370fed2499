package app

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"clinic-console/internal/auth"
	"clinic-console/internal/common/ratelimit"
	"clinic-console/internal/handlers"
	"clinic-console/internal/metrics"
	"clinic-console/internal/middleware"
	httpratelimit "clinic-console/internal/ratelimit"
	"clinic-console/internal/storage"
)

// RouteDeps are the pieces of the app the router needs
type RouteDeps struct {
	Handlers      *handlers.Handlers
	Tokens        *auth.TokenService
	Limiter       *httpratelimit.Limiter
	GlobalLimiter *ratelimit.GlobalLimiter
	Metrics       *metrics.Metrics
	WebhookRule   httpratelimit.Rule
	APIRule       httpratelimit.Rule
}

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, deps RouteDeps) {
	h := deps.Handlers

	router.Use(middleware.RequestID, middleware.Logging(deps.Metrics))

	// Health, metrics and docs (no auth required)
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// Auth routes that work without an access token. Login carries its own per-IP limit.
	router.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/api/auth/refresh", h.Refresh).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.Logout).Methods("POST")

	// CTI webhook: shared secret, then the process-wide cap, then the per-IP window
	webhook := h.RequireWebhookSecret(
		httpratelimit.GlobalMiddleware(deps.GlobalLimiter, deps.Metrics)(
			deps.Limiter.Middleware(deps.WebhookRule)(http.HandlerFunc(h.CTIWebhook))))
	router.Handle("/api/cti/webhook", webhook).Methods("POST")

	// Protected routes - require an access token
	api := router.PathPrefix("/api").Subrouter()
	api.Use(deps.Tokens.RequireAuth)
	api.Use(deps.Limiter.Middleware(deps.APIRule))

	api.HandleFunc("/auth/me", h.Me).Methods("GET")
	api.HandleFunc("/auth/logout-all", h.LogoutAll).Methods("POST")

	api.HandleFunc("/cti/events", h.RecentEvents).Methods("GET")
	api.HandleFunc("/cti/calls", h.RecentCalls).Methods("GET")
	api.HandleFunc("/cti/stream", h.Stream).Methods("GET")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireRole(storage.RoleMaster, storage.RoleAdmin))
	admin.HandleFunc("/status", h.Status).Methods("GET")
	admin.HandleFunc("/cache", h.InvalidateCachePrefix).Methods("DELETE")
	admin.HandleFunc("/cache/{key}", h.InvalidateCacheKey).Methods("DELETE")
}

// userKey limits authenticated routes per user, falling back to the client IP
func userKey(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		return "user:" + claims.AccessPayload.ID
	}
	return "ip:" + httpratelimit.IPBasedKey(r)
}
