package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"clinic-console/internal/circuitbreaker"
	"clinic-console/internal/common/cache"
	"clinic-console/internal/common/errors"
	httputil "clinic-console/internal/common/http"
	"clinic-console/internal/common/logging"
)

// StatusResponse summarizes runtime state for administrators
type StatusResponse struct {
	StreamClients int                    `json:"streamClients"`
	Cache         cache.Stats            `json:"cache"`
	Breakers      []circuitbreaker.Stats `json:"breakers"`
}

// HealthResponse reports each dependency as "ok" or its error
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// InvalidateCachePrefix drops every cached entry under a prefix
// @Summary Invalidate cache prefix
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param prefix query string true "Key prefix, e.g. patient:phone:"
// @Success 200 {object} map[string]string
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 403 {object} httputil.ErrorResponse
// @Router /api/admin/cache [delete]
func (h *Handlers) InvalidateCachePrefix(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("prefix"))
	if prefix == "" {
		httputil.WriteError(w, r, errors.ValidationError("prefix is required"))
		return
	}

	if err := h.Cache.InvalidatePrefix(r.Context(), prefix); err != nil {
		httputil.WriteError(w, r, errors.TransientError("failed to invalidate cache", err))
		return
	}
	h.logger.WithContext(r.Context()).Info("Cache prefix invalidated", logging.String("prefix", prefix))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"invalidated": prefix})
}

// InvalidateCacheKey drops one cached entry
// @Summary Invalidate cache key
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param key path string true "Cache key"
// @Success 200 {object} map[string]string
// @Failure 403 {object} httputil.ErrorResponse
// @Router /api/admin/cache/{key} [delete]
func (h *Handlers) InvalidateCacheKey(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := h.Cache.Invalidate(r.Context(), key); err != nil {
		httputil.WriteError(w, r, errors.TransientError("failed to invalidate cache", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"invalidated": key})
}

// Status reports stream clients, cache counters and circuit breakers
// @Summary Runtime status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} StatusResponse
// @Failure 403 {object} httputil.ErrorResponse
// @Router /api/admin/status [get]
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		StreamClients: h.Events.ClientCount(),
		Cache:         h.Cache.Stats(),
		Breakers:      []circuitbreaker.Stats{},
	}
	if h.Breakers != nil {
		resp.Breakers = h.Breakers.AllStats()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HealthCheck runs every registered check
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.Health))
	for name := range h.Health {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{Status: "healthy", Checks: make(map[string]string, len(names)), Timestamp: h.now().UTC()}
	status := http.StatusOK
	for _, name := range names {
		if err := h.Health[name](ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			h.logger.Warn("Health check failed", logging.String("check", name), logging.Err(err))
			continue
		}
		resp.Checks[name] = "ok"
	}

	httputil.WriteJSON(w, status, resp)
}
