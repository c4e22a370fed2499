package app

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"clinic-console/internal/common/logging"
	"clinic-console/internal/handlers"
	httpratelimit "clinic-console/internal/ratelimit"
	"clinic-console/internal/server"
)

// RunServer builds the handlers and router and returns the unstarted server
func (app *App) RunServer() (*server.Server, *handlers.Handlers, http.Handler) {
	health := map[string]handlers.HealthFunc{
		"database": app.Storage.Health,
	}
	if app.RedisClient != nil {
		health["redis"] = func(context.Context) error { return app.RedisClient.Health() }
	}
	if app.Exporter != nil {
		health["export"] = app.Exporter.Health
	}

	deps := handlers.Deps{
		Auth:     app.Auth,
		Limiter:  app.Limiter,
		Events:   app.Events,
		Cache:    app.Cache,
		Storage:  app.Storage,
		Breakers: app.Breakers,
		Metrics:  app.Metrics,
		Health:   health,
	}
	// typed nils must not reach the interfaces
	if app.Relay != nil {
		deps.Relay = app.Relay
	}
	if app.Exporter != nil {
		deps.Exporter = app.Exporter
	}

	h := handlers.New(deps, handlers.Config{
		CookieSecure:    app.Config.CookieSecure,
		LoginRateLimit:  app.Config.LoginRateLimit,
		LoginRateWindow: app.Config.LoginRateWindow,
		WebhookSecret:   app.Config.CTIWebhookSecret,
		SSEHeartbeat:    app.Config.SSEHeartbeat,
		PatientTTL:      app.Config.CacheDefaultTTL,
	})

	router := mux.NewRouter()
	SetupRoutes(router, RouteDeps{
		Handlers:      h,
		Tokens:        app.Auth.Tokens(),
		Limiter:       app.Limiter,
		GlobalLimiter: app.GlobalLimiter,
		Metrics:       app.Metrics,
		WebhookRule:   httpratelimit.Rule{Scope: "cti", Key: httpratelimit.IPBasedKey},
		APIRule:       httpratelimit.Rule{Scope: "api", Key: userKey},
	})

	return server.New(router, app.Config.Port, "", ""), h, router
}

// Shutdown stops accepting events and waits for in-flight exports
func (app *App) Shutdown(ctx context.Context, h *handlers.Handlers) error {
	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.Logger.Info("Pending exports finished")
		return nil
	case <-ctx.Done():
		app.Logger.Warn("Gave up waiting for pending exports", logging.Err(ctx.Err()))
		return ctx.Err()
	}
}
