package app

import (
	"clinic-console/internal/common/logging"
	"clinic-console/internal/common/ratelimit"
	httpratelimit "clinic-console/internal/ratelimit"
)

// initializeRateLimiting keys windows in Redis when available so every instance
// shares them; otherwise windows are process-local
func (app *App) initializeRateLimiting() {
	var checker ratelimit.Checker
	backend := "local"
	if app.RedisClient != nil {
		checker = ratelimit.NewRedisWindow(app.RedisClient, "ratelimit:")
		backend = "redis"
	} else {
		window := ratelimit.NewFixedWindow()
		app.onClose(window.Stop)
		checker = window
	}

	app.Limiter = httpratelimit.NewLimiter(checker, &httpratelimit.Config{
		DefaultLimit:  app.Config.RateLimitDefault,
		DefaultWindow: app.Config.RateLimitWindow,
		Enabled:       app.Config.RateLimitEnabled,
	}, app.Metrics)

	// burst of one second's worth of requests
	app.GlobalLimiter = ratelimit.NewGlobalLimiter(app.Config.CTIWebhookRPS, 0)

	if !app.Config.RateLimitEnabled {
		app.Logger.Info("Rate Limiting: Disabled")
		return
	}
	app.Logger.Info("Rate Limiting: Enabled",
		logging.String("backend", backend),
		logging.Int("limit", app.Config.RateLimitDefault),
		logging.Duration("window", app.Config.RateLimitWindow),
		logging.Int("login_limit", app.Config.LoginRateLimit),
	)
}
