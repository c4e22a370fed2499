package app

import (
	"context"
	"sync"

	"clinic-console/internal/auth"
	"clinic-console/internal/brokers/export"
	"clinic-console/internal/circuitbreaker"
	"clinic-console/internal/common/cache"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/common/ratelimit"
	"clinic-console/internal/config"
	"clinic-console/internal/events"
	"clinic-console/internal/jobs"
	"clinic-console/internal/metrics"
	httpratelimit "clinic-console/internal/ratelimit"
	"clinic-console/internal/redis"
	"clinic-console/internal/storage"
)

// App holds all the application dependencies
type App struct {
	Config        *config.Config
	Storage       storage.Storage
	RedisClient   *redis.Client
	Metrics       *metrics.Metrics
	Breakers      *circuitbreaker.Manager
	Cache         cache.Cache
	Auth          *auth.Service
	Limiter       *httpratelimit.Limiter
	GlobalLimiter *ratelimit.GlobalLimiter
	Events        *events.Store
	Relay         *events.RedisRelay
	Exporter      *export.Exporter
	Purger        *jobs.Scheduler
	Logger        logging.Logger

	// stop cancels background workers (relay subscriber, window sweeper)
	stop    context.CancelFunc
	workers sync.WaitGroup
	closers []func()
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:   cfg,
		Metrics:  metrics.New(),
		Breakers: circuitbreaker.NewManager(nil),
		Logger:   logging.Component("app"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	app.stop = cancel

	// Initialize components in order of dependency
	if err := app.initializeStorage(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeCache(); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeAuth(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	app.initializeRateLimiting()

	if err := app.initializeEvents(ctx); err != nil {
		app.Cleanup()
		return nil, err
	}

	if err := app.initializeJobs(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

func (app *App) onClose(fn func()) {
	app.closers = append(app.closers, fn)
}

// Cleanup stops background workers and releases resources in reverse order of creation
func (app *App) Cleanup() {
	if app.stop != nil {
		app.stop()
	}
	app.workers.Wait()

	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
}
