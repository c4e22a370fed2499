// Package handlers implements the HTTP API: authentication, CTI ingestion and
// streaming, cache administration and health.
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic-console/internal/auth"
	"clinic-console/internal/circuitbreaker"
	"clinic-console/internal/common/cache"
	"clinic-console/internal/common/logging"
	"clinic-console/internal/events"
	"clinic-console/internal/metrics"
	"clinic-console/internal/ratelimit"
	"clinic-console/internal/storage"
)

// Relay shares accepted events with other instances
type Relay interface {
	Publish(ctx context.Context, event events.CTIEvent) error
}

// Exporter forwards accepted events to an external broker; failures are its own concern
type Exporter interface {
	ExportEvent(ctx context.Context, event events.CTIEvent)
}

// HealthFunc reports one dependency
type HealthFunc func(ctx context.Context) error

type Config struct {
	CookieSecure bool

	LoginRateLimit  int
	LoginRateWindow time.Duration

	WebhookSecret string
	SSEHeartbeat  time.Duration
	PatientTTL    time.Duration
}

// Deps are the collaborators the handlers use. Relay, Exporter and Breakers may be nil.
type Deps struct {
	Auth     *auth.Service
	Limiter  *ratelimit.Limiter
	Events   *events.Store
	Cache    cache.Cache
	Storage  storage.Storage
	Relay    Relay
	Exporter Exporter
	Breakers *circuitbreaker.Manager
	Metrics  *metrics.Metrics
	Health   map[string]HealthFunc
}

type Handlers struct {
	Deps
	config Config
	logger logging.Logger
	now    func() time.Time
	newID  func() string

	// background tracks best-effort work started by requests
	background sync.WaitGroup
}

func New(deps Deps, config Config) *Handlers {
	if config.SSEHeartbeat <= 0 {
		config.SSEHeartbeat = events.DefaultHeartbeat
	}
	if config.PatientTTL <= 0 {
		config.PatientTTL = 5 * time.Minute
	}
	return &Handlers{
		Deps:   deps,
		config: config,
		logger: logging.Component("handlers"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Wait blocks until background exports started by requests have finished
func (h *Handlers) Wait() {
	h.background.Wait()
}
