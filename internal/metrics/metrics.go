// Package metrics exposes the service's Prometheus collectors.
//
// Every recording method is safe on a nil *Metrics so components can run without metrics in tests.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinic_console"

// Metrics holds the collectors registered for one process
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	EventsBroadcast   prometheus.Counter
	SSEClients        prometheus.Gauge
	SSEClientsDropped prometheus.Counter

	RateLimitRejected *prometheus.CounterVec
	RetryAttempts     *prometheus.CounterVec
	TokenRefreshes    *prometheus.CounterVec
	ExportFailures    *prometheus.CounterVec
}

// New creates the collectors on a private registry, plus Go runtime and process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		EventsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "broadcast_total",
			Help:      "Total number of CTI events fanned out to stream clients",
		}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sse_clients",
			Help:      "Number of connected event stream clients",
		}),
		SSEClientsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sse_clients_dropped_total",
			Help:      "Total number of stream clients removed after a failed delivery",
		}),
		RateLimitRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "rejected_total",
				Help:      "Total number of requests rejected by a rate limiter",
			},
			[]string{"scope"},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Total number of retried attempts by operation",
			},
			[]string{"operation"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "token_refreshes_total",
				Help:      "Total number of refresh token exchanges by outcome",
			},
			[]string{"outcome"},
		),
		ExportFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "export",
				Name:      "failures_total",
				Help:      "Total number of events the export broker failed to publish",
			},
			[]string{"broker"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCount,
		m.RequestDuration,
		m.EventsBroadcast,
		m.SSEClients,
		m.SSEClientsDropped,
		m.RateLimitRejected,
		m.RetryAttempts,
		m.TokenRefreshes,
		m.ExportFailures,
	)

	return m
}

// Registry returns the registry collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterCacheStats exposes cache hit and miss counters read from stats on scrape
func (m *Metrics) RegisterCacheStats(stats func() (hits, misses uint64)) error {
	hits := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total number of cache hits",
	}, func() float64 {
		h, _ := stats()
		return float64(h)
	})
	misses := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total number of cache misses",
	}, func() float64 {
		_, miss := stats()
		return float64(miss)
	})

	for _, c := range []prometheus.Collector{hits, misses} {
		if err := m.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register cache metrics: %w", err)
		}
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// EventBroadcast counts one event fanned out
func (m *Metrics) EventBroadcast() {
	if m == nil {
		return
	}
	m.EventsBroadcast.Inc()
}

// ClientConnected tracks a stream client joining
func (m *Metrics) ClientConnected() {
	if m == nil {
		return
	}
	m.SSEClients.Inc()
}

// ClientDisconnected tracks a stream client leaving; dropped marks removal after a failed delivery
func (m *Metrics) ClientDisconnected(dropped bool) {
	if m == nil {
		return
	}
	m.SSEClients.Dec()
	if dropped {
		m.SSEClientsDropped.Inc()
	}
}

// RateLimited counts a rejection for scope (login, webhook, global)
func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimitRejected.WithLabelValues(scope).Inc()
}

// Retried counts one retry of operation
func (m *Metrics) Retried(operation string) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

// TokenRefreshed counts a refresh exchange with outcome success or failure
func (m *Metrics) TokenRefreshed(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

// ExportFailed counts an event the export broker could not publish
func (m *Metrics) ExportFailed(broker string) {
	if m == nil {
		return
	}
	m.ExportFailures.WithLabelValues(broker).Inc()
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
