package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-console/internal/common/ratelimit"
	"clinic-console/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingChecker struct{}

func (failingChecker) Check(ctx context.Context, key string, window time.Duration, max int) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis unavailable")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewLimiter_Defaults(t *testing.T) {
	limiter := NewLimiter(ratelimit.NewFixedWindow(), nil, nil)

	assert.Equal(t, 100, limiter.config.DefaultLimit)
	assert.Equal(t, time.Minute, limiter.config.DefaultWindow)
	assert.True(t, limiter.config.Enabled)
}

func TestLimiter_CheckDisabled(t *testing.T) {
	limiter := NewLimiter(failingChecker{}, &Config{Enabled: false, DefaultLimit: 10, DefaultWindow: time.Second}, nil)

	result, err := limiter.Check(context.Background(), "k", 0, 0)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 10, result.Remaining)
}

func TestLimiter_Middleware(t *testing.T) {
	fw := ratelimit.NewFixedWindow()
	defer fw.Stop()
	m := metrics.New()
	limiter := NewLimiter(fw, &Config{Enabled: true, DefaultLimit: 100, DefaultWindow: time.Minute}, m)

	handler := limiter.Middleware(Rule{Scope: "login", Limit: 2, Window: time.Minute})(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send("10.0.0.1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	rec = send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another client has its own window
	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitRejected.WithLabelValues("login")))
}

func TestLimiter_MiddlewareFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingChecker{}, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute}, nil)
	handler := limiter.Middleware(Rule{Scope: "webhook"})(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLimiter_EmptyKeySkips(t *testing.T) {
	fw := ratelimit.NewFixedWindow()
	defer fw.Stop()
	limiter := NewLimiter(fw, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute}, nil)
	handler := limiter.Middleware(Rule{Key: func(*http.Request) string { return "" }})(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestGlobalMiddleware(t *testing.T) {
	handler := GlobalMiddleware(ratelimit.NewGlobalLimiter(1, 1), nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cti/webhook", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cti/webhook", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cti/events", nil)
	req.RemoteAddr = "192.0.2.4:999"

	assert.Equal(t, "192.0.2.4", IPBasedKey(req))
	assert.Equal(t, "GET:/api/cti/events", EndpointBasedKey(req))
}
