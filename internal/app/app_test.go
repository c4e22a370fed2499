package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-console/internal/config"
	"clinic-console/internal/handlers"
	"clinic-console/internal/middleware"
)

const (
	adminUser     = "admin"
	adminPassword = "admin-password"
	hookSecret    = "cti-secret"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:             "8080",
		InstanceID:       "test",
		DatabaseType:     "sqlite",
		DatabasePath:     ":memory:",
		RedisDB:          "0",
		RedisPoolSize:    "10",
		JWTSecret:        strings.Repeat("s", 32),
		RefreshTokenTTL:  7 * 24 * time.Hour,
		TokenStore:       "sql",
		AdminUsername:    adminUser,
		AdminPassword:    adminPassword,
		AdminClinicID:    "c1",
		CacheBackend:     "memory",
		CacheMaxEntries:  100,
		CacheDefaultTTL:  time.Minute,
		RateLimitEnabled: true,
		RateLimitDefault: 100,
		RateLimitWindow:  time.Minute,
		LoginRateLimit:   10,
		LoginRateWindow:  time.Minute,
		CTIWebhookSecret: hookSecret,
		CTIWebhookRPS:    0,
		SSEHeartbeat:     30 * time.Second,
		PurgeSchedule:    "@every 1h",
		Export:           config.ExportConfig{Broker: "none"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *handlers.Handlers, http.Handler) {
	t.Helper()
	require.NoError(t, cfg.Validate())

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)

	_, h, router := app.RunServer()
	t.Cleanup(h.Wait)
	return app, h, router
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router http.Handler) string {
	t.Helper()
	body := `{"username":"` + adminUser + `","password":"` + adminPassword + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handlers.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func postWebhook(router http.Handler, caller string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/cti/webhook",
		strings.NewReader(`{"eventType":"INCOMING_CALL","callerNumber":"`+caller+`"}`))
	req.Header.Set(handlers.WebhookSecretHeader, hookSecret)
	return serve(router, req)
}

func TestApp_LocalBackends(t *testing.T) {
	app, _, router := newTestApp(t, testConfig())
	assert.Nil(t, app.RedisClient)
	assert.Nil(t, app.Relay)

	rec := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	token := login(t, router)

	rec = postWebhook(router, "010-1234-5678")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, app.Events.GetRecentEvents(10), 1)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = serve(router, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "login_attempts")

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinic_console_http_requests_total{method="POST",route="/api/cti/webhook",status="200"} 1`)

	rec = serve(router, httptest.NewRequest(http.MethodGet, "/api/cti/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApp_WebhookRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitDefault = 2
	_, _, router := newTestApp(t, cfg)

	assert.Equal(t, http.StatusOK, postWebhook(router, "01011112222").Code)
	assert.Equal(t, http.StatusOK, postWebhook(router, "01011112222").Code)

	rec := postWebhook(router, "01011112222")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
}

func TestApp_GlobalWebhookCap(t *testing.T) {
	cfg := testConfig()
	cfg.CTIWebhookRPS = 1
	_, _, router := newTestApp(t, cfg)

	assert.Equal(t, http.StatusOK, postWebhook(router, "01011112222").Code)
	assert.Equal(t, http.StatusTooManyRequests, postWebhook(router, "01011112222").Code)
}

func TestApp_RedisBackendsShareEvents(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	redisConfig := func(instance string) *config.Config {
		cfg := testConfig()
		cfg.InstanceID = instance
		cfg.RedisAddress = mr.Addr()
		cfg.TokenStore = "redis"
		cfg.CacheBackend = "redis"
		return cfg
	}

	first, _, firstRouter := newTestApp(t, redisConfig("first"))
	second, _, secondRouter := newTestApp(t, redisConfig("second"))
	require.NotNil(t, first.Relay)
	require.NotNil(t, second.Relay)

	rec := postWebhook(firstRouter, "01099998888")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Eventually(t, func() bool {
		return len(second.Events.GetRecentEvents(10)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, first.Events.GetRecentEvents(10), 1, "own events are not re-added")

	// refresh tokens live in Redis
	login(t, secondRouter)
	assert.NotEmpty(t, mr.Keys())

	rec = serve(secondRouter, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)
}
