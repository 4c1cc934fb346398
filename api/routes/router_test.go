package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/nateruiz/saasbase-backend/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
	}
}

func TestNewRouter_HealthLive(t *testing.T) {
	router := NewRouter(RouterParams{Config: testConfig()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Saasbase-Env"))
}

func TestNewRouter_HealthReadyWithoutDependencies(t *testing.T) {
	router := NewRouter(RouterParams{Config: testConfig()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	router := NewRouter(RouterParams{Config: testConfig(), MetricsRegistry: registry})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRouter_WebhookRouteRegistered(t *testing.T) {
	router := NewRouter(RouterParams{Config: testConfig()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil))

	// the route exists; without a signing secret it rejects, not 404
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewRouter_BillingCustomerRequiresIdentity(t *testing.T) {
	router := NewRouter(RouterParams{Config: testConfig()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/billing/customer", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
