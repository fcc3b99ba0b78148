package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identify/internal/contact"
	"identify/internal/contact/store"
	"identify/internal/platform/metrics"
	"identify/internal/platform/middleware"
	ratelimit "identify/internal/ratelimit/middleware"
	"identify/internal/ratelimit/models"
	"identify/internal/ratelimit/store/bucket"
	"identify/pkg/testutil"
)

func newTestRouter(t *testing.T, checks map[string]HealthCheck) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	svc := contact.NewService(store.NewInMemoryStore())
	return NewRouter(Dependencies{
		Logger:   logger,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Handlers: []RouteRegistrar{contact.NewHandler(svc, logger)},
		Checks:   checks,
	})
}

func TestIdentifyRoute(t *testing.T) {
	router := newTestRouter(t, nil)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/identify", `{"email":"a@x.com","phoneNumber":123}`)
	req.Header.Set(middleware.HeaderRequestID, "req-1")
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.Equal(t, "req-1", rr.Header().Get(middleware.HeaderRequestID))
	assert.JSONEq(t,
		`{"contact":{"primaryContactId":1,"emails":["a@x.com"],"phoneNumbers":["123"],"secondaryContactIds":[]}}`,
		rr.Body.String())

	t.Run("wrong method", func(t *testing.T) {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/identify", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})

	t.Run("non-json content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/identify", strings.NewReader("email=a@x.com"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := testutil.DoRequest(router, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	})
}

func TestHealthAndReady(t *testing.T) {
	t.Run("health", func(t *testing.T) {
		rr := testutil.DoRequest(newTestRouter(t, nil), httptest.NewRequest(http.MethodGet, "/health", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("ready with healthy dependencies", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return nil },
		})
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[readyResponse](t, rr)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, resp.Checks)
	})

	t.Run("ready reports a failing dependency", func(t *testing.T) {
		router := newTestRouter(t, map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"kafka":    func(context.Context) error { return errors.New("no brokers") },
		})
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/ready", nil))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		resp := testutil.UnmarshalResponse[readyResponse](t, rr)
		assert.Equal(t, "unavailable", resp.Status)
		assert.Equal(t, "unavailable", resp.Checks["kafka"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)
	testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "identify_http_request_duration_seconds")
}

func TestRateLimitGuardsDomainRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(bucket.NewInMemoryBucketStore(), models.Limit{RequestsPerWindow: 1, Window: time.Minute}, logger)
	router := NewRouter(Dependencies{
		Logger:    logger,
		Handlers:  []RouteRegistrar{contact.NewHandler(contact.NewService(store.NewInMemoryStore()), logger)},
		RateLimit: limiter.RateLimit,
	})

	identify := func() int {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/identify", `{"email":"a@x.com"}`)
		return testutil.DoRequest(router, req).Code
	}
	assert.Equal(t, http.StatusOK, identify())
	assert.Equal(t, http.StatusTooManyRequests, identify())

	for range 3 {
		rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rr.Code, "probes are not limited")
	}
}
