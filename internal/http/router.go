// Package httpapi assembles the public HTTP surface: the identify route,
// health probes and the metrics endpoint.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"identify/internal/platform/metrics"
	"identify/internal/platform/middleware"
	"identify/pkg/platform/httputil"
)

const readyTimeout = 2 * time.Second

// RouteRegistrar is implemented by domain handlers.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators NewRouter wires together.
type Dependencies struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	Handlers       []RouteRegistrar
	// RateLimit, when set, guards the domain routes.
	RateLimit func(http.Handler) http.Handler
	// Checks are run by /ready, keyed by dependency name.
	Checks map[string]HealthCheck
}

// NewRouter builds the chi router with the shared middleware chain.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	if deps.Metrics != nil {
		r.Use(middleware.Latency(deps.Metrics))
	}

	r.Get("/health", handleHealth)
	r.Get("/ready", handleReady(deps.Checks, logger))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if deps.RequestTimeout > 0 {
			r.Use(middleware.Timeout(deps.RequestTimeout))
		}
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit)
		}
		r.Use(middleware.ContentTypeJSON)
		for _, h := range deps.Handlers {
			h.Register(r)
		}
	})
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleReady runs every check concurrently and reports 503 if any fails.
func handleReady(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(names))
			g       errgroup.Group
		)
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				status := "ok"
				if err := check(ctx); err != nil {
					logger.WarnContext(ctx, "readiness check failed",
						"request_id", middleware.GetRequestID(ctx),
						"dependency", name,
						"error", err,
					)
					status = "unavailable"
				}
				mu.Lock()
				results[name] = status
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		resp := readyResponse{Status: "ok", Checks: results}
		status := http.StatusOK
		for _, v := range results {
			if v != "ok" {
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}
