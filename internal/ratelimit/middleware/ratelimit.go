// Package middleware enforces per-client-IP request limits on HTTP routes.
package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"identify/internal/ratelimit/metrics"
	"identify/internal/ratelimit/models"
	"identify/pkg/platform/circuit"
	"identify/pkg/platform/httputil"
	"identify/pkg/requestcontext"
)

// HeaderRateLimitStatus is set to "degraded" while the fallback limiter is used.
const HeaderRateLimitStatus = "X-RateLimit-Status"

// BucketStore admits or rejects one request for key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	limiter  BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limit    models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the limiter used while the primary store is failing.
func WithFallback(fallback BucketStore) Option {
	return func(m *Middleware) {
		m.fallback = fallback
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.breaker = b
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(limiter BucketStore, limit models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		limit:   limit,
		logger:  logger,
		breaker: circuit.New("ratelimit"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limit.RequestsPerWindow <= 0 || m.limit.Window <= 0 {
		m.disabled = true
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP and route pattern. Limiter errors
// fail open when no fallback is configured.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := clientIP(r)
		route := routePattern(r)

		result, degraded, err := m.check(ctx, models.NewIPKey(ip, route))
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check IP rate limit",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		if degraded {
			w.Header().Set(HeaderRateLimitStatus, "degraded")
		}
		addRateLimitHeaders(w, result)

		if !result.Allowed {
			if m.metrics != nil {
				m.metrics.IncrementRejections(route)
			}
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"route", route,
			)
			writeRateLimitExceeded(w, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// check consults the primary store and switches to the fallback while the
// breaker is open. The primary is still tried on every request so the
// breaker can close again.
func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	result, err := m.limiter.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window)
	if err == nil {
		if usePrimary, change := m.breaker.RecordSuccess(); change.Closed {
			m.logger.InfoContext(ctx, "rate limiter recovered", "breaker", m.breaker.Name())
			m.setDegraded(false)
		} else if !usePrimary && m.fallback != nil {
			return m.checkFallback(ctx, key)
		}
		return result, false, nil
	}

	if m.metrics != nil {
		m.metrics.IncrementLimiterErrors()
	}
	useFallback, change := m.breaker.RecordFailure()
	if change.Opened {
		m.logger.WarnContext(ctx, "rate limiter degraded", "breaker", m.breaker.Name(), "error", err)
		m.setDegraded(true)
	}
	if useFallback && m.fallback != nil {
		return m.checkFallback(ctx, key)
	}
	return nil, false, err
}

func (m *Middleware) checkFallback(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	result, err := m.fallback.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window)
	return result, true, err
}

func (m *Middleware) setDegraded(degraded bool) {
	if m.metrics != nil {
		m.metrics.SetDegraded(degraded)
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// clientIP prefers X-Forwarded-For, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
