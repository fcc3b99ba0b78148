package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts rate limit decisions and limiter health.
type Metrics struct {
	Rejections    *prometheus.CounterVec
	LimiterErrors prometheus.Counter
	DegradedState prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identify_ratelimit_rejections_total",
			Help: "Total requests rejected with 429, by route",
		}, []string{"route"}),
		LimiterErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "identify_ratelimit_limiter_errors_total",
			Help: "Total errors from the primary rate limit store",
		}),
		DegradedState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "identify_ratelimit_degraded",
			Help: "1 while the in-memory fallback limiter is in use",
		}),
	}
}

func (m *Metrics) IncrementRejections(route string) {
	m.Rejections.WithLabelValues(route).Inc()
}

func (m *Metrics) IncrementLimiterErrors() {
	m.LimiterErrors.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.DegradedState.Set(1)
		return
	}
	m.DegradedState.Set(0)
}
