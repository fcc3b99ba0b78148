package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for identity consolidation.
// Tracks which write path each request took, merge volume and event delivery.
type Metrics struct {
	Consolidations       *prometheus.CounterVec
	ConsolidateDuration  prometheus.Histogram
	ContactsMerged       prometheus.Counter
	EventPublishFailures prometheus.Counter
}

// New registers the consolidation metrics on reg. A nil reg uses the
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Consolidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "identify_consolidations_total",
			Help: "Total consolidations by outcome (created_primary, created_secondary, merged, unchanged)",
		}, []string{"outcome"}),
		ConsolidateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "identify_consolidate_duration_seconds",
			Help:    "Duration of Consolidate including lock wait and transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		ContactsMerged: factory.NewCounter(prometheus.CounterOpts{
			Name: "identify_contacts_merged_total",
			Help: "Total contact rows relinked under a surviving primary",
		}),
		EventPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "identify_event_publish_failures_total",
			Help: "Total domain events that could not be published",
		}),
	}
}

// IncrementConsolidation records one completed consolidation.
func (m *Metrics) IncrementConsolidation(outcome string) {
	m.Consolidations.WithLabelValues(outcome).Inc()
}

// ObserveConsolidate records the duration of a Consolidate call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveConsolidate(start time.Time) {
	m.ConsolidateDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddContactsMerged(n int64) {
	if n > 0 {
		m.ContactsMerged.Add(float64(n))
	}
}

func (m *Metrics) IncrementEventPublishFailure() {
	m.EventPublishFailures.Inc()
}
