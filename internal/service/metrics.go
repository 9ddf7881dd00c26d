package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the condition engine.
type Metrics struct {
	// RecomputesTotal counts status recomputations.
	RecomputesTotal prometheus.Counter

	// StateChangesTotal counts observed state transitions by new state.
	StateChangesTotal *prometheus.CounterVec

	// MutationsTotal counts mutation calls by operation and outcome.
	MutationsTotal *prometheus.CounterVec

	// StoreFailuresTotal counts failed persistence calls.
	StoreFailuresTotal prometheus.Counter

	// ConditionsCached is the number of cached condition definitions.
	ConditionsCached prometheus.Gauge

	// ComputeDuration is the time to recompute all cached statuses.
	ComputeDuration prometheus.Histogram
}

// NewMetrics creates and registers Prometheus metrics for the engine.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RecomputesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recomputes_total",
				Help:      "Total number of status recomputations",
			},
		),

		StateChangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_changes_total",
				Help:      "Total number of state transitions by new state",
			},
			[]string{"state"},
		),

		MutationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mutations_total",
				Help:      "Total number of mutation calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),

		StoreFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_failures_total",
				Help:      "Total number of failed persistence calls",
			},
		),

		ConditionsCached: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "conditions_cached",
				Help:      "Number of cached condition definitions",
			},
		),

		ComputeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compute_duration_seconds",
				Help:      "Time to recompute all cached statuses",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
		),
	}
}

// IncRecompute increments the recompute counter.
func (m *Metrics) IncRecompute() {
	if m == nil {
		return
	}
	m.RecomputesTotal.Inc()
}

// IncStateChange increments the state change counter for a state.
func (m *Metrics) IncStateChange(state string) {
	if m == nil {
		return
	}
	m.StateChangesTotal.WithLabelValues(state).Inc()
}

// IncMutation increments the mutation counter.
func (m *Metrics) IncMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(op, outcome).Inc()
}

// IncStoreFailure increments the store failure counter.
func (m *Metrics) IncStoreFailure() {
	if m == nil {
		return
	}
	m.StoreFailuresTotal.Inc()
}

// SetConditionsCached sets the cached condition gauge.
func (m *Metrics) SetConditionsCached(n int) {
	if m == nil {
		return
	}
	m.ConditionsCached.Set(float64(n))
}

// ObserveComputeDuration records one full recompute pass.
func (m *Metrics) ObserveComputeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.ComputeDuration.Observe(seconds)
}
