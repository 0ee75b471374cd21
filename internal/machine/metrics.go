package machine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the machine's Prometheus collectors.
type Metrics struct {
	resolutions        *prometheus.CounterVec
	resolutionSeconds  *prometheus.HistogramVec
	goalsResolved      *prometheus.HistogramVec
	predicateFailures  *prometheus.CounterVec
	unresolvedStrategy *prometheus.CounterVec
}

// NewMetrics creates collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "resolutions_total",
			Help:      "Goal resolutions by machine and event.",
		}, []string{"machine", "event"}),
		resolutionSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdm",
			Name:      "resolution_duration_seconds",
			Help:      "Time to resolve goals and strategies for a push.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"machine", "event"}),
		goalsResolved: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdm",
			Name:      "goals_per_resolution",
			Help:      "Number of goals in each resolved goal set.",
			Buckets:   prometheus.LinearBuckets(0, 2, 8),
		}, []string{"machine", "event"}),
		predicateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "predicate_failures_total",
			Help:      "Predicate checks that could not complete and were treated as non-matching.",
		}, []string{"machine", "predicate"}),
		unresolvedStrategy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "unresolved_strategies_total",
			Help:      "Goal kinds with no matching and no default strategy.",
		}, []string{"machine", "kind"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.resolutions,
			m.resolutionSeconds,
			m.goalsResolved,
			m.predicateFailures,
			m.unresolvedStrategy,
		)
	}
	return m
}
