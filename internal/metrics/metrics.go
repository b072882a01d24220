// Package metrics holds the Prometheus instruments of the aggregation layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Source fetches, labelled by source (historical, live) and outcome
	// (success, failure).
	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyticshub_source_fetches_total",
			Help: "Total number of raw source fetches",
		},
		[]string{"source", "family", "outcome"},
	)

	LiveRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyticshub_live_retries_total",
			Help: "Total number of retried live provider calls",
		},
		[]string{"family"},
	)

	LiveRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analyticshub_live_request_duration_seconds",
			Help:    "Live provider request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"family", "outcome"},
	)

	StrategyDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyticshub_strategy_decisions_total",
			Help: "Total number of routing decisions by label",
		},
		[]string{"label"},
	)

	ValidationIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyticshub_validation_issues_total",
			Help: "Total number of validation issues reported",
		},
		[]string{"family"},
	)

	DroppedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyticshub_dropped_records_total",
			Help: "Total number of records dropped for a missing identifying field",
		},
		[]string{"family"},
	)

	// Circuit breaker state: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analyticshub_circuit_breaker_state",
			Help: "Current circuit breaker state",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyticshub_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordFetch counts one raw fetch against a source.
func RecordFetch(source, family string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	SourceFetches.WithLabelValues(source, family, outcome).Inc()
}

// RecordLiveRequest observes the latency of one live provider request.
func RecordLiveRequest(family string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	LiveRequestDuration.WithLabelValues(family, outcome).Observe(duration.Seconds())
}

// RecordRetry counts one retried live call.
func RecordRetry(family string) {
	LiveRetries.WithLabelValues(family).Inc()
}

// RecordDecision counts one routing decision.
func RecordDecision(label string) {
	StrategyDecisions.WithLabelValues(label).Inc()
}

// RecordValidation counts issues and dropped records for one validation pass.
func RecordValidation(family string, issues, dropped int) {
	if issues > 0 {
		ValidationIssues.WithLabelValues(family).Add(float64(issues))
	}
	if dropped > 0 {
		DroppedRecords.WithLabelValues(family).Add(float64(dropped))
	}
}
