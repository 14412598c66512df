// Package monitoring exposes Prometheus metrics for reconciliation runs and
// experiment comparisons.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileOutcomes counts bulk-update outcome rows.
	// Labels:
	//   - status: "invalid", "not_found", "will_update", "updated", "skipped"
	ReconcileOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypolab_reconcile_outcomes_total",
			Help: "Total number of bulk-update outcome rows by status",
		},
		[]string{"status"},
	)

	// ReconcileApplyDuration measures the transactional apply phase.
	ReconcileApplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hypolab_reconcile_apply_duration_seconds",
			Help:    "Duration of the reconciliation apply transaction in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// ReconcileApplyFailures counts apply transactions that rolled back.
	ReconcileApplyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hypolab_reconcile_apply_failures_total",
			Help: "Total number of reconciliation apply phases rolled back",
		},
	)

	// Comparisons counts experiment comparisons.
	// Labels:
	//   - metric: primary metric compared
	//   - decision: "A", "B", "Inconclusive"
	Comparisons = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypolab_comparisons_total",
			Help: "Total number of experiment comparisons by metric and decision",
		},
		[]string{"metric", "decision"},
	)
)

// RecordOutcome increments the outcome counter for one status.
func RecordOutcome(status string) {
	ReconcileOutcomes.WithLabelValues(status).Inc()
}

// RecordApply observes an apply phase duration and counts failures.
func RecordApply(elapsed time.Duration, err error) {
	ReconcileApplyDuration.Observe(elapsed.Seconds())
	if err != nil {
		ReconcileApplyFailures.Inc()
	}
}

// RecordComparison increments the comparison counter.
func RecordComparison(metric, decision string) {
	Comparisons.WithLabelValues(metric, decision).Inc()
}
