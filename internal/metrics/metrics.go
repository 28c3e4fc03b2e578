package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels audit runs that completed.
	OutcomeSuccess = "success"
	// OutcomeError labels audit runs aborted by pipeline or dependency failure.
	OutcomeError = "error"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expense_audit",
			Name:      "runs_total",
			Help:      "Total number of audit runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "expense_audit",
			Name:      "run_seconds",
			Help:      "Audit run latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expense_audit",
			Name:      "findings_total",
			Help:      "Findings emitted after consolidation, partitioned by category.",
		},
		[]string{"category"},
	)

	oracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expense_audit",
			Name:      "oracle_calls_total",
			Help:      "Oracle judgement calls, partitioned by result.",
		},
		[]string{"result"},
	)
)

// Register attaches expense-audit collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		runDurationSeconds,
		findingsTotal,
		oracleCallsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records an audit run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// CountFinding increments the per-category finding counter.
func CountFinding(category string) {
	findingsTotal.WithLabelValues(category).Inc()
}

// CountOracleCall records an oracle judgement by result: "judged",
// "inconclusive" or "failed".
func CountOracleCall(result string) {
	oracleCallsTotal.WithLabelValues(result).Inc()
}
