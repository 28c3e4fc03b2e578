package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register: %v", err)
	}
}

func TestObserveHelpersMoveCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}

	before := testutil.ToFloat64(runsTotal.WithLabelValues(OutcomeSuccess))
	ObserveRun(2*time.Second, OutcomeSuccess)
	ObserveRun(time.Second, "anything-else-is-success")
	after := testutil.ToFloat64(runsTotal.WithLabelValues(OutcomeSuccess))
	if after-before != 2 {
		t.Errorf("runs_total{success} moved by %v, want 2", after-before)
	}

	beforeErr := testutil.ToFloat64(runsTotal.WithLabelValues(OutcomeError))
	ObserveRun(time.Second, OutcomeError)
	if got := testutil.ToFloat64(runsTotal.WithLabelValues(OutcomeError)) - beforeErr; got != 1 {
		t.Errorf("runs_total{error} moved by %v, want 1", got)
	}

	beforeCat := testutil.ToFloat64(findingsTotal.WithLabelValues("structuring"))
	CountFinding("structuring")
	if got := testutil.ToFloat64(findingsTotal.WithLabelValues("structuring")) - beforeCat; got != 1 {
		t.Errorf("findings_total{structuring} moved by %v, want 1", got)
	}

	beforeCall := testutil.ToFloat64(oracleCallsTotal.WithLabelValues("inconclusive"))
	CountOracleCall("inconclusive")
	if got := testutil.ToFloat64(oracleCallsTotal.WithLabelValues("inconclusive")) - beforeCall; got != 1 {
		t.Errorf("oracle_calls_total{inconclusive} moved by %v, want 1", got)
	}
}
