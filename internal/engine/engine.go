// Package engine wires the rule checker, correlator and consolidator
// into a single audit run over a loaded corpus.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rmachado/expense-audit/internal/config"
	"github.com/rmachado/expense-audit/internal/consolidate"
	"github.com/rmachado/expense-audit/internal/correlate"
	"github.com/rmachado/expense-audit/internal/domain"
	"github.com/rmachado/expense-audit/internal/metrics"
	"github.com/rmachado/expense-audit/internal/oracle"
	"github.com/rmachado/expense-audit/internal/rules"
)

// Summary describes one completed audit run.
type Summary struct {
	RunID               string
	Findings            []domain.Finding
	SkippedTransactions int
	SkippedMessages     int
	BundlesBuilt        int
	BundlesJudged       int
	BundlesInconclusive int
	Duration            time.Duration
}

// Engine executes audit runs. A nil judger disables the oracle stage:
// rule checks still run, cross-source bundles are recorded
// inconclusive.
type Engine struct {
	cfg    *config.Config
	judger oracle.Judger
	log    zerolog.Logger
}

func New(cfg *config.Config, judger oracle.Judger, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, judger: judger, log: log}
}

// Run audits the corpus: transaction-only rule checks plus
// cross-source correlation, pooled and consolidated into the final
// ordered finding list. Partial results are discarded on cancellation.
func (e *Engine) Run(ctx context.Context, corpus *domain.Corpus) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := e.log.With().Str("run_id", runID).Logger()

	log.Info().
		Int("transactions", len(corpus.Transactions)).
		Int("messages", len(corpus.Messages)).
		Msg("starting audit run")

	checker := rules.NewChecker(e.cfg.Rules, log)
	ruleFindings, skippedTxs := checker.Evaluate(corpus.Transactions)

	correlator := correlate.New(e.cfg.Correlation, e.cfg.Oracle, e.judger, log)
	corrRes, err := correlator.Correlate(ctx, corpus)
	if err != nil {
		metrics.ObserveRun(time.Since(start), metrics.OutcomeError)
		return nil, err
	}

	pooled := append(ruleFindings, corrRes.Findings...)
	consolidator := consolidate.New(e.cfg.Consolidation, corpus, log)
	final := consolidator.Consolidate(pooled)

	for _, f := range final {
		metrics.CountFinding(string(f.Category))
	}
	for i := 0; i < corrRes.BundlesJudged; i++ {
		metrics.CountOracleCall("judged")
	}
	for i := 0; i < corrRes.BundlesInconclusive; i++ {
		metrics.CountOracleCall("inconclusive")
	}

	summary := &Summary{
		RunID:               runID,
		Findings:            final,
		SkippedTransactions: skippedTxs,
		SkippedMessages:     corrRes.SkippedMessages,
		BundlesBuilt:        corrRes.BundlesBuilt,
		BundlesJudged:       corrRes.BundlesJudged,
		BundlesInconclusive: corrRes.BundlesInconclusive,
		Duration:            time.Since(start),
	}

	metrics.ObserveRun(summary.Duration, metrics.OutcomeSuccess)
	log.Info().
		Int("findings", len(final)).
		Int("bundles_built", summary.BundlesBuilt).
		Int("bundles_inconclusive", summary.BundlesInconclusive).
		Dur("duration", summary.Duration).
		Msg("audit run complete")

	return summary, nil
}
