// Package correlate joins messages to transactions by participant and
// temporal proximity, then queues the resulting evidence bundles for
// semantic judgement. Keyword prefiltering is deliberately loose
// (plain substring matching): it decides only what is worth judging,
// never what is a violation.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/rmachado/expense-audit/internal/config"
	"github.com/rmachado/expense-audit/internal/domain"
	"github.com/rmachado/expense-audit/internal/jobs"
	"github.com/rmachado/expense-audit/internal/jobs/inmemory"
	"github.com/rmachado/expense-audit/internal/oracle"
)

// strategyCategories maps the built-in strategies to their violation
// categories. A strategy configured under any other name emits its own
// name as the category.
var strategyCategories = map[string]domain.Category{
	"coordination":         domain.CategoryCoordinatedFraud,
	"false_justification":  domain.CategoryFalseJustification,
	"concealment":          domain.CategoryConcealment,
	"personal_use":         domain.CategoryPersonalUse,
	"conflict_of_interest": domain.CategoryConflictOfInterest,
}

// Result carries the pooled findings of one correlation pass plus its
// failure summary. Per-bundle failures are isolated: one bundle's
// oracle trouble never stops the rest.
type Result struct {
	Findings            []domain.Finding
	SkippedMessages     int // malformed, excluded before filtering
	BundlesBuilt        int
	BundlesJudged       int // verdicts received, positive or negative
	BundlesInconclusive int // oracle failed, invalid, or disabled
}

// Correlator runs the configured strategies over the corpus.
type Correlator struct {
	cfg       config.CorrelationConfig
	oracleCfg config.OracleConfig
	judger    oracle.Judger // nil disables judgement; bundles become inconclusive
	log       zerolog.Logger
}

// New builds a Correlator. judger may be nil to run without the
// external oracle (all bundles are then recorded inconclusive).
func New(cfg config.CorrelationConfig, oracleCfg config.OracleConfig, judger oracle.Judger, log zerolog.Logger) *Correlator {
	return &Correlator{cfg: cfg, oracleCfg: oracleCfg, judger: judger, log: log}
}

// Correlate builds evidence bundles for every strategy and judges them
// through a bounded queue. It returns partial results with ctx.Err()
// if the run is cancelled; cancellation takes effect between bundles,
// not mid-oracle-call.
func (c *Correlator) Correlate(ctx context.Context, corpus *domain.Corpus) (Result, error) {
	var res Result

	messages := make([]domain.Message, 0, len(corpus.Messages))
	for _, m := range corpus.Messages {
		if err := m.Validate(); err != nil {
			c.log.Warn().Err(err).Str("message_id", m.ID).Msg("skipping malformed message")
			res.SkippedMessages++
			continue
		}
		messages = append(messages, m)
	}

	type pendingBundle struct {
		strategy string
		bundle   domain.EvidenceBundle
	}
	var pending []pendingBundle

	for _, strategy := range c.strategyNames() {
		keywords := c.cfg.Strategies[strategy]
		candidates := filterByKeywords(messages, keywords, c.cfg.MaxCandidates)
		for _, msg := range candidates {
			bundle := domain.EvidenceBundle{
				Message:      msg,
				Transactions: c.joinTransactions(msg, corpus.Transactions),
			}
			pending = append(pending, pendingBundle{strategy: strategy, bundle: bundle})
		}
	}
	res.BundlesBuilt = len(pending)

	if len(pending) == 0 {
		return res, nil
	}
	if c.judger == nil {
		res.BundlesInconclusive = len(pending)
		return res, nil
	}

	var (
		mu           sync.Mutex
		findings     []domain.Finding
		judged       int
		inconclusive int
		wg           sync.WaitGroup
	)

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(c.oracleCfg.QueueDepth, c.oracleCfg.Concurrency, store)
	defer queue.Close()

	handler := func(ctx context.Context, job jobs.Job) error {
		jb, ok := job.(*jobs.JudgeBundleJob)
		if !ok {
			return fmt.Errorf("unexpected job type %s", job.GetType())
		}

		bundle, err := c.resolveBundle(corpus, jb)
		if err != nil {
			// Referential integrity violation; not retriable.
			mu.Lock()
			inconclusive++
			mu.Unlock()
			wg.Done()
			c.log.Error().Err(err).Str("bundle", jb.JobID).Msg("dropping unresolvable bundle")
			return nil
		}

		verdict, err := c.judgeBundle(ctx, jb.Strategy, bundle)
		switch {
		case err == nil:
			mu.Lock()
			judged++
			if verdict.Violation {
				findings = append(findings, domain.Finding{
					Category:  categoryFor(jb.Strategy),
					Severity:  verdict.Severity,
					Rule:      "contextual review — " + jb.Strategy,
					SourceIDs: bundle.SourceIDs(),
					Rationale: verdict.Rationale,
					Quotes:    verdict.Quotes,
				})
			}
			mu.Unlock()
			wg.Done()
			return nil

		case errors.Is(err, oracle.ErrInvalidVerdict):
			// Never coerced into a finding, and retrying an
			// unparsable answer is pointless.
			mu.Lock()
			inconclusive++
			mu.Unlock()
			wg.Done()
			return nil

		default:
			if jb.FinalAttempt() {
				mu.Lock()
				inconclusive++
				mu.Unlock()
				wg.Done()
				c.log.Warn().Err(err).Str("bundle", jb.JobID).Msg("bundle inconclusive after retries")
			}
			return err
		}
	}

	if err := queue.Start(ctx, handler); err != nil {
		return res, fmt.Errorf("start judgement queue: %w", err)
	}

	for _, p := range pending {
		select {
		case <-ctx.Done():
			return c.snapshot(res, &mu, findings, judged, inconclusive), ctx.Err()
		default:
		}

		wg.Add(1)
		job := &jobs.JudgeBundleJob{
			JobID:          p.strategy + "/" + p.bundle.Message.ID,
			Strategy:       p.strategy,
			MessageID:      p.bundle.Message.ID,
			TransactionIDs: transactionIDs(p.bundle),
			MaxRetries:     c.oracleCfg.MaxRetries,
		}
		if err := queue.PublishJudgeBundle(ctx, job); err != nil {
			wg.Done()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return c.snapshot(res, &mu, findings, judged, inconclusive), err
			}
			mu.Lock()
			inconclusive++
			mu.Unlock()
			c.log.Error().Err(err).Str("bundle", job.JobID).Msg("failed to enqueue bundle")
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return c.snapshot(res, &mu, findings, judged, inconclusive), ctx.Err()
	}

	res.Findings = findings
	res.BundlesJudged = judged
	res.BundlesInconclusive = inconclusive
	return res, nil
}

func (c *Correlator) snapshot(res Result, mu *sync.Mutex, findings []domain.Finding, judged, inconclusive int) Result {
	mu.Lock()
	defer mu.Unlock()
	res.Findings = append([]domain.Finding(nil), findings...)
	res.BundlesJudged = judged
	res.BundlesInconclusive = inconclusive
	return res
}

// judgeBundle performs one oracle call under the configured timeout.
func (c *Correlator) judgeBundle(ctx context.Context, strategy string, bundle domain.EvidenceBundle) (oracle.Verdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.oracleCfg.Timeout.Std())
	defer cancel()

	evidence := oracle.FormatEvidence(bundle)
	return c.judger.Judge(callCtx, evidence, oracle.InstructionsFor(strategy))
}

// resolveBundle reconstructs the evidence bundle from corpus records.
// Jobs carry identifiers only, so a bundle can always be re-resolved
// identically on retry.
func (c *Correlator) resolveBundle(corpus *domain.Corpus, jb *jobs.JudgeBundleJob) (domain.EvidenceBundle, error) {
	msg, ok := corpus.MessageByID(jb.MessageID)
	if !ok {
		return domain.EvidenceBundle{}, fmt.Errorf("message %s not in corpus", jb.MessageID)
	}
	bundle := domain.EvidenceBundle{Message: msg}
	for _, id := range jb.TransactionIDs {
		tx, ok := corpus.TransactionByID(id)
		if !ok {
			return domain.EvidenceBundle{}, fmt.Errorf("transaction %s not in corpus", id)
		}
		bundle.Transactions = append(bundle.Transactions, tx)
	}
	return bundle, nil
}

// strategyNames returns the configured strategies in a fixed order so
// bundle construction is deterministic.
func (c *Correlator) strategyNames() []string {
	names := make([]string, 0, len(c.cfg.Strategies))
	for name := range c.cfg.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// joinTransactions selects transactions whose employee is among the
// message participants and whose date lies within the configured
// window of the message date. All matches are included, not just the
// nearest.
func (c *Correlator) joinTransactions(msg domain.Message, txs []domain.Transaction) []domain.Transaction {
	participants := make(map[string]struct{}, len(msg.Recipients)+1)
	for _, p := range msg.Participants() {
		participants[employeeKey(p)] = struct{}{}
	}
	msgDate := civil.DateOf(msg.Date)

	var matched []domain.Transaction
	for _, tx := range txs {
		if tx.Validate() != nil {
			continue
		}
		if _, ok := participants[employeeKey(tx.Employee)]; !ok {
			continue
		}
		days := tx.Date.DaysSince(msgDate)
		if days < 0 {
			days = -days
		}
		if days > c.cfg.WindowDays {
			continue
		}
		matched = append(matched, tx)
	}
	return matched
}

// employeeKey normalizes a participant address or employee identifier
// for matching: the local part of an address, lowercased.
func employeeKey(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if at := strings.Index(s, "@"); at != -1 {
		s = s[:at]
	}
	return s
}

// filterByKeywords keeps messages whose body contains any keyword,
// case-insensitive, capped at max candidates per strategy.
func filterByKeywords(messages []domain.Message, keywords []string, max int) []domain.Message {
	var out []domain.Message
	for _, msg := range messages {
		body := strings.ToLower(msg.Body)
		for _, kw := range keywords {
			if strings.Contains(body, strings.ToLower(kw)) {
				out = append(out, msg)
				break
			}
		}
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func categoryFor(strategy string) domain.Category {
	if cat, ok := strategyCategories[strategy]; ok {
		return cat
	}
	return domain.Category(strategy)
}

func transactionIDs(b domain.EvidenceBundle) []string {
	ids := make([]string, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		ids = append(ids, t.ID)
	}
	return ids
}
