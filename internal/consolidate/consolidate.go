// Package consolidate deduplicates, scores and orders findings into
// the final report sequence. Findings are never mutated, only
// filtered and reordered.
package consolidate

import (
	"sort"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/rmachado/expense-audit/internal/config"
	"github.com/rmachado/expense-audit/internal/domain"
	"github.com/rmachado/expense-audit/internal/textsim"
)

// textHeavyCategories are the oracle-produced categories whose
// findings carry free-text rationale substantial enough for
// similarity-based duplicate suppression.
var textHeavyCategories = map[domain.Category]struct{}{
	domain.CategoryCoordinatedFraud:   {},
	domain.CategoryFalseJustification: {},
	domain.CategoryConcealment:        {},
	domain.CategoryPersonalUse:        {},
	domain.CategoryConflictOfInterest: {},
}

// Consolidator merges duplicate findings and orders the survivors.
// The corpus is consulted only for source-record dates used in sort
// tie-breaking; it is never modified.
type Consolidator struct {
	cfg    config.ConsolidationConfig
	corpus *domain.Corpus
	log    zerolog.Logger
}

func New(cfg config.ConsolidationConfig, corpus *domain.Corpus, log zerolog.Logger) *Consolidator {
	return &Consolidator{cfg: cfg, corpus: corpus, log: log}
}

// Consolidate returns the deduplicated findings sorted by descending
// severity, then earliest source-record date, then category name.
// The operation is idempotent.
func (c *Consolidator) Consolidate(findings []domain.Finding) []domain.Finding {
	// Similarity is not transitive, and replacing a kept finding with a
	// higher-severity duplicate can create new duplicate pairs among
	// the survivors. Repeat the merge pass until no pair merges; every
	// pass shrinks the slice, so this terminates.
	kept := c.mergeOnce(findings)
	for {
		next := c.mergeOnce(kept)
		if len(next) == len(kept) {
			kept = next
			break
		}
		kept = next
	}

	dropped := len(findings) - len(kept)
	if dropped > 0 {
		c.log.Debug().Int("dropped", dropped).Int("kept", len(kept)).Msg("suppressed duplicate findings")
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		da, db := c.earliestSourceDate(a), c.earliestSourceDate(b)
		if da != db {
			return da.Before(db)
		}
		return a.Category < b.Category
	})
	return kept
}

// mergeOnce folds each finding into the first kept duplicate, keeping
// the better member of every pair.
func (c *Consolidator) mergeOnce(findings []domain.Finding) []domain.Finding {
	var kept []domain.Finding
	for _, f := range findings {
		merged := false
		for i, k := range kept {
			if !c.duplicates(f, k) {
				continue
			}
			if better(f, k) {
				kept[i] = f
			}
			merged = true
			break
		}
		if !merged {
			kept = append(kept, f)
		}
	}
	return kept
}

// duplicates reports whether two findings describe the same incident:
// identical identity keys, or near-identical evidence text sharing a
// source record within a text-heavy category.
func (c *Consolidator) duplicates(a, b domain.Finding) bool {
	if a.Key() == b.Key() {
		return true
	}
	if a.Category != b.Category {
		return false
	}
	if _, ok := textHeavyCategories[a.Category]; !ok {
		return false
	}
	if !a.SharesSource(b) {
		return false
	}
	return textsim.Jaccard(a.EvidenceText(), b.EvidenceText()) > c.cfg.SimilarityThreshold
}

// better reports whether candidate should replace incumbent within a
// duplicate group: higher severity wins, then more evidence quotes,
// then the incumbent stays.
func better(candidate, incumbent domain.Finding) bool {
	if candidate.Severity != incumbent.Severity {
		return candidate.Severity > incumbent.Severity
	}
	return len(candidate.Quotes) > len(incumbent.Quotes)
}

// earliestSourceDate resolves the oldest date among a finding's source
// records. Unresolvable references sort last.
func (c *Consolidator) earliestSourceDate(f domain.Finding) civil.Date {
	earliest := civil.Date{Year: 9999, Month: 12, Day: 31}
	if c.corpus == nil {
		return earliest
	}
	for _, id := range f.SourceIDs {
		if d, ok := c.corpus.RecordDate(id); ok && d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}
