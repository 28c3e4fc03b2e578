// Package rules implements the standalone transaction checks. Each
// check is a pure predicate over one transaction or a small group of
// transactions; no check observes another's output.
package rules

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/rmachado/expense-audit/internal/config"
	"github.com/rmachado/expense-audit/internal/domain"
	"github.com/rmachado/expense-audit/internal/textsim"
)

const (
	ruleProhibitedItems    = "expense policy §3 — prohibited items"
	ruleLargeExpenses      = "expense policy §1.3 — large expenses"
	ruleStructuring        = "expense policy §1.3 — structuring"
	ruleRestrictedVenues   = "expense policy §2.1 — restricted venues"
	ruleRestrictedCategory = "expense policy §3.2 — restricted categories"

	severityProhibitedItem     = 9
	severityUnauthorizedAmount = 7
	severityStructuring        = 10
	severityRestrictedVenue    = 6
	severityRestrictedCategory = 7
)

// Checker evaluates the configured standalone checks.
type Checker struct {
	cfg config.RulesConfig
	log zerolog.Logger
}

// NewChecker builds a Checker from the validated configuration.
func NewChecker(cfg config.RulesConfig, log zerolog.Logger) *Checker {
	return &Checker{cfg: cfg, log: log}
}

// Evaluate runs every check over the transactions and returns the raw
// findings plus the number of malformed transactions skipped.
// Malformed transactions are logged and excluded from every check;
// they never abort the batch.
func (c *Checker) Evaluate(txs []domain.Transaction) ([]domain.Finding, int) {
	valid := make([]domain.Transaction, 0, len(txs))
	skipped := 0
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			c.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("skipping malformed transaction")
			skipped++
			continue
		}
		valid = append(valid, tx)
	}

	var findings []domain.Finding
	findings = append(findings, c.checkProhibitedItems(valid)...)
	findings = append(findings, c.checkUnauthorizedAmounts(valid)...)
	findings = append(findings, c.checkStructuring(valid)...)
	findings = append(findings, c.checkRestrictedVenues(valid)...)
	findings = append(findings, c.checkRestrictedCategories(valid)...)
	return findings, skipped
}

// checkProhibitedItems flags descriptions containing any prohibited
// term. One finding per matching transaction, first term wins.
func (c *Checker) checkProhibitedItems(txs []domain.Transaction) []domain.Finding {
	var findings []domain.Finding
	for _, tx := range txs {
		desc := strings.ToLower(tx.Description)
		for _, term := range c.cfg.ProhibitedTerms {
			if strings.Contains(desc, strings.ToLower(term)) {
				findings = append(findings, domain.Finding{
					Category:  domain.CategoryProhibitedItem,
					Severity:  severityProhibitedItem,
					Rule:      ruleProhibitedItems,
					SourceIDs: []string{tx.ID},
					Rationale: fmt.Sprintf("purchase of prohibited item: description matches %q", term),
					Quotes:    []string{tx.Description},
				})
				break
			}
		}
	}
	return findings
}

// checkUnauthorizedAmounts flags amounts over the authorization
// ceiling whose description carries no authorization marker.
func (c *Checker) checkUnauthorizedAmounts(txs []domain.Transaction) []domain.Finding {
	var findings []domain.Finding
	for _, tx := range txs {
		if tx.AmountCents <= c.cfg.AuthorizationCeilingCents {
			continue
		}
		desc := strings.ToLower(tx.Description)
		marked := false
		for _, marker := range c.cfg.AuthorizationMarkers {
			if strings.Contains(desc, strings.ToLower(marker)) {
				marked = true
				break
			}
		}
		if marked {
			continue
		}
		findings = append(findings, domain.Finding{
			Category:  domain.CategoryUnauthorizedAmount,
			Severity:  severityUnauthorizedAmount,
			Rule:      ruleLargeExpenses,
			SourceIDs: []string{tx.ID},
			Rationale: fmt.Sprintf("amount %s exceeds the %s authorization ceiling with no purchase order reference",
				domain.FormatCents(tx.AmountCents), domain.FormatCents(c.cfg.AuthorizationCeilingCents)),
			Quotes: []string{tx.Description},
		})
	}
	return findings
}

// checkStructuring detects same-day split purchases: within each
// (employee, date) group, any unordered pair with similar descriptions
// where both amounts fall in the configured band and the pair sum
// exceeds the authorization ceiling. Pair enumeration is quadratic per
// group; groups are a single employee-day so they stay small.
func (c *Checker) checkStructuring(txs []domain.Transaction) []domain.Finding {
	type groupKey struct {
		employee string
		date     civil.Date
	}
	groups := make(map[groupKey][]domain.Transaction)
	var order []groupKey
	for _, tx := range txs {
		k := groupKey{employee: tx.Employee, date: tx.Date}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], tx)
	}

	s := c.cfg.Structuring
	var findings []domain.Finding
	for _, k := range order {
		group := groups[k]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if !c.inBand(a.AmountCents) || !c.inBand(b.AmountCents) {
					continue
				}
				if a.AmountCents+b.AmountCents <= c.cfg.AuthorizationCeilingCents {
					continue
				}
				sim := textsim.Jaccard(a.Description, b.Description)
				if sim <= s.SimilarityThreshold {
					continue
				}
				findings = append(findings, domain.Finding{
					Category:  domain.CategoryStructuring,
					Severity:  severityStructuring,
					Rule:      ruleStructuring,
					SourceIDs: []string{a.ID, b.ID},
					Rationale: fmt.Sprintf(
						"possible structuring: two same-day purchases by %s with %.0f%% similar descriptions totalling %s",
						k.employee, sim*100, domain.FormatCents(a.AmountCents+b.AmountCents)),
					Quotes: []string{a.Description, b.Description},
				})
			}
		}
	}
	return findings
}

func (c *Checker) inBand(cents int64) bool {
	s := c.cfg.Structuring
	return cents >= s.BandMinCents && cents < s.BandMaxCents
}

// checkRestrictedVenues flags descriptions naming a restricted venue.
func (c *Checker) checkRestrictedVenues(txs []domain.Transaction) []domain.Finding {
	var findings []domain.Finding
	for _, tx := range txs {
		desc := strings.ToLower(tx.Description)
		for _, venue := range c.cfg.RestrictedVenues {
			if strings.Contains(desc, strings.ToLower(venue)) {
				findings = append(findings, domain.Finding{
					Category:  domain.CategoryRestrictedVenue,
					Severity:  severityRestrictedVenue,
					Rule:      ruleRestrictedVenues,
					SourceIDs: []string{tx.ID},
					Rationale: fmt.Sprintf("expense at restricted venue %q", venue),
					Quotes:    []string{tx.Description},
				})
				break
			}
		}
	}
	return findings
}

// checkRestrictedCategories flags transactions whose category label
// equals a restricted category (case-insensitive).
func (c *Checker) checkRestrictedCategories(txs []domain.Transaction) []domain.Finding {
	var findings []domain.Finding
	for _, tx := range txs {
		for _, cat := range c.cfg.RestrictedCategories {
			if strings.EqualFold(tx.Category, cat) {
				findings = append(findings, domain.Finding{
					Category:  domain.CategoryRestrictedCategory,
					Severity:  severityRestrictedCategory,
					Rule:      ruleRestrictedCategory,
					SourceIDs: []string{tx.ID},
					Rationale: fmt.Sprintf("expense filed under restricted category %q", tx.Category),
					Quotes:    []string{tx.Description},
				})
				break
			}
		}
	}
	return findings
}
