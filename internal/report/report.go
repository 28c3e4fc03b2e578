// Package report renders consolidated findings for people (text) and
// spreadsheets (CSV).
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rmachado/expense-audit/internal/domain"
	"github.com/rmachado/expense-audit/internal/engine"
)

// WriteText renders the run summary and findings as a plain-text
// report.
func WriteText(w io.Writer, summary *engine.Summary) error {
	var sb strings.Builder

	sb.WriteString("EXPENSE AUDIT REPORT\n")
	sb.WriteString("====================\n\n")
	fmt.Fprintf(&sb, "Run:      %s\n", summary.RunID)
	fmt.Fprintf(&sb, "Duration: %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Findings: %d\n\n", len(summary.Findings))

	if summary.SkippedTransactions > 0 || summary.SkippedMessages > 0 {
		fmt.Fprintf(&sb, "Skipped records: %d transactions, %d messages\n",
			summary.SkippedTransactions, summary.SkippedMessages)
	}
	if summary.BundlesBuilt > 0 {
		fmt.Fprintf(&sb, "Evidence bundles: %d built, %d judged, %d inconclusive\n",
			summary.BundlesBuilt, summary.BundlesJudged, summary.BundlesInconclusive)
	}
	sb.WriteString("\n")

	if len(summary.Findings) == 0 {
		sb.WriteString("No violations found.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	sb.WriteString("By category:\n")
	for _, line := range categoryCounts(summary.Findings) {
		fmt.Fprintf(&sb, "  %s\n", line)
	}
	sb.WriteString("\n")

	for i, f := range summary.Findings {
		fmt.Fprintf(&sb, "%d. [%d/10] %s\n", i+1, f.Severity, strings.ToUpper(string(f.Category)))
		if f.Rule != "" {
			fmt.Fprintf(&sb, "   Rule:      %s\n", f.Rule)
		}
		fmt.Fprintf(&sb, "   Sources:   %s\n", strings.Join(f.SourceIDs, ", "))
		if f.Rationale != "" {
			fmt.Fprintf(&sb, "   Rationale: %s\n", f.Rationale)
		}
		for _, q := range f.Quotes {
			fmt.Fprintf(&sb, "   > %q\n", q)
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// categoryCounts renders one "category: n" line per category, sorted
// by name.
func categoryCounts(findings []domain.Finding) []string {
	counts := make(map[string]int)
	for _, f := range findings {
		counts[string(f.Category)]++
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %d", name, counts[name]))
	}
	return lines
}

// WriteCSV exports findings in tabular form: category, severity, rule,
// source identifiers, rationale, quotes.
func WriteCSV(w io.Writer, findings []domain.Finding) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"category", "severity", "rule", "source_ids", "rationale", "quotes"}); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, f := range findings {
		record := []string{
			string(f.Category),
			strconv.Itoa(f.Severity),
			f.Rule,
			strings.Join(f.SourceIDs, ";"),
			f.Rationale,
			strings.Join(f.Quotes, " | "),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write CSV record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
