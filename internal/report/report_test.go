package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/rmachado/expense-audit/internal/domain"
	"github.com/rmachado/expense-audit/internal/engine"
)

func sampleFindings() []domain.Finding {
	return []domain.Finding{
		{
			Category:  domain.CategoryStructuring,
			Severity:  10,
			Rule:      "expense policy §1.3 — structuring",
			SourceIDs: []string{"T001", "T002"},
			Rationale: "two same-day purchases split below the approval ceiling",
			Quotes:    []string{"Papelaria Local"},
		},
		{
			Category:  domain.CategoryRestrictedVenue,
			Severity:  6,
			Rule:      "expense policy §2.1 — restricted venues",
			SourceIDs: []string{"T003"},
			Rationale: "expense at a restricted venue",
		},
	}
}

func TestWriteText(t *testing.T) {
	summary := &engine.Summary{
		RunID:               "run-123",
		Findings:            sampleFindings(),
		BundlesBuilt:        2,
		BundlesJudged:       1,
		BundlesInconclusive: 1,
		Duration:            1500 * time.Millisecond,
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"run-123",
		"STRUCTURING",
		"T001, T002",
		"2 built, 1 judged, 1 inconclusive",
		"[10/10]",
		"structuring: 1",
		"restricted_venue: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "STRUCTURING") > strings.Index(out, "RESTRICTED_VENUE") {
		t.Error("findings not rendered in input order")
	}
}

func TestWriteTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, &engine.Summary{RunID: "run-0"}); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if !strings.Contains(buf.String(), "No violations found.") {
		t.Errorf("empty report = %q", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleFindings()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header plus 2", len(records))
	}
	if records[0][0] != "category" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][1] != "10" || records[1][3] != "T001;T002" {
		t.Errorf("first row = %v", records[1])
	}
}
