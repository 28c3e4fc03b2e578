package oracle

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"

	"github.com/rmachado/expense-audit/internal/domain"
)

var testLimits = Limits{MaxRationaleLen: 100, MaxQuotes: 3}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Verdict
		wantErr error
	}{
		{
			name: "plain json",
			raw:  `{"violation": true, "severity": 8, "rationale": "split purchase", "quotes": ["let's split it"]}`,
			want: Verdict{Violation: true, Severity: 8, Rationale: "split purchase", Quotes: []string{"let's split it"}},
		},
		{
			name: "json fenced",
			raw:  "```json\n{\"violation\": false, \"severity\": 0, \"rationale\": \"routine expense\"}\n```",
			want: Verdict{Violation: false, Severity: 0, Rationale: "routine expense"},
		},
		{
			name: "bare fence",
			raw:  "```\n{\"violation\": true, \"severity\": 5, \"rationale\": \"vague client claim\"}\n```",
			want: Verdict{Violation: true, Severity: 5, Rationale: "vague client claim"},
		},
		{
			name: "prose around object",
			raw:  "Here is my analysis: {\"violation\": true, \"severity\": 6, \"rationale\": \"secrecy request\"} Hope that helps!",
			want: Verdict{Violation: true, Severity: 6, Rationale: "secrecy request"},
		},
		{
			name:    "not json",
			raw:     "I believe this is a violation.",
			wantErr: ErrInvalidVerdict,
		},
		{
			name:    "empty",
			raw:     "",
			wantErr: ErrInvalidVerdict,
		},
		{
			name:    "unknown fields rejected",
			raw:     `{"violation": true, "severity": 3, "rationale": "x", "confidence": 0.9}`,
			wantErr: ErrInvalidVerdict,
		},
		{
			name:    "positive verdict without rationale",
			raw:     `{"violation": true, "severity": 7, "rationale": "  "}`,
			wantErr: ErrInvalidVerdict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.raw, testLimits)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Violation != tt.want.Violation || got.Severity != tt.want.Severity || got.Rationale != tt.want.Rationale {
				t.Errorf("verdict = %+v, want %+v", got, tt.want)
			}
			if len(got.Quotes) != len(tt.want.Quotes) {
				t.Errorf("quotes = %v, want %v", got.Quotes, tt.want.Quotes)
			}
		})
	}
}

func TestParseVerdictClampsSeverity(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`{"violation": true, "severity": 99, "rationale": "x"}`, 10},
		{`{"violation": true, "severity": -3, "rationale": "x"}`, 0},
		{`{"violation": true, "severity": 10, "rationale": "x"}`, 10},
	}
	for _, tt := range tests {
		got, err := ParseVerdict(tt.raw, testLimits)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Severity != tt.want {
			t.Errorf("severity = %d, want %d", got.Severity, tt.want)
		}
	}
}

func TestParseVerdictBoundsText(t *testing.T) {
	long := strings.Repeat("a", 500)
	raw := `{"violation": true, "severity": 5, "rationale": "` + long + `", "quotes": ["q1", "q2", "", "q3", "q4"]}`

	got, err := ParseVerdict(raw, testLimits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Rationale) != testLimits.MaxRationaleLen {
		t.Errorf("rationale length = %d, want %d", len(got.Rationale), testLimits.MaxRationaleLen)
	}
	// Blank quotes dropped, count capped.
	if len(got.Quotes) != 2 {
		t.Errorf("quotes = %v, want 2 non-empty entries within cap", got.Quotes)
	}
}

func TestParseVerdictTruncationKeepsValidUTF8(t *testing.T) {
	// "x" plus 2-byte runes puts the byte cap mid-rune.
	long := "x" + strings.Repeat("é", 200)
	raw := `{"violation": true, "severity": 5, "rationale": "` + long + `", "quotes": ["` + long + `"]}`

	got, err := ParseVerdict(raw, testLimits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utf8.ValidString(got.Rationale) {
		t.Errorf("rationale truncated mid-rune: %q", got.Rationale)
	}
	if len(got.Rationale) > testLimits.MaxRationaleLen {
		t.Errorf("rationale length = %d, want <= %d", len(got.Rationale), testLimits.MaxRationaleLen)
	}
	for _, q := range got.Quotes {
		if !utf8.ValidString(q) {
			t.Errorf("quote truncated mid-rune: %q", q)
		}
	}
}

func TestTruncateText(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{in: "hello", max: 10, want: "hello"},
		{in: "hello", max: 3, want: "hel"},
		{in: "héllo", max: 2, want: "h"},
		{in: "héllo", max: 3, want: "hé"},
		{in: "hello", max: 0, want: "hello"},
	}
	for _, tc := range cases {
		if got := truncateText(tc.in, tc.max); got != tc.want {
			t.Errorf("truncateText(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestInstructionsFor(t *testing.T) {
	for _, strategy := range []string{"coordination", "false_justification", "concealment", "personal_use", "conflict_of_interest"} {
		instr := InstructionsFor(strategy)
		if !strings.Contains(instr, "STRICT JSON") {
			t.Errorf("instructions for %s missing verdict format", strategy)
		}
	}
	if got := InstructionsFor("unknown"); !strings.Contains(got, "policy violation") {
		t.Errorf("unknown strategy should get generic instructions, got: %s", got)
	}
}

func TestFormatEvidence(t *testing.T) {
	bundle := domain.EvidenceBundle{
		Message: domain.Message{
			ID:         "M1",
			Sender:     "michael.scott@dundermifflin.com",
			Recipients: []string{"dwight.schrute@dundermifflin.com"},
			Date:       time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC),
			Subject:    "about those chairs",
			Body:       "Let's split the purchase so nobody asks questions.",
		},
		Transactions: []domain.Transaction{
			{ID: "T1", Employee: "michael.scott", Date: civil.Date{Year: 2024, Month: 3, Day: 12}, AmountCents: 45000, Description: "Office chairs batch 1"},
		},
	}

	text := FormatEvidence(bundle)
	for _, want := range []string{
		"From: michael.scott@dundermifflin.com",
		"Subject: about those chairs",
		"split the purchase",
		"T1", "$450.00", "Office chairs batch 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("evidence text missing %q:\n%s", want, text)
		}
	}
}
