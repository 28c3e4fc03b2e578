// Package oracle talks to the external semantic-judgement service.
// The engine hands it structured evidence plus a strategy-specific
// instruction template and gets back a verdict. Everything the service
// returns is untrusted input: it is schema-checked, range-clamped and
// size-bounded before the engine turns it into a finding.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rmachado/expense-audit/internal/domain"
)

// ErrUnavailable marks transient oracle failures. The caller may retry
// the same bundle and expect the same result.
var ErrUnavailable = errors.New("oracle unavailable")

// ErrInvalidVerdict marks a response that failed schema or range
// validation. The affected bundle is inconclusive; the verdict is
// never coerced into a finding, and retrying would not help.
var ErrInvalidVerdict = errors.New("oracle verdict invalid")

// Verdict is the structured judgement returned by the oracle.
type Verdict struct {
	Violation bool     `json:"violation"`
	Severity  int      `json:"severity"`
	Rationale string   `json:"rationale"`
	Quotes    []string `json:"quotes"`
}

// Judger is the single operation the engine needs from a semantic
// judgement service.
type Judger interface {
	Judge(ctx context.Context, evidence, instructions string) (Verdict, error)
}

// Limits bound how much oracle-supplied text a finding may carry.
type Limits struct {
	MaxRationaleLen int
	MaxQuotes       int
}

// ParseVerdict decodes a raw model response into a validated Verdict.
// Markdown fences are scrubbed first; models occasionally wrap JSON in
// them despite instructions.
func ParseVerdict(raw string, limits Limits) (Verdict, error) {
	clean := scrubModelJSON(raw)
	if clean == "" {
		return Verdict{}, fmt.Errorf("%w: empty response", ErrInvalidVerdict)
	}

	dec := json.NewDecoder(strings.NewReader(clean))
	dec.DisallowUnknownFields()
	var v Verdict
	if err := dec.Decode(&v); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}

	return sanitize(v, limits)
}

// sanitize enforces the severity scale and the size bounds. A positive
// verdict with no rationale is rejected rather than accepted blind.
func sanitize(v Verdict, limits Limits) (Verdict, error) {
	v.Rationale = strings.TrimSpace(v.Rationale)
	if v.Violation && v.Rationale == "" {
		return Verdict{}, fmt.Errorf("%w: positive verdict without rationale", ErrInvalidVerdict)
	}

	v.Severity = domain.ClampSeverity(v.Severity)

	v.Rationale = truncateText(v.Rationale, limits.MaxRationaleLen)
	if limits.MaxQuotes > 0 && len(v.Quotes) > limits.MaxQuotes {
		v.Quotes = v.Quotes[:limits.MaxQuotes]
	}
	quotes := v.Quotes[:0]
	for _, q := range v.Quotes {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		quotes = append(quotes, truncateText(q, limits.MaxRationaleLen))
	}
	v.Quotes = quotes
	return v, nil
}

// truncateText caps a string at max bytes without splitting a UTF-8
// rune. max <= 0 means unbounded.
func truncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// scrubModelJSON removes ```json fences and surrounding noise from a
// model response that ignored the strict-JSON instruction.
func scrubModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Some models prepend prose; cut down to the outermost object.
	if !strings.HasPrefix(s, "{") {
		if start := strings.Index(s, "{"); start != -1 {
			if end := strings.LastIndex(s, "}"); end > start {
				s = s[start : end+1]
			}
		}
	}
	return s
}
