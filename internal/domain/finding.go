package domain

import "strings"

// Category enumerates the violation types the engine can emit.
type Category string

const (
	CategoryProhibitedItem     Category = "prohibited_item"
	CategoryUnauthorizedAmount Category = "unauthorized_amount"
	CategoryStructuring        Category = "structuring"
	CategoryRestrictedVenue    Category = "restricted_venue"
	CategoryRestrictedCategory Category = "restricted_category"
	CategoryCoordinatedFraud   Category = "coordinated_fraud"
	CategoryFalseJustification Category = "false_justification"
	CategoryConcealment        Category = "concealment"
	CategoryPersonalUse        Category = "personal_use"
	CategoryConflictOfInterest Category = "conflict_of_interest"
)

// Severity bounds for findings. Oracle-supplied severities are clamped
// into this range before a Finding is constructed.
const (
	SeverityMin = 0
	SeverityMax = 10
)

// ClampSeverity forces a severity onto the defined scale.
func ClampSeverity(s int) int {
	if s < SeverityMin {
		return SeverityMin
	}
	if s > SeverityMax {
		return SeverityMax
	}
	return s
}

// Finding is a single detected policy violation. Findings are produced
// once and never mutated; the consolidator only filters and reorders.
// SourceIDs reference corpus records by identifier — record content is
// never copied in beyond quoted text.
type Finding struct {
	Category  Category
	Severity  int
	Rule      string   // policy section, e.g. "expense policy §1.3"
	SourceIDs []string // at least one; must exist in the corpus
	Rationale string
	Quotes    []string // ordered evidence excerpts
}

// Key is the deduplication identity: category plus the sorted
// source-record identifier set.
func (f Finding) Key() string {
	return string(f.Category) + "|" + strings.Join(SortIDs(f.SourceIDs), ",")
}

// EvidenceText concatenates rationale and quotes for text-similarity
// comparison between findings of text-heavy categories.
func (f Finding) EvidenceText() string {
	parts := make([]string, 0, len(f.Quotes)+1)
	parts = append(parts, f.Rationale)
	parts = append(parts, f.Quotes...)
	return strings.Join(parts, " ")
}

// SharesSource reports whether two findings reference at least one
// common record.
func (f Finding) SharesSource(other Finding) bool {
	for _, a := range f.SourceIDs {
		for _, b := range other.SourceIDs {
			if a == b {
				return true
			}
		}
	}
	return false
}

// EvidenceBundle pairs a message with the transactions considered
// temporally and participant-relevant to it. It is the unit handed to
// the oracle for semantic judgement.
type EvidenceBundle struct {
	Message      Message
	Transactions []Transaction
}

// SourceIDs returns the message identifier followed by all bundled
// transaction identifiers.
func (b EvidenceBundle) SourceIDs() []string {
	ids := make([]string, 0, len(b.Transactions)+1)
	ids = append(ids, b.Message.ID)
	for _, t := range b.Transactions {
		ids = append(ids, t.ID)
	}
	return ids
}
