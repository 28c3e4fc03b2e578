// Package textsim provides the token-set similarity used for
// structuring detection and near-duplicate finding suppression.
package textsim

import (
	"strings"
	"unicode"
)

// Tokenize splits text on whitespace and punctuation into a
// case-normalized set of words.
func Tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Jaccard computes |intersection| / |union| over the token sets of a
// and b. Defined as 0 when both sets are empty. Deterministic and
// symmetric; always in [0,1].
func Jaccard(a, b string) float64 {
	sa := Tokenize(a)
	sb := Tokenize(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}

	inter := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
