// Package similarity provides the token-set comparison used for reversal
// and duplication detection over file contents.
package similarity

import "strings"

// Normalize collapses all whitespace runs to single spaces and trims.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Calculate returns the Jaccard similarity of the whitespace-delimited
// token sets of a and b, after normalization. Two empty strings have an
// empty union and score 0. Normalized-equal strings short-circuit to 1.0
// rather than going through the ratio, so exact matches are never subject
// to floating-point noise.
func Calculate(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		if na == "" {
			return 0
		}
		return 1.0
	}

	setA := tokenSet(na)
	setB := tokenSet(nb)

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// IsSimilarCode reports whether two content snapshots are close enough to
// count as the same state. Empty arguments never match anything. threshold
// is the calibrated Jaccard cutoff (0.9 by default).
func IsSimilarCode(a, b string, threshold float64) bool {
	if a == "" || b == "" {
		return false
	}
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	return Calculate(a, b) > threshold
}

func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		set[tok] = struct{}{}
	}
	return set
}
