package bo

import (
	"github.com/agnivade/levenshtein"
)

// closest returns the option nearest to value by edit distance when it is
// close enough to be a plausible typo.
func closest(value string, options []string) (string, bool) {
	best, bestDist := "", -1
	for _, opt := range options {
		d := levenshtein.ComputeDistance(value, opt)
		if bestDist < 0 || d < bestDist {
			best, bestDist = opt, d
		}
	}
	limit := max(2, len(value)/3)
	if bestDist < 0 || bestDist == 0 || bestDist > limit {
		return "", false
	}
	return best, true
}

func didYouMean(value string, options []string) string {
	if s, ok := closest(value, options); ok {
		return " Did you mean '" + s + "'?"
	}
	return ""
}
