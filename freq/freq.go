// Package freq compares bag-of-words frequency maps captured from the three
// session variants of a clickstream step.
package freq

import (
	"errors"
	"fmt"
	"strings"

	"github.com/use-agent/cookiediff/models"
)

// FrequencyMap maps a token (word, link target, image source) to its
// occurrence count.
type FrequencyMap map[string]int

// ErrNegativeCount marks a frequency map holding a count below zero.
var ErrNegativeCount = errors.New("freq: negative count")

// Validate reports the first map holding a negative count. Distances over
// such maps fall outside [0, 1].
func Validate(maps ...FrequencyMap) error {
	for _, m := range maps {
		for k, n := range m {
			if n < 0 {
				return fmt.Errorf("%w: %q has count %d", ErrNegativeCount, k, n)
			}
		}
	}
	return nil
}

// Distance is the count-weighted Jaccard distance between two multisets:
//
//	1 - Σ min(a[k], b[k]) over shared keys / Σ max(a[k], b[k]) over all keys
//
// It is 0 for identical multisets, 1 for disjoint ones, and 0 when both
// are empty.
func Distance[K comparable](a, b map[K]int) float64 {
	var intersection, union int
	for k, ca := range a {
		cb, shared := b[k]
		if shared {
			intersection += min(ca, cb)
		}
		union += max(ca, cb)
	}
	for k, cb := range b {
		if _, seen := a[k]; !seen {
			union += cb
		}
	}
	if union == 0 {
		return 0
	}
	return 1 - float64(intersection)/float64(union)
}

// JaccardDistance is Distance over document frequency maps.
func JaccardDistance(a, b FrequencyMap) float64 {
	return Distance(a, b)
}

// Compare returns the control and experimental differences of one step
// and their difference-in-differences.
func Compare(baseline, control, experimental FrequencyMap) models.Scores {
	return models.NewScores(
		JaccardDistance(baseline, control),
		JaccardDistance(baseline, experimental),
	)
}

// WordCounts tokenizes rendered page text line by line on whitespace.
func WordCounts(innerText string) FrequencyMap {
	counts := make(FrequencyMap)
	for _, line := range strings.Split(innerText, "\n") {
		for _, word := range strings.Fields(line) {
			counts[word]++
		}
	}
	return counts
}

// CountItems reduces a list (link targets, image sources) to frequencies.
func CountItems(items []string) FrequencyMap {
	counts := make(FrequencyMap, len(items))
	for _, item := range items {
		counts[item]++
	}
	return counts
}
