package shingle

import (
	"errors"
	"fmt"

	"github.com/use-agent/cookiediff/freq"
	"github.com/use-agent/cookiediff/models"
)

var (
	// ErrPrecondition is wrapped by every error reporting shingle sets that
	// cannot be compared (different chunk size, dimensions or tile count).
	ErrPrecondition = errors.New("shingle: incompatible shingle sets")

	// ErrNoComparableTiles reports that baseline and the control(s) differ
	// on every tile, so nothing could be measured. It is distinct from a
	// legitimate zero difference.
	ErrNoComparableTiles = errors.New("shingle: no comparable tiles")
)

// ComputeDifference is the unordered multiset distance between the shingle
// counts of a and b. Tile positions are ignored.
func ComputeDifference(a, b *Set) float64 {
	return freq.Distance(a.counts, b.counts)
}

// CompareWithControl measures how much experimental differs from baseline
// on the tiles where baseline and control agree. Tiles where the two
// untreated sessions already disagree (ads, clocks, carousels) are
// excluded. The result is 1 - matches/compared.
//
// It returns an error wrapping ErrPrecondition when the sets are not
// aligned, and one wrapping ErrNoComparableTiles when baseline and control
// share no tile.
func CompareWithControl(baseline, control, experimental *Set) (float64, error) {
	return CompareWithControls(baseline, []*Set{control}, experimental)
}

// CompareWithControls generalizes CompareWithControl to several controls:
// a tile is excluded when baseline differs from any control on it.
// With no controls every tile is compared. When every tile is excluded it
// returns an error wrapping ErrNoComparableTiles, never a sentinel score.
func CompareWithControls(baseline *Set, controls []*Set, experimental *Set) (float64, error) {
	if err := checkAligned(baseline, experimental); err != nil {
		return 0, err
	}
	for _, c := range controls {
		if err := checkAligned(baseline, c); err != nil {
			return 0, err
		}
	}

	var matches, total int
	for i, s := range baseline.shingles {
		if !agreesWithAll(s, i, controls) {
			continue
		}
		total++
		if s == experimental.shingles[i] {
			matches++
		}
	}

	if total == 0 {
		return 0, models.NewAnalysisError(
			models.ErrCodeNoComparison,
			fmt.Sprintf("baseline and %d control(s) disagree on all %d tiles", len(controls), baseline.Len()),
			ErrNoComparableTiles,
		)
	}
	return 1 - float64(matches)/float64(total), nil
}

func agreesWithAll(s Shingle, i int, controls []*Set) bool {
	for _, c := range controls {
		if c.shingles[i] != s {
			return false
		}
	}
	return true
}

// checkAligned verifies that two sets were tiled identically.
func checkAligned(a, b *Set) error {
	switch {
	case a.chunkSize != b.chunkSize:
		return preconditionError(fmt.Sprintf("chunk size %d != %d", a.chunkSize, b.chunkSize))
	case a.width != b.width || a.height != b.height:
		return preconditionError(fmt.Sprintf("image size %dx%d != %dx%d", a.width, a.height, b.width, b.height))
	case len(a.shingles) != len(b.shingles):
		return preconditionError(fmt.Sprintf("tile count %d != %d", len(a.shingles), len(b.shingles)))
	}
	return nil
}

func preconditionError(msg string) error {
	return models.NewAnalysisError(models.ErrCodePrecondition, msg, ErrPrecondition)
}
