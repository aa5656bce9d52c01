package shingle

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/cookiediff/freq"
	"github.com/use-agent/cookiediff/models"
)

var (
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
)

// paint returns a w×h image whose pixel colour is chosen by fn.
func paint(w, h int, fn func(x, y int) color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fn(x, y))
		}
	}
	return img
}

func solid(c color.NRGBA) func(x, y int) color.NRGBA {
	return func(int, int) color.NRGBA { return c }
}

func halves(left, right color.NRGBA, w int) func(x, y int) color.NRGBA {
	return func(x, _ int) color.NRGBA {
		if x < w/2 {
			return left
		}
		return right
	}
}

func blemish(at image.Point) func(x, y int) color.NRGBA {
	return func(x, y int) color.NRGBA {
		if x == at.X && y == at.Y {
			return red
		}
		return green
	}
}

func mustSet(t *testing.T, img image.Image, chunk int) *Set {
	t.Helper()
	s, err := New(img, chunk)
	require.NoError(t, err)
	return s
}

// fixtures mirrors a 4×2 screen tiled pixel by pixel.
type fixtures struct {
	green, blue, greenBlue, blueGreen, leftBlemish, rightBlemish *Set
}

func newFixtures(t *testing.T) fixtures {
	const w, h = 4, 2
	return fixtures{
		green:        mustSet(t, paint(w, h, solid(green)), 1),
		blue:         mustSet(t, paint(w, h, solid(blue)), 1),
		greenBlue:    mustSet(t, paint(w, h, halves(green, blue, w)), 1),
		blueGreen:    mustSet(t, paint(w, h, halves(blue, green, w)), 1),
		leftBlemish:  mustSet(t, paint(w, h, blemish(image.Pt(0, 0))), 1),
		rightBlemish: mustSet(t, paint(w, h, blemish(image.Pt(3, 1))), 1),
	}
}

func TestTiles_Order(t *testing.T) {
	got := Tiles(5, 3, 2)
	want := []image.Rectangle{
		// full tiles
		image.Rect(0, 0, 2, 2), image.Rect(2, 0, 4, 2),
		// right edge
		image.Rect(4, 0, 5, 2),
		// bottom edge
		image.Rect(0, 2, 2, 3), image.Rect(2, 2, 4, 3),
		// corner
		image.Rect(4, 2, 5, 3),
	}
	assert.Equal(t, want, got)
}

func TestTiles_Count(t *testing.T) {
	for _, tc := range []struct{ w, h, c int }{
		{40, 40, 40}, {41, 40, 40}, {40, 41, 40}, {81, 95, 40},
		{1280, 720, 40}, {1366, 768, 40}, {7, 3, 1}, {3, 7, 10},
	} {
		want := ((tc.w + tc.c - 1) / tc.c) * ((tc.h + tc.c - 1) / tc.c)
		assert.Len(t, Tiles(tc.w, tc.h, tc.c), want, "%dx%d chunk %d", tc.w, tc.h, tc.c)
	}
	assert.Empty(t, Tiles(0, 10, 4))
}

func TestNew_Deterministic(t *testing.T) {
	img := paint(95, 81, func(x, y int) color.NRGBA {
		return color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: uint8(128 + x%100)}
	})
	a := mustSet(t, img, 40)
	b := mustSet(t, img, 40)

	assert.Equal(t, a.Shingles(), b.Shingles())
	assert.Equal(t, 3*3, a.Len())
	assert.Equal(t, 40, a.ChunkSize())
	w, h := a.Bounds()
	assert.Equal(t, 95, w)
	assert.Equal(t, 81, h)
}

func TestNew_AlphaIsHashed(t *testing.T) {
	opaque := mustSet(t, paint(2, 2, solid(green)), 2)
	translucent := mustSet(t, paint(2, 2, solid(color.NRGBA{G: 255, A: 10})), 2)
	assert.NotEqual(t, opaque.Shingles(), translucent.Shingles())
}

func TestNew_NormalizesColorModelAndOrigin(t *testing.T) {
	nrgba := paint(6, 4, halves(green, blue, 6))

	rgba := image.NewRGBA(image.Rect(10, 20, 16, 24))
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			rgba.Set(10+x, 20+y, nrgba.At(x, y))
		}
	}

	assert.Equal(t, mustSet(t, nrgba, 3).Shingles(), mustSet(t, rgba, 3).Shingles())
}

func TestNew_InvalidChunkSize(t *testing.T) {
	_, err := New(paint(2, 2, solid(green)), 0)
	require.Error(t, err)
	var ae *models.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, models.ErrCodeInvalidInput, ae.Code)
}

func TestCounts(t *testing.T) {
	f := newFixtures(t)
	counts := f.greenBlue.Counts()
	assert.Len(t, counts, 2)
	for _, n := range counts {
		assert.Equal(t, 4, n)
	}
}

func TestComputeDifference(t *testing.T) {
	f := newFixtures(t)
	assert.Equal(t, 0.0, ComputeDifference(f.greenBlue, f.blueGreen), "position is ignored")
	assert.Equal(t, 0.0, ComputeDifference(f.green, f.green))
	assert.Equal(t, 1.0, ComputeDifference(f.green, f.blue))
	assert.Equal(t, freq.Distance(f.green.Counts(), f.greenBlue.Counts()), ComputeDifference(f.green, f.greenBlue))
}

func TestCompareWithControl_SameBaselineAndControl(t *testing.T) {
	f := newFixtures(t)

	got, err := CompareWithControl(f.green, f.green, f.blue)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = CompareWithControl(f.green, f.green, f.greenBlue)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)

	got, err = CompareWithControl(f.green, f.green, f.green)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestCompareWithControl_CompletelyDifferentControl(t *testing.T) {
	f := newFixtures(t)

	_, err := CompareWithControl(f.green, f.blue, f.green)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoComparableTiles)
	assert.NotErrorIs(t, err, ErrPrecondition)

	var ae *models.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, models.ErrCodeNoComparison, ae.Code)
}

func TestCompareWithControl_HalfDifferentControl(t *testing.T) {
	f := newFixtures(t)

	// Only the left half is compared; the blemish on the right is noise.
	got, err := CompareWithControl(f.green, f.greenBlue, f.rightBlemish)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = CompareWithControl(f.green, f.greenBlue, f.leftBlemish)
	require.NoError(t, err)
	assert.Equal(t, 0.25, got)
}

func TestCompareWithControl_Preconditions(t *testing.T) {
	base := mustSet(t, paint(8, 8, solid(green)), 4)

	otherChunk := mustSet(t, paint(8, 8, solid(green)), 2)
	_, err := CompareWithControl(base, otherChunk, base)
	assert.ErrorIs(t, err, ErrPrecondition)

	otherSize := mustSet(t, paint(8, 12, solid(green)), 4)
	_, err = CompareWithControl(base, base, otherSize)
	assert.ErrorIs(t, err, ErrPrecondition)

	// Same tile count, different dimensions.
	transposed := mustSet(t, paint(12, 4, solid(green)), 4)
	wide := mustSet(t, paint(4, 12, solid(green)), 4)
	_, err = CompareWithControl(transposed, transposed, wide)
	require.Error(t, err)
	var ae *models.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, models.ErrCodePrecondition, ae.Code)
}

func TestCompareWithControl_IdenticalControlIsPlainPositionalDifference(t *testing.T) {
	x := mustSet(t, paint(80, 40, halves(green, blue, 80)), 10)
	y := mustSet(t, paint(80, 40, blemish(image.Pt(5, 5))), 10)

	got, err := CompareWithControl(x, x, y)
	require.NoError(t, err)

	xs, ys := x.Shingles(), y.Shingles()
	matches := 0
	for i := range xs {
		if xs[i] == ys[i] {
			matches++
		}
	}
	assert.InDelta(t, 1-float64(matches)/float64(len(xs)), got, 1e-12)
}

func TestCompareWithControls(t *testing.T) {
	f := newFixtures(t)

	got, err := CompareWithControls(f.green, []*Set{f.green, f.green}, f.greenBlue)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)

	// The right half is masked by one control; the left-top pixel by the other.
	got, err = CompareWithControls(f.green, []*Set{f.greenBlue, f.leftBlemish}, f.leftBlemish)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = CompareWithControls(f.green, nil, f.blue)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	_, err = CompareWithControls(f.green, []*Set{f.greenBlue, f.blueGreen}, f.green)
	assert.ErrorIs(t, err, ErrNoComparableTiles)
}

func TestLoad(t *testing.T) {
	img := paint(50, 30, halves(green, blue, 50))
	path := filepath.Join(t.TempDir(), "baseline-0.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	loaded, err := Load(path, 20)
	require.NoError(t, err)
	assert.Equal(t, mustSet(t, img, 20).Shingles(), loaded.Shingles())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.png"), 40)
	var ae *models.AnalysisError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, models.ErrCodeMissingArtifact, ae.Code)

	corrupt := filepath.Join(dir, "corrupt.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not an image"), 0o644))
	_, err = Load(corrupt, 40)
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, models.ErrCodeCorruptArtifact, ae.Code)
}

func TestShingleString(t *testing.T) {
	s := mustSet(t, paint(1, 1, solid(green)), 1).Shingles()[0]
	assert.Len(t, s.String(), 32)
}
