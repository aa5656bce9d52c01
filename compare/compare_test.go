package compare

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/models"
)

var (
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	red   = color.NRGBA{R: 255, A: 255}
)

// writeImage writes a 4x2 PNG whose pixel at (x, y) is fill(x, y).
func writeImage(t *testing.T, path string, fill func(x, y int) color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func solid(c color.NRGBA) func(int, int) color.NRGBA {
	return func(int, int) color.NRGBA { return c }
}

func leftHalf(left, right color.NRGBA) func(int, int) color.NRGBA {
	return func(x, _ int) color.NRGBA {
		if x < 2 {
			return left
		}
		return right
	}
}

const threeStepFeatures = `{
  "innerText": {
    "baseline":     [{"hello": 2, "world": 1}, {"a": 1}, {"x": 1}],
    "control":      [{"hello": 2, "world": 1}, {"a": 1}, null],
    "experimental": [{"hello": 1, "world": 1}, {"b": 1}, {"x": 1}]
  },
  "links": {
    "baseline":     [{"https://a.test/": 1}, {}, {}],
    "control":      [{"https://a.test/": 1}, {}, {}],
    "experimental": [{"https://a.test/": 1}, {}]
  },
  "img": {
    "baseline": [{"/logo.png": 1}]
  }
}`

func newComparator(reg prometheus.Registerer) *Comparator {
	return &Comparator{ChunkSize: 1, ClickstreamLength: 2, Metrics: metrics.New(reg)}
}

func TestCompareClickstream_Features(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FeaturesFile), []byte(threeStepFeatures), 0o644))

	got := newComparator(prometheus.NewRegistry()).CompareClickstream("a.test", 0, dir)
	require.Len(t, got, 3)

	text0 := got[0][models.FeatureInnerText]
	require.NotNil(t, text0.DiD)
	assert.Equal(t, 0.0, *text0.ControlDiff)
	assert.InDelta(t, 1.0/3, *text0.ExperimentalDiff, 1e-9)
	assert.InDelta(t, 1.0/3, *text0.DiD, 1e-9)

	text1 := got[1][models.FeatureInnerText]
	assert.Equal(t, 1.0, *text1.DiD)

	// Control map missing at step 2: no innerText record, other steps intact.
	_, ok := got[2][models.FeatureInnerText]
	assert.False(t, ok)

	// Links: experimental captured only two steps.
	assert.Contains(t, got[0], models.FeatureLinks)
	assert.Contains(t, got[1], models.FeatureLinks)
	assert.NotContains(t, got[2], models.FeatureLinks)
	assert.Equal(t, 0.0, *got[1][models.FeatureLinks].DiD)

	// img only has a baseline.
	for step := 0; step < 3; step++ {
		assert.NotContains(t, got[step], models.FeatureImages)
		assert.NotContains(t, got[step], models.FeatureScreenshot)
	}
}

func TestCompareClickstream_Screenshots(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantBaseline, 0)), solid(green))
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantControl, 0)), solid(green))
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantExperimental, 0)), leftHalf(blue, green))

	// Step 1: control disagrees with baseline everywhere.
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantBaseline, 1)), solid(green))
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantControl, 1)), solid(red))
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantExperimental, 1)), solid(green))

	// Step 2: experimental screenshot missing.
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantBaseline, 2)), solid(green))
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantControl, 2)), solid(green))

	reg := prometheus.NewRegistry()
	c := newComparator(reg)
	got := c.CompareClickstream("a.test", 0, dir)

	shot := got[0][models.FeatureScreenshot]
	require.NotNil(t, shot.DiD)
	assert.Equal(t, 0.5, *shot.DiD)
	assert.Nil(t, shot.ControlDiff)
	assert.Nil(t, shot.ExperimentalDiff)

	sh := got[0][models.FeatureShingle]
	assert.Equal(t, 0.0, *sh.ControlDiff)
	// {G:8} vs {G:4, B:4}: 1 - 4/12.
	assert.InDelta(t, 2.0/3, *sh.ExperimentalDiff, 1e-9)
	assert.InDelta(t, 2.0/3, *sh.DiD, 1e-9)

	// No comparable tiles: positional score absent, shingle DiD still present.
	assert.NotContains(t, got[1], models.FeatureScreenshot)
	require.Contains(t, got[1], models.FeatureShingle)
	assert.Equal(t, -1.0, *got[1][models.FeatureShingle].DiD)

	assert.Empty(t, got[2])

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Comparisons.WithLabelValues(models.FeatureScreenshot, metrics.OutcomeNoTiles)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Comparisons.WithLabelValues(models.FeatureScreenshot, metrics.OutcomeMissing)))
}

func TestCompareClickstream_CorruptArtifacts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FeaturesFile), []byte("{not json"), 0o644))
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantBaseline, 0)), solid(green))
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantControl, 0)), solid(green))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ScreenshotName(models.VariantExperimental, 0)), []byte("png?"), 0o644))

	c := newComparator(prometheus.NewRegistry())
	got := c.CompareClickstream("a.test", 0, dir)

	require.Len(t, got, 3)
	for _, rec := range got {
		assert.Empty(t, rec)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Comparisons.WithLabelValues(models.FeatureInnerText, metrics.OutcomeCorrupt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Comparisons.WithLabelValues(models.FeatureScreenshot, metrics.OutcomeCorrupt)))
}

func TestCompareClickstream_NegativeCounts(t *testing.T) {
	dir := t.TempDir()
	doc := `{
  "innerText": {
    "baseline":     [{"a": 1}, {"a": 1}],
    "control":      [{"a": -5}, {"a": 1}],
    "experimental": [{"a": 1}, {"a": 1}]
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FeaturesFile), []byte(doc), 0o644))

	c := newComparator(prometheus.NewRegistry())
	got := c.CompareClickstream("a.test", 0, dir)

	assert.NotContains(t, got[0], models.FeatureInnerText)
	require.Contains(t, got[1], models.FeatureInnerText)
	assert.Equal(t, 0.0, *got[1][models.FeatureInnerText].DiD)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Comparisons.WithLabelValues(models.FeatureInnerText, metrics.OutcomeCorrupt)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Comparisons.WithLabelValues(models.FeatureInnerText, metrics.OutcomeOK)))
}

func TestCompareClickstream_MismatchedScreenshots(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantBaseline, 0)), solid(green))
	writeImage(t, filepath.Join(dir, ScreenshotName(models.VariantControl, 0)), solid(green))

	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	f, err := os.Create(filepath.Join(dir, ScreenshotName(models.VariantExperimental, 0)))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	c := newComparator(prometheus.NewRegistry())
	got := c.CompareClickstream("a.test", 0, dir)

	assert.NotContains(t, got[0], models.FeatureScreenshot)
	assert.Contains(t, got[0], models.FeatureShingle)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Comparisons.WithLabelValues(models.FeatureScreenshot, metrics.OutcomeInvalid)))
}

func TestCompareSite(t *testing.T) {
	root := t.TempDir()
	for _, id := range []int{2, 0, 10} {
		dir := filepath.Join(root, strconv.Itoa(id))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, FeaturesFile), []byte(threeStepFeatures), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "logs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "3"), nil, 0o644))

	got, err := newComparator(prometheus.NewRegistry()).CompareSite(context.Background(), "a.test", root)
	require.NoError(t, err)

	assert.Len(t, got, 3)
	for _, id := range []int{0, 2, 10} {
		assert.Contains(t, got, id)
		assert.Contains(t, got[id][0], models.FeatureInnerText)
	}
}

func TestCompareSite_MissingDir(t *testing.T) {
	_, err := newComparator(prometheus.NewRegistry()).CompareSite(context.Background(), "a.test", filepath.Join(t.TempDir(), "nope"))

	var ae *models.AnalysisError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, models.ErrCodeMissingArtifact, ae.Code)
}

func TestCompareSite_Canceled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "0"), 0o755))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newComparator(prometheus.NewRegistry()).CompareSite(ctx, "a.test", root)
	assert.ErrorIs(t, err, context.Canceled)
}
