// Package compare turns the artifacts captured for a site into per-step
// difference records.
//
// Each clickstream directory holds a features.json document and one
// screenshot per variant and step (baseline-0.png, control-0.png, ...).
// Missing or unreadable artifacts only remove the affected sub-score.
package compare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/use-agent/cookiediff/freq"
	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/models"
	"github.com/use-agent/cookiediff/shingle"
)

// FeaturesFile is the name of the per-clickstream feature document.
const FeaturesFile = "features.json"

// ScreenshotName returns the file name of a variant's screenshot at step.
func ScreenshotName(variant string, step int) string {
	return fmt.Sprintf("%s-%d.png", variant, step)
}

// Comparator computes DiffRecords from captured artifacts. The zero value
// is not usable; set ChunkSize and ClickstreamLength.
type Comparator struct {
	// ChunkSize is the screenshot tile size in pixels.
	ChunkSize int

	// ClickstreamLength is the maximum number of actions per clickstream.
	// Steps 0..ClickstreamLength are examined for screenshots.
	ClickstreamLength int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (c *Comparator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// CompareSite compares every clickstream under dataPath. Clickstream
// directories are named by their numeric id; other entries are ignored.
func (c *Comparator) CompareSite(ctx context.Context, site, dataPath string) (models.SiteDifferences, error) {
	ids, err := clickstreamIDs(dataPath)
	if err != nil {
		return nil, models.NewAnalysisError(models.ErrCodeMissingArtifact, "list clickstreams of "+site, err)
	}

	out := make(models.SiteDifferences, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dir := filepath.Join(dataPath, strconv.Itoa(id))
		out[id] = c.CompareClickstream(site, id, dir)
	}
	return out, nil
}

// CompareClickstream compares the artifacts of one clickstream directory.
// The result holds a record for every step 0..ClickstreamLength, plus any
// later step present in features.json; a record is empty when nothing
// could be computed for that step.
func (c *Comparator) CompareClickstream(site string, id int, dir string) models.ClickstreamDifferences {
	log := c.logger().With("site", site, "clickstream", id)

	out := make(models.ClickstreamDifferences, c.ClickstreamLength+1)
	for step := 0; step <= c.ClickstreamLength; step++ {
		out[step] = models.DiffRecord{}
	}
	record := func(step int) models.DiffRecord {
		r, ok := out[step]
		if !ok {
			r = models.DiffRecord{}
			out[step] = r
		}
		return r
	}

	if features, err := readFeatures(filepath.Join(dir, FeaturesFile)); err != nil {
		c.featuresFailed(log, err)
	} else {
		for _, feature := range models.FrequencyFeatures {
			c.compareFeature(log, features, feature, record)
		}
	}

	for step := 0; step <= c.ClickstreamLength; step++ {
		c.compareScreenshots(log.With("step", step), dir, step, record(step))
	}
	return out
}

// compareFeature fills one frequency feature into the step records. Steps
// are aligned across variants; the shortest variant bounds the steps
// compared and a null step map skips that step.
func (c *Comparator) compareFeature(log *slog.Logger, f models.Features, feature string, record func(int) models.DiffRecord) {
	baseline, okB := f.Steps(feature, models.VariantBaseline)
	control, okC := f.Steps(feature, models.VariantControl)
	experimental, okE := f.Steps(feature, models.VariantExperimental)
	if !okB || !okC || !okE {
		log.Debug("feature not captured for every variant", "feature", feature)
		c.Metrics.Score(feature, metrics.OutcomeMissing)
		return
	}

	n := min(len(baseline), len(control), len(experimental))
	for step := 0; step < n; step++ {
		b, ctl, e := baseline[step], control[step], experimental[step]
		if b == nil || ctl == nil || e == nil {
			log.Debug("frequency map missing", "step", step, "feature", feature)
			c.Metrics.Score(feature, metrics.OutcomeMissing)
			continue
		}
		if err := freq.Validate(b, ctl, e); err != nil {
			log.Error("frequency map corrupt", "step", step, "feature", feature, "error", err)
			c.Metrics.Score(feature, metrics.OutcomeCorrupt)
			continue
		}
		record(step)[feature] = freq.Compare(b, ctl, e)
		c.Metrics.Score(feature, metrics.OutcomeOK)
	}
}

func (c *Comparator) featuresFailed(log *slog.Logger, err error) {
	outcome := metrics.OutcomeCorrupt
	level := slog.LevelError
	if errors.Is(err, os.ErrNotExist) {
		outcome = metrics.OutcomeMissing
		level = slog.LevelDebug
	}
	log.Log(context.Background(), level, "features unavailable", "feature", FeaturesFile, "error", err)
	for _, feature := range models.FrequencyFeatures {
		c.Metrics.Score(feature, outcome)
	}
}

// compareScreenshots records the positional screenshot score and the
// unordered shingle DiD of one step when all three screenshots exist.
func (c *Comparator) compareScreenshots(log *slog.Logger, dir string, step int, rec models.DiffRecord) {
	sets := make([]*shingle.Set, len(models.Variants))
	for i, variant := range models.Variants {
		path := filepath.Join(dir, ScreenshotName(variant, step))
		if _, err := os.Stat(path); err != nil {
			log.Debug("screenshot missing", "feature", models.FeatureScreenshot, "variant", variant)
			c.Metrics.Score(models.FeatureScreenshot, metrics.OutcomeMissing)
			return
		}
		s, err := shingle.Load(path, c.ChunkSize)
		if err != nil {
			log.Error("screenshot unreadable", "feature", models.FeatureScreenshot, "variant", variant, "error", err)
			c.Metrics.Score(models.FeatureScreenshot, metrics.OutcomeCorrupt)
			return
		}
		sets[i] = s
	}
	baseline, control, experimental := sets[0], sets[1], sets[2]

	diff, err := shingle.CompareWithControl(baseline, control, experimental)
	switch {
	case err == nil:
		rec[models.FeatureScreenshot] = models.DiDOnly(diff)
		c.Metrics.Score(models.FeatureScreenshot, metrics.OutcomeOK)
	case errors.Is(err, shingle.ErrNoComparableTiles):
		log.Warn("no comparable tiles", "feature", models.FeatureScreenshot, "error", err)
		c.Metrics.Score(models.FeatureScreenshot, metrics.OutcomeNoTiles)
	default:
		log.Error("screenshot comparison failed", "feature", models.FeatureScreenshot, "error", err)
		c.Metrics.Score(models.FeatureScreenshot, metrics.OutcomeInvalid)
	}

	rec[models.FeatureShingle] = models.NewScores(
		shingle.ComputeDifference(baseline, control),
		shingle.ComputeDifference(baseline, experimental),
	)
	c.Metrics.Score(models.FeatureShingle, metrics.OutcomeOK)
}

func readFeatures(path string) (models.Features, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f models.Features
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, models.NewAnalysisError(models.ErrCodeCorruptArtifact, "decode "+path, err)
	}
	return f, nil
}

// clickstreamIDs returns the numeric subdirectory names of dataPath in
// ascending order.
func clickstreamIDs(dataPath string) ([]int, error) {
	entries, err := os.ReadDir(dataPath)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
