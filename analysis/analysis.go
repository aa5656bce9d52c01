// Package analysis runs the comparator over one shard of crawled sites and
// publishes the resulting difference records.
package analysis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/cookiediff/compare"
	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/models"
	"github.com/use-agent/cookiediff/webhook"
)

// DifferencesDir is the directory under the output path holding one JSON
// document per shard.
const DifferencesDir = "differences"

// Sink persists the records of one site. *store.Store implements it.
type Sink interface {
	SaveDifferences(ctx context.Context, domain string, site models.SiteDifferences) error
}

// Analyzer compares the sites of one shard.
type Analyzer struct {
	Comparator *compare.Comparator

	// Workers bounds the sites compared at once.
	Workers int

	// OutputPath receives differences/<Shard>.json. Empty skips the file.
	OutputPath string
	Shard      int

	// Sink, Notifier and Metrics are optional.
	Sink     Sink
	Notifier *webhook.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func (a *Analyzer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Successful keeps the sites worth analyzing: the domain resolved to a URL,
// the crawl was not abandoned and raised nothing unexpected.
func Successful(sites []models.SiteResult) []models.SiteResult {
	out := make([]models.SiteResult, 0, len(sites))
	for _, s := range sites {
		if s.Result != nil && s.Result.Successful() {
			out = append(out, s)
		}
	}
	return out
}

// OutputFile returns the shard document path under dir.
func OutputFile(dir string, shard int) string {
	return filepath.Join(dir, DifferencesDir, strconv.Itoa(shard)+".json")
}

// Run compares every successful site in sites. A site whose artifacts
// cannot be listed is logged and left out; only cancellation and output
// failures abort the shard.
func (a *Analyzer) Run(ctx context.Context, sites []models.SiteResult) (models.Differences, error) {
	diffs, err := a.run(ctx, sites)
	if err != nil {
		a.Notifier.Notify(webhook.NewEvent(webhook.EventShardFailed, a.Shard, webhook.ShardSummary{Error: err.Error()}))
		return nil, err
	}
	summary := webhook.ShardSummary{Sites: len(diffs)}
	if a.OutputPath != "" {
		summary.Output = OutputFile(a.OutputPath, a.Shard)
	}
	a.Notifier.Notify(webhook.NewEvent(webhook.EventShardCompleted, a.Shard, summary))
	return diffs, nil
}

func (a *Analyzer) run(ctx context.Context, sites []models.SiteResult) (models.Differences, error) {
	log := a.logger().With("shard", a.Shard)
	todo := Successful(sites)
	log.Info("analyzing shard", "sites", len(todo), "skipped", len(sites)-len(todo))

	var mu sync.Mutex
	diffs := make(models.Differences, len(todo))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(a.Workers, 1))
	for i, site := range todo {
		g.Go(func() error {
			log.Info("analyzing site", "domain", site.Domain, "n", i+1, "of", len(todo))
			d, err := a.Comparator.CompareSite(gctx, site.Domain, site.Result.DataPath)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("site skipped", "domain", site.Domain, "error", err)
				return nil
			}
			mu.Lock()
			diffs[site.Domain] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if a.OutputPath != "" {
		if err := Write(OutputFile(a.OutputPath, a.Shard), diffs); err != nil {
			return nil, err
		}
	}
	if a.Sink != nil {
		for domain, d := range diffs {
			if err := a.Sink.SaveDifferences(ctx, domain, d); err != nil {
				return nil, err
			}
		}
	}
	a.Metrics.Analyzed(len(diffs))
	log.Info("shard analyzed", "sites", len(diffs))
	return diffs, nil
}

// Write stores d as JSON at path, creating parent directories.
func Write(path string, d models.Differences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("analysis: create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("analysis: encode differences: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("analysis: write %s: %w", path, err)
	}
	return nil
}

// Load merges every shard document under dir/differences. A site present
// in several shards keeps the record of the highest-numbered shard.
func Load(dir string) (models.Differences, error) {
	entries, err := os.ReadDir(filepath.Join(dir, DifferencesDir))
	if err != nil {
		return nil, fmt.Errorf("analysis: list shards: %w", err)
	}

	type shardFile struct {
		index int
		path  string
	}
	var files []shardFile
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if e.IsDir() || !ok {
			continue
		}
		n, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		files = append(files, shardFile{n, filepath.Join(dir, DifferencesDir, e.Name())})
	}
	if len(files) == 0 {
		return nil, errors.New("analysis: no shard documents found")
	}
	slices.SortFunc(files, func(a, b shardFile) int { return cmp.Compare(a.index, b.index) })

	out := make(models.Differences)
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("analysis: read %s: %w", f.path, err)
		}
		var d models.Differences
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, models.NewAnalysisError(models.ErrCodeCorruptArtifact, "decode "+f.path, err)
		}
		for domain, site := range d {
			out[domain] = site
		}
	}
	return out, nil
}
