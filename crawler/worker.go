package crawler

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/models"
)

// Crawl statuses recorded in metrics.
const (
	StatusOK              = "ok"
	StatusLandingPageDown = "landing_page_down"
	StatusTimedOut        = "timed_out"
	StatusError           = "error"
)

// Queue is the shared site queue and result sink. *store.Store
// implements it.
type Queue interface {
	Pop(ctx context.Context) (string, bool, error)
	SaveResult(ctx context.Context, domain string, r *models.CrawlResult) error
}

// Worker drains the site queue one domain at a time. Several workers, in
// one process or many, may share a queue.
type Worker struct {
	Crawler *Crawler
	Queue   Queue
	Shard   int

	// SiteTimeout abandons a site crawl. Zero disables the limit.
	SiteTimeout time.Duration

	// KillGrace is how long an abandoned crawl may take to return its
	// partial result before it is recorded as killed.
	KillGrace time.Duration

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// Run crawls queued sites until the queue is empty or ctx is done, and
// returns the number of sites crawled.
func (w *Worker) Run(ctx context.Context) (int, error) {
	log := w.logger().With("shard", w.Shard)
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		domain, ok, err := w.Queue.Pop(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			log.Info("queue is empty, exiting", "crawled", n)
			return n, nil
		}

		result := w.CrawlSite(ctx, domain)
		// Save even when ctx is done so the partial result is kept.
		if err := w.Queue.SaveResult(context.WithoutCancel(ctx), domain, result); err != nil {
			return n, err
		}
		n++
	}
}

// CrawlSite crawls one domain under SiteTimeout and stamps the result with
// the shard and wall time.
func (w *Worker) CrawlSite(ctx context.Context, domain string) *models.CrawlResult {
	log := w.logger().With("domain", domain, "shard", w.Shard)
	log.Info("starting crawl")
	start := time.Now()

	crawlCtx, cancel := ctx, context.CancelFunc(func() {})
	if w.SiteTimeout > 0 {
		crawlCtx, cancel = context.WithTimeout(ctx, w.SiteTimeout)
	}
	defer cancel()

	done := make(chan *models.CrawlResult, 1)
	go func() { done <- w.Crawler.Crawl(crawlCtx, domain) }()

	var result *models.CrawlResult
	select {
	case result = <-done:
		if crawlCtx.Err() != nil {
			log.Warn("crawl stopped at deadline")
			result.TimedOut = true
		}
	case <-crawlCtx.Done():
		log.Warn("crawl exceeded deadline, waiting for it to stop", "grace", w.KillGrace)
		select {
		case result = <-done:
		case <-time.After(w.KillGrace):
			log.Error("crawl did not stop within grace period, abandoning it")
			result = models.NewCrawlResult(filepath.Join(w.Crawler.cfg.DataPath, domain))
		}
		result.TimedOut = true
	}

	result.Shard = w.Shard
	result.TotalTime = time.Since(start).Seconds()
	w.Metrics.Crawl(status(result), result.TotalTime)
	log.Info("finished crawl", "url", result.URL, "status", status(result), "seconds", result.TotalTime)
	return result
}

func status(r *models.CrawlResult) string {
	switch {
	case r.TimedOut:
		return StatusTimedOut
	case r.LandingPageDown:
		return StatusLandingPageDown
	case r.UnexpectedException:
		return StatusError
	default:
		return StatusOK
	}
}
