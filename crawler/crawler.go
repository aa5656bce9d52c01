// Package crawler collects the clickstream artifacts the comparator reads.
//
// For every clickstream a baseline session picks random clicks, a control
// session replays them to measure page noise, and an experimental session
// replays them again with the cookie treatment applied. Each step of each
// session leaves a screenshot and a features.json entry behind.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/use-agent/cookiediff/compare"
	"github.com/use-agent/cookiediff/config"
	"github.com/use-agent/cookiediff/models"
	"github.com/use-agent/cookiediff/scraper"
	"github.com/use-agent/cookiediff/siteurl"
)

// ErrLandingPageDown means the site's landing page could not be loaded, or
// loaded without anything to click.
var ErrLandingPageDown = errors.New("crawler: landing page down")

// clickableAttempts is how often an empty clickable element list is
// re-read before the page is considered empty.
const clickableAttempts = 3

// Crawler runs the classification crawl for one site at a time. It is not
// safe for concurrent use.
type Crawler struct {
	sessions  SessionFactory
	resolver  Resolver
	treatment scraper.Treatment
	cfg       config.CrawlConfig
	rng       *rand.Rand
	logger    *slog.Logger
}

// New creates a Crawler. The experimental session of every clickstream runs
// under treatment; baseline and control run untreated.
func New(cfg config.CrawlConfig, sessions SessionFactory, resolver Resolver, treatment scraper.Treatment, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	cfg.GetAttempts = max(cfg.GetAttempts, 1)
	return &Crawler{
		sessions:  sessions,
		resolver:  resolver,
		treatment: treatment,
		cfg:       cfg,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		logger:    logger,
	}
}

// Crawl resolves domain and collects clickstreams until TotalActions
// actions have been recorded. Failures are reported through the result's
// flags, never as an error.
func (c *Crawler) Crawl(ctx context.Context, domain string) *models.CrawlResult {
	result := models.NewCrawlResult(filepath.Join(c.cfg.DataPath, domain))
	log := c.logger.With("domain", domain)

	err := c.classify(ctx, domain, result, log)
	switch {
	case err == nil:
	case errors.Is(err, ErrLandingPageDown):
		log.Warn("landing page is down", "error", err)
		result.LandingPageDown = true
	case ctx.Err() != nil:
		log.Warn("crawl interrupted", "error", err)
	default:
		log.Error("unexpected crawl failure", "error", err)
		result.UnexpectedException = true
	}
	return result
}

func (c *Crawler) classify(ctx context.Context, domain string, result *models.CrawlResult, log *slog.Logger) error {
	url, err := c.resolver.Resolve(ctx, domain)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrLandingPageDown, err)
	}
	result.URL = url
	log.Info("resolved domain", "url", url)

	// The id bound stops sites whose clickstreams keep failing before any
	// action is counted.
	actions := 0
	for id := 1; actions < c.cfg.TotalActions && id <= c.cfg.TotalActions; id++ {
		dir := filepath.Join(result.DataPath, strconv.Itoa(id))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("crawler: create %s: %w", dir, err)
		}

		n, err := c.clickstream(ctx, url, dir, result)
		actions += n
		if err != nil {
			if ctx.Err() != nil || !recoverable(err) {
				return err
			}
			log.Error("session failed, restarting", "clickstream", id, "error", err)
		}
		log.Info("data collected", "clickstream", id, "actions", actions, "total", c.cfg.TotalActions)
	}
	return nil
}

// clickstream generates one clickstream in a baseline session and replays
// it in the control and experimental sessions. It returns the number of
// actions the control session completed, counting the landing page load.
func (c *Crawler) clickstream(ctx context.Context, url, dir string, result *models.CrawlResult) (int, error) {
	generated, err := c.traverse(ctx, url, dir, models.VariantBaseline, nil, scraper.NoTreatment, result)
	if err != nil {
		return 0, err
	}
	result.Clickstreams = append(result.Clickstreams, generated)

	control, err := c.traverse(ctx, url, dir, models.VariantControl, generated, scraper.NoTreatment, result)
	if err != nil {
		return 0, err
	}
	actions := len(control) + 1

	if _, err := c.traverse(ctx, url, dir, models.VariantExperimental, generated, c.treatment, result); err != nil {
		return actions, err
	}
	return actions, nil
}

// traverse runs one session. With a nil replay it generates a clickstream
// of up to ClickstreamLength random clicks, skipping clicks that fail.
// Otherwise it replays the given clickstream and stops at the first failed
// click, counting it against the element kind.
func (c *Crawler) traverse(ctx context.Context, url, dir, variant string, replay models.Clickstream, t scraper.Treatment, result *models.CrawlResult) (models.Clickstream, error) {
	log := c.logger.With("domain", siteurl.FullDomain(url), "clickstream", filepath.Base(dir), "variant", variant)

	s, err := c.sessions(ctx, variant, url, t)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Debug("session close failed", "error", err)
		}
	}()

	selectors, err := c.get(ctx, s, url, log)
	if err != nil {
		return nil, landingDown(err)
	}
	site := siteurl.Domain(url)

	if err := c.capture(ctx, s, dir, variant, 0, log); err != nil {
		return nil, err
	}

	generate := replay == nil
	length := c.cfg.ClickstreamLength
	if !generate {
		length = min(length, len(replay))
	}

	out := models.Clickstream{}
	for i := 0; i < length; {
		if generate && len(selectors) == 0 {
			log.Warn("unable to generate full clickstream", "generated", len(out), "length", length)
			return out, nil
		}

		var action models.Action
		if generate {
			k := c.rng.IntN(len(selectors))
			action = selectors[k]
			selectors = append(selectors[:k], selectors[k+1:]...)
		} else {
			action = replay[i]
		}

		if err := s.Click(ctx, action.Selector, 0); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if generate {
				continue
			}
			log.Warn("failed traversing clickstream", "action", i+1, "length", length, "element", action.Element, "error", err)
			result.TraversalFailures[action.Element]++
			return replay[:i], nil
		}
		log.Debug("completed action", "action", i+1, "length", length)

		// Stay on the site: an off-site click restarts from the landing page.
		if cur, err := s.CurrentURL(ctx); err == nil && siteurl.Domain(cur) != site {
			log.Debug("left site, returning to landing page", "url", cur)
			if _, err := c.get(ctx, s, url, log); err != nil {
				return nil, landingDown(err)
			}
		}

		if err := c.sleep(ctx); err != nil {
			return nil, err
		}
		if err := c.capture(ctx, s, dir, variant, i+1, log); err != nil {
			return nil, err
		}

		if generate {
			out = append(out, action)
			if selectors, err = c.clickables(ctx, s); err != nil {
				return nil, err
			}
		}
		i++
	}

	log.Info("completed clickstream", "length", length)
	if generate {
		return out, nil
	}
	return replay[:length], nil
}

// get navigates to url with GetAttempts tries and returns the clickable
// elements of the loaded page. A page without any is reported as down.
func (c *Crawler) get(ctx context.Context, s Session, url string, log *slog.Logger) ([]models.Action, error) {
	var lastErr error
	loaded := false
	for attempt := 1; attempt <= c.cfg.GetAttempts; attempt++ {
		if lastErr = s.Navigate(ctx, url); lastErr == nil {
			loaded = true
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("failed get attempt", "url", url, "attempt", attempt, "of", c.cfg.GetAttempts, "error", lastErr)
		if attempt < c.cfg.GetAttempts {
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
		}
	}
	if !loaded {
		return nil, fmt.Errorf("%w: %s: %v", scraper.ErrURLDown, url, lastErr)
	}
	if err := c.sleep(ctx); err != nil {
		return nil, err
	}

	selectors, err := c.clickables(ctx, s)
	if err != nil {
		return nil, err
	}
	if len(selectors) == 0 {
		return nil, fmt.Errorf("%w: no clickable elements on %s", scraper.ErrURLDown, url)
	}
	return selectors, nil
}

// clickables reads the clickable elements, retrying while the list is
// empty or the injection fails.
func (c *Crawler) clickables(ctx context.Context, s Session) ([]models.Action, error) {
	var lastErr error
	for attempt := 1; attempt <= clickableAttempts; attempt++ {
		els, err := s.ClickableElements(ctx)
		if err == nil && len(els) > 0 {
			return els, nil
		}
		lastErr = err
		if attempt < clickableAttempts {
			if err := c.sleep(ctx); err != nil {
				return nil, err
			}
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return []models.Action{}, nil
}

// capture records step of variant: the page features into features.json
// and a viewport screenshot. A screenshot that cannot be taken is logged
// and left missing; the comparator skips it.
func (c *Crawler) capture(ctx context.Context, s Session, dir, variant string, step int, log *slog.Logger) error {
	if err := s.ScrollTop(ctx); err != nil {
		log.Debug("scroll to top failed", "step", step, "error", err)
	}

	page, err := s.Features(ctx)
	if err != nil {
		return models.NewAnalysisError(models.ErrCodeActionFailed, fmt.Sprintf("feature extraction failed at step %d", step), err)
	}
	if err := appendFeatures(dir, variant, page); err != nil {
		return err
	}

	path := filepath.Join(dir, compare.ScreenshotName(variant, step))
	if err := s.Screenshot(ctx, path); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error("screenshot failed", "step", step, "error", err)
	}
	return nil
}

// sleep pauses for WaitTime so the page can settle.
func (c *Crawler) sleep(ctx context.Context) error {
	if c.cfg.WaitTime <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.cfg.WaitTime)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func landingDown(err error) error {
	if errors.Is(err, scraper.ErrURLDown) {
		return fmt.Errorf("%w: %v", ErrLandingPageDown, err)
	}
	return err
}

// recoverable reports whether a clickstream failure came from the browser
// session, in which case the crawl moves on to the next clickstream.
func recoverable(err error) bool {
	var ae *models.AnalysisError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Code {
	case models.ErrCodeBrowserCrash, models.ErrCodeNavigation, models.ErrCodeActionFailed, models.ErrCodeTimeout:
		return true
	}
	return false
}
