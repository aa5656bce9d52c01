package scraper

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/cookiediff/config"
	"github.com/use-agent/cookiediff/extract"
	"github.com/use-agent/cookiediff/models"
)

//go:embed js/clickable.js
var clickableJS string

//go:embed js/features.js
var featuresJS string

// screenshotAttempts is how often a failed viewport capture is retried.
const screenshotAttempts = 3

// ErrURLDown reports a URL that could not be loaded or offered nothing to
// click.
var ErrURLDown = errors.New("scraper: url down")

// Session is one browser driving one variant of a clickstream run.
// It is not safe for concurrent use.
type Session struct {
	variant  string
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	cfg      config.BrowserConfig
	logger   *slog.Logger
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.cfg.PageLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PageLoadTimeout)
		defer cancel()
	}

	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation failed")
	}
	if err := p.WaitLoad(); err != nil {
		s.logger.Debug("load event not observed, proceeding with current DOM", "url", url, "error", err)
	}
	return nil
}

// CurrentURL returns the address of the loaded document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", categorizeError(err, "failed to read location")
	}
	return res.Value.Str(), nil
}

// ScrollTop scrolls the viewport back to the top so screenshots of the
// three sessions line up.
func (s *Session) ScrollTop(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`() => window.scrollTo(0, 0)`)
	return err
}

// ClickableElements lists the visible clickable elements of the page with
// a selector for each.
func (s *Session) ClickableElements(ctx context.Context) ([]models.Action, error) {
	res, err := s.page.Context(ctx).Eval(clickableJS)
	if err != nil {
		return nil, models.NewAnalysisError(models.ErrCodeActionFailed, "clickable element injection failed", err)
	}
	var raw []models.Action
	if err := res.Value.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("scraper: decode clickable elements: %w", err)
	}
	return filterClickables(raw), nil
}

// Screenshot writes a PNG of the viewport to path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	p := s.page.Context(ctx)
	var lastErr error
	for attempt := 1; attempt <= screenshotAttempts; attempt++ {
		img, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err == nil {
			return os.WriteFile(path, img, 0o644)
		}
		lastErr = err
		s.logger.Warn("screenshot failed", "attempt", attempt, "of", screenshotAttempts, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("scraper: screenshot %s: %w", path, lastErr)
}

// Features reads page text, links and images through script injection,
// falling back to parsing the serialized DOM.
func (s *Session) Features(ctx context.Context) (models.PageFeatures, error) {
	p := s.page.Context(ctx)
	res, err := p.Eval(featuresJS)
	if err == nil {
		var f models.PageFeatures
		if err = res.Value.Unmarshal(&f); err == nil {
			return f, nil
		}
	}
	s.logger.Warn("feature injection failed, parsing DOM instead", "error", err)

	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return models.PageFeatures{}, categorizeError(htmlErr, "failed to read page HTML")
	}
	pageURL, _ := s.CurrentURL(ctx)
	return extract.FromHTML(rawHTML, pageURL)
}

// Close stops interception, kills the browser and removes its profile.
func (s *Session) Close() error {
	if s.router != nil {
		_ = s.router.Stop()
	}
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}

// filterClickables drops entries with an unknown element kind or a selector
// that does not parse.
func filterClickables(raw []models.Action) []models.Action {
	out := make([]models.Action, 0, len(raw))
	for _, a := range raw {
		switch a.Element {
		case models.ElementButton, models.ElementLink, models.ElementOnClick, models.ElementPointer:
		default:
			continue
		}
		if !extract.ValidSelector(a.Selector) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// categorizeError wraps raw errors into typed AnalysisErrors.
func categorizeError(err error, msg string) *models.AnalysisError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewAnalysisError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewAnalysisError(models.ErrCodeTimeout, "session canceled", err)
	default:
		return models.NewAnalysisError(models.ErrCodeNavigation, msg, err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
