package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/use-agent/cookiediff/engine"
	"github.com/use-agent/cookiediff/extract"
	"github.com/use-agent/cookiediff/models"
	"github.com/use-agent/cookiediff/scraper"
)

// Session is the browser the crawler drives for one variant of one
// clickstream. *scraper.Session implements it.
type Session interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	ClickableElements(ctx context.Context) ([]models.Action, error)
	Click(ctx context.Context, selector string, settle time.Duration) error
	ScrollTop(ctx context.Context) error
	Screenshot(ctx context.Context, path string) error
	Features(ctx context.Context) (models.PageFeatures, error)
	Close() error
}

// SessionFactory starts a fresh, isolated session.
type SessionFactory func(ctx context.Context, variant, siteURL string, t scraper.Treatment) (Session, error)

// Resolver turns a bare domain into a landing page URL.
// *engine.Dispatcher implements it.
type Resolver interface {
	Resolve(ctx context.Context, domain string) (string, error)
}

var _ Resolver = (*engine.Dispatcher)(nil)

// Sessions adapts a scraper.Launcher to a SessionFactory.
func Sessions(l *scraper.Launcher) SessionFactory {
	return func(ctx context.Context, variant, siteURL string, t scraper.Treatment) (Session, error) {
		s, err := l.NewSession(ctx, variant, siteURL, t)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// ValidateLanding rejects fetched pages that offer nothing to click, which
// the crawl treats the same as a page that did not load.
func ValidateLanding(r *engine.FetchResult) error {
	if extract.CountClickable(r.HTML) == 0 {
		return fmt.Errorf("%w: no clickable elements on %s", scraper.ErrURLDown, r.FinalURL)
	}
	return nil
}
