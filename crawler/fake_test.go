package crawler

import (
	"context"
	"errors"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/cookiediff/models"
	"github.com/use-agent/cookiediff/scraper"
)

// fakePage is one document of a fakeSite.
type fakePage struct {
	text   string
	clicks map[string]string // selector -> destination URL
	kinds  map[string]models.ClickableElement
}

func (p fakePage) actions() []models.Action {
	sels := make([]string, 0, len(p.clicks))
	for sel := range p.clicks {
		sels = append(sels, sel)
	}
	slices.Sort(sels)
	out := make([]models.Action, 0, len(sels))
	for _, sel := range sels {
		kind := p.kinds[sel]
		if kind == "" {
			kind = models.ElementLink
		}
		out = append(out, models.Action{Selector: sel, Element: kind})
	}
	return out
}

type fakeSite map[string]fakePage

type sessionCall struct {
	variant   string
	treatment scraper.Treatment
}

// fakeBrowser builds fakeSessions over a site and records what it was
// asked to do.
type fakeBrowser struct {
	site fakeSite

	// failClick makes Click fail for (variant, selector).
	failClick func(variant, selector string) bool
	// failStart makes the nth (0-based) session start fail.
	failStart func(n int) error
	// stall makes Navigate wait for the context to end. ignore, when set,
	// makes it ignore the context and wait for ignore to close instead.
	stall  bool
	ignore chan struct{}

	mu          sync.Mutex
	sessions    []sessionCall
	navigations []string
}

func (b *fakeBrowser) factory(ctx context.Context, variant, siteURL string, t scraper.Treatment) (Session, error) {
	b.mu.Lock()
	n := len(b.sessions)
	b.sessions = append(b.sessions, sessionCall{variant: variant, treatment: t})
	b.mu.Unlock()
	if b.failStart != nil {
		if err := b.failStart(n); err != nil {
			return nil, err
		}
	}
	return &fakeSession{browser: b, variant: variant}, nil
}

type fakeSession struct {
	browser *fakeBrowser
	variant string
	url     string
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	b := s.browser
	b.mu.Lock()
	b.navigations = append(b.navigations, url)
	b.mu.Unlock()
	if b.ignore != nil {
		<-b.ignore
		return errors.New("browser gone")
	}
	if b.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	if _, ok := b.site[url]; !ok {
		return errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	s.url = url
	return nil
}

func (s *fakeSession) CurrentURL(context.Context) (string, error) { return s.url, nil }

func (s *fakeSession) ClickableElements(context.Context) ([]models.Action, error) {
	return s.browser.site[s.url].actions(), nil
}

func (s *fakeSession) Click(_ context.Context, selector string, _ time.Duration) error {
	if f := s.browser.failClick; f != nil && f(s.variant, selector) {
		return models.NewAnalysisError(models.ErrCodeActionFailed, "element not found", nil)
	}
	dest, ok := s.browser.site[s.url].clicks[selector]
	if !ok {
		return models.NewAnalysisError(models.ErrCodeActionFailed, "element not found", nil)
	}
	s.url = dest
	return nil
}

func (s *fakeSession) ScrollTop(context.Context) error { return nil }

func (s *fakeSession) Screenshot(_ context.Context, path string) error {
	return os.WriteFile(path, []byte(s.url), 0o644)
}

func (s *fakeSession) Features(context.Context) (models.PageFeatures, error) {
	p := s.browser.site[s.url]
	return models.PageFeatures{
		InnerText: p.text,
		Links:     slices.Sorted(maps.Values(p.clicks)),
	}, nil
}

func (s *fakeSession) Close() error { return nil }

// fakeResolver answers every domain with its https landing page unless the
// domain is listed in down.
type fakeResolver struct {
	down map[string]bool
}

func (r fakeResolver) Resolve(_ context.Context, domain string) (string, error) {
	if r.down[domain] {
		return "", errors.New("engine: no candidate url answered")
	}
	return "https://" + domain + "/", nil
}

// exampleSite is a three-page site.
func exampleSite() fakeSite {
	return fakeSite{
		"https://example.com/": {
			text:   "Welcome to example\nnews sports",
			clicks: map[string]string{"#news": "https://example.com/news", "#sports": "https://example.com/sports"},
		},
		"https://example.com/news": {
			text:   "news today",
			clicks: map[string]string{"#home": "https://example.com/", "#sports": "https://example.com/sports"},
		},
		"https://example.com/sports": {
			text:   strings.Repeat("score ", 3),
			clicks: map[string]string{"#home": "https://example.com/", "#news": "https://example.com/news"},
		},
	}
}
