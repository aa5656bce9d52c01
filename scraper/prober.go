package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/cookiediff/engine"
	"github.com/use-agent/cookiediff/models"
)

// Prober is a long-lived browser with a page pool used to check whether a
// candidate landing URL is up. It is safe for concurrent use.
type Prober struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	pagePool rod.Pool[rod.Page]
	stealth  bool
	logger   *slog.Logger
	active   atomic.Int32
}

// NewProber launches the resolution browser.
func (l *Launcher) NewProber() (*Prober, error) {
	lc := l.launcher()
	controlURL, err := lc.Launch()
	if err != nil {
		lc.Cleanup()
		return nil, models.NewAnalysisError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	l.logger.Info("prober browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		lc.Kill()
		lc.Cleanup()
		return nil, models.NewAnalysisError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	return &Prober{
		launcher: lc,
		browser:  browser,
		pagePool: rod.NewPagePool(max(l.cfg.MaxPages, 1)),
		stealth:  l.cfg.Stealth,
		logger:   l.logger,
	}, nil
}

// Fetch loads req.URL in a pooled tab and returns the rendered HTML. It
// matches engine.RodFetchFunc.
func (p *Prober) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	p.logger.Debug("probing candidate", "url", req.URL, "busyTabs", p.active.Add(1))
	defer p.active.Add(-1)

	page, err := p.pagePool.Get(func() (*rod.Page, error) {
		pg, err := p.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return nil, err
		}
		if p.stealth {
			if _, err := pg.EvalOnNewDocument(stealth.JS); err != nil {
				p.logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
			}
		}
		return pg, nil
	})
	if err != nil {
		return nil, models.NewAnalysisError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}

	// Use the page without the request context so cleanup still works
	// after a timeout.
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			p.logger.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		p.pagePool.Put(page)
	}()

	pg := page.Context(ctx)
	if err := pg.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to candidate URL failed")
	}
	if err := pg.WaitLoad(); err != nil {
		p.logger.Debug("load event not observed, proceeding with current DOM", "url", req.URL, "error", err)
	}

	rawHTML, err := pg.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	result := &engine.FetchResult{
		HTML:     rawHTML,
		FinalURL: req.URL,
	}
	if res, err := pg.Eval(`() => [document.title, window.location.href, (performance.getEntriesByType("navigation")[0] || {}).responseStatus || 0]`); err == nil {
		arr := res.Value.Arr()
		if len(arr) == 3 {
			result.Title = arr[0].Str()
			if u := arr[1].Str(); u != "" {
				result.FinalURL = u
			}
			result.StatusCode = arr[2].Int()
		}
	}
	return result, nil
}

// Close drains the page pool and kills the browser process.
func (p *Prober) Close() {
	p.pagePool.Cleanup(func(pg *rod.Page) {
		_ = pg.Close()
	})
	_ = p.browser.Close()
	p.launcher.Kill()
	p.launcher.Cleanup()
}
