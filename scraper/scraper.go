package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/cookiediff/config"
	"github.com/use-agent/cookiediff/cookiedb"
	"github.com/use-agent/cookiediff/models"
)

// Launcher starts one isolated browser per session so the baseline, control
// and experimental runs never share cookies or cache.
// It is safe for concurrent use.
type Launcher struct {
	cfg     config.BrowserConfig
	cookies *cookiedb.Database
	logger  *slog.Logger
}

// NewLauncher creates a Launcher. cookies is only consulted by class-based
// treatments and may be nil.
func NewLauncher(cfg config.BrowserConfig, cookies *cookiedb.Database, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{cfg: cfg, cookies: cookies, logger: logger}
}

// launcher builds the Chrome command line. Every session gets a fresh
// temporary profile directory.
func (l *Launcher) launcher() *launcher.Launcher {
	lc := launcher.New().
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox).
		Leakless(true)

	if l.cfg.BrowserBin != "" {
		lc = lc.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.DefaultProxy != "" {
		lc = lc.Proxy(l.cfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	lc.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	lc.Delete(flags.Flag("enable-automation"))
	lc.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	lc.Set(flags.Flag("disable-popup-blocking"))
	lc.Set(flags.Flag("disable-prompt-on-repost"))
	lc.Set(flags.Flag("disable-renderer-backgrounding"))
	lc.Set(flags.Flag("disable-background-timer-throttling"))
	lc.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	lc.Set(flags.Flag("disable-component-update"))
	lc.Set(flags.Flag("disable-default-apps"))
	lc.Set(flags.Flag("disable-dev-shm-usage"))
	lc.Set(flags.Flag("disable-extensions"))
	lc.Set(flags.Flag("no-first-run"))
	lc.Set(flags.Flag("hide-scrollbars"))
	lc.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", l.cfg.WindowWidth, l.cfg.WindowHeight))
	return lc
}

// NewSession launches a browser for one variant of a clickstream run on
// siteURL and installs the cookie treatment. The caller must Close it.
func (l *Launcher) NewSession(ctx context.Context, variant, siteURL string, t Treatment) (*Session, error) {
	lc := l.launcher()
	controlURL, err := lc.Context(ctx).Launch()
	if err != nil {
		lc.Cleanup()
		return nil, models.NewAnalysisError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		lc.Kill()
		lc.Cleanup()
		return nil, models.NewAnalysisError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	s := &Session{
		variant:  variant,
		launcher: lc,
		browser:  browser,
		cfg:      l.cfg,
		logger:   l.logger.With("variant", variant),
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, models.NewAnalysisError(models.ErrCodeBrowserCrash, "failed to open page", err)
	}
	s.page = page

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             l.cfg.WindowWidth,
		Height:            l.cfg.WindowHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		s.Close()
		return nil, models.NewAnalysisError(models.ErrCodeBrowserCrash, "failed to set viewport", err)
	}

	// Pin the language so the three sessions are served the same content.
	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{"Accept-Language": "en-US,en;q=0.9"}),
	}).Call(page); err != nil {
		s.logger.Warn("failed to set extra headers", "error", err)
	}

	if l.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			s.logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	s.router = setupHijack(page, siteURL, t, l.cookies, l.cfg.DefaultProxy, s.logger)
	s.logger.Debug("session started", "site", siteURL, "treatment", t.String())
	return s, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
