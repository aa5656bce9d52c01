package scraper

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/cookiediff/cookiedb"
)

// setupHijack installs a request interceptor applying t to every request
// of the page.
//
// Chrome attaches cookies after interception, so requests whose cookies
// must change are replayed by Go's HTTP client with the Cookie header it
// is given; requests that keep their cookies continue inside the browser.
//
// Returns the running HijackRouter so the caller can Stop it, or nil when
// the treatment changes nothing.
func setupHijack(page *rod.Page, siteURL string, t Treatment, db *cookiedb.Database, proxy string, logger *slog.Logger) *rod.HijackRouter {
	if !t.Active() {
		return nil
	}

	client := replayClient(proxy)
	router := page.HijackRequests()

	// Pattern "*" + empty resourceType = intercept ALL requests, then
	// decide per-request whether to rewrite or continue.
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		reqURL := ctx.Request.URL().String()

		switch t.actionFor(siteURL, reqURL) {
		case keepCookies:
			ctx.ContinueRequest(&proto.FetchContinueRequest{})
			return
		case dropCookies:
			ctx.Request.Req().Header.Del("Cookie")
		case filterCookies:
			header := cookieHeader(page, reqURL)
			header = db.FilterHeader(header, t.Blocklist...)
			if header == "" {
				ctx.Request.Req().Header.Del("Cookie")
			} else {
				ctx.Request.Req().Header.Set("Cookie", header)
			}
		}

		if err := ctx.LoadResponse(client, true); err != nil {
			logger.Debug("replayed request failed", "url", reqURL, "error", err)
			ctx.Response.Fail(proto.NetworkErrorReasonFailed)
		}
	})

	// router.Run() blocks, so it must live in its own goroutine.
	// It will exit when router.Stop() is called.
	go router.Run()

	return router
}

// cookieHeader rebuilds the Cookie header the browser would send to
// reqURL, preserving the browser's cookie order.
func cookieHeader(page *rod.Page, reqURL string) string {
	cookies, err := page.Cookies([]string{reqURL})
	if err != nil {
		return ""
	}
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// replayClient sends intercepted requests without a cookie jar and leaves
// redirects to the browser.
func replayClient(proxy string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
