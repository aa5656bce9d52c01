package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/use-agent/cookiediff/extract"
)

const (
	// maxBody caps the bytes read from a probed page.
	maxBody = 10 << 20

	maxRedirects = 10
)

// HTTPEngine probes a URL over plain HTTP with a Chrome TLS fingerprint.
// It answers most landing pages in a fraction of a browser's time.
type HTTPEngine struct {
	client  *http.Client
	timeout time.Duration
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine whose requests are bounded by
// timeout (0 means no extra bound).
func NewHTTPEngine(timeout time.Duration) *HTTPEngine {
	transport := &http.Transport{
		DialTLSContext:    dialChromeTLS,
		ForceAttemptHTTP2: false,
		Proxy:             http.ProxyFromEnvironment,
	}
	return &HTTPEngine{
		timeout: timeout,
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("engine: http: stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

func dialChromeTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("engine: http: apply tls preset: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (e *HTTPEngine) Name() string { return "http" }

// Fetch GETs req.URL and returns the landing page HTML. Error statuses and
// non-HTML answers fail, so the dispatcher escalates to the browser.
func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("engine: http: build request: %w", err)
	}
	for k, v := range probeHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine: http: %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); resp.StatusCode >= 400 || !isHTMLContentType(ct) {
		return nil, fmt.Errorf("engine: http: %s answered %d (%s)", req.URL, resp.StatusCode, ct)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("engine: http: read %s: %w", req.URL, err)
	}

	return &FetchResult{
		HTML:       string(body),
		Title:      extract.Title(body),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		EngineName: e.Name(),
	}, nil
}

// probeHeaders make the probe look like the browser sessions that follow.
var probeHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Accept":          "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept-Encoding": "identity",
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
