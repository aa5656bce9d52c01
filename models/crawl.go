package models

// ClickableElement is the kind of element a clickstream action targets.
type ClickableElement string

const (
	ElementButton  ClickableElement = "button"
	ElementLink    ClickableElement = "link"
	ElementOnClick ClickableElement = "onclick"
	ElementPointer ClickableElement = "pointer"
)

// ClickableElements lists every element kind in reporting order.
var ClickableElements = []ClickableElement{ElementButton, ElementLink, ElementOnClick, ElementPointer}

// Action is one step of a clickstream: a CSS selector and the kind of
// element it was generated from.
type Action struct {
	Selector string           `json:"selector"`
	Element  ClickableElement `json:"element"`
}

// Clickstream is an ordered sequence of actions replayed identically
// across the baseline, control and experimental sessions.
type Clickstream []Action

// CrawlResult records the outcome of crawling one site.
type CrawlResult struct {
	// URL is the resolved landing page. Empty when resolution failed.
	URL string `json:"url,omitempty"`

	// DataPath is the directory holding the clickstream artifacts.
	DataPath string `json:"data_path"`

	LandingPageDown     bool `json:"landing_page_down"`
	UnexpectedException bool `json:"unexpected_exception"`

	// TimedOut is set by the worker when the crawl exceeded its deadline
	// and had to be abandoned.
	TimedOut bool `json:"timed_out,omitempty"`

	// TotalTime is the crawl wall time in seconds.
	TotalTime float64 `json:"total_time"`

	// Shard is the worker partition that crawled the site.
	Shard int `json:"shard"`

	Clickstreams      []Clickstream            `json:"clickstreams"`
	TraversalFailures map[ClickableElement]int `json:"traversal_failures"`
}

// NewCrawlResult returns a CrawlResult with zeroed failure counters.
func NewCrawlResult(dataPath string) *CrawlResult {
	failures := make(map[ClickableElement]int, len(ClickableElements))
	for _, el := range ClickableElements {
		failures[el] = 0
	}
	return &CrawlResult{
		DataPath:          dataPath,
		Clickstreams:      []Clickstream{},
		TraversalFailures: failures,
	}
}

// Successful reports whether the site produced data worth analyzing: the
// domain resolved, the crawl was not abandoned and nothing unexpected
// failed.
func (r *CrawlResult) Successful() bool {
	return r.URL != "" && !r.TimedOut && !r.UnexpectedException
}

// SiteResult pairs a domain with its crawl result.
type SiteResult struct {
	Domain string       `json:"domain"`
	Result *CrawlResult `json:"result"`
}
