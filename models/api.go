package models

// CompareFeaturesRequest is the body of POST /api/v1/compare/features:
// one frequency map per session variant.
type CompareFeaturesRequest struct {
	// Feature labels the comparison in responses and metrics: one of
	// innerText, links or img. Defaults to "innerText".
	Feature string `json:"feature,omitempty" binding:"omitempty,oneof=innerText links img"`

	Baseline     map[string]int `json:"baseline" binding:"required"`
	Control      map[string]int `json:"control" binding:"required"`
	Experimental map[string]int `json:"experimental" binding:"required"`
}

// Defaults fills zero-value fields.
func (r *CompareFeaturesRequest) Defaults() {
	if r.Feature == "" {
		r.Feature = FeatureInnerText
	}
}

// CompareResponse is the response of the compare endpoints.
type CompareResponse struct {
	Success bool `json:"success"`

	// Scores maps feature name to its comparison. Screenshot comparisons
	// carry "screenshot" (positional, did only) and "shingle".
	Scores DiffRecord `json:"scores,omitempty"`

	// ChunkSize is the tile size screenshot comparisons used.
	ChunkSize int `json:"chunk_size,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// SitesResponse is the response of GET /api/v1/sites.
type SitesResponse struct {
	Success bool         `json:"success"`
	Total   int          `json:"total"`
	Sites   []SiteStatus `json:"sites"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// SiteStatus is the crawl outcome of one site as listed by the API.
type SiteStatus struct {
	Domain              string  `json:"domain"`
	URL                 string  `json:"url,omitempty"`
	Successful          bool    `json:"successful"`
	LandingPageDown     bool    `json:"landing_page_down"`
	UnexpectedException bool    `json:"unexpected_exception"`
	TimedOut            bool    `json:"timed_out"`
	Clickstreams        int     `json:"clickstreams"`
	Shard               int     `json:"shard"`
	TotalTime           float64 `json:"total_time"`
}

// NewSiteStatus condenses a crawl result.
func NewSiteStatus(domain string, r *CrawlResult) SiteStatus {
	s := SiteStatus{Domain: domain}
	if r == nil {
		return s
	}
	s.URL = r.URL
	s.Successful = r.Successful()
	s.LandingPageDown = r.LandingPageDown
	s.UnexpectedException = r.UnexpectedException
	s.TimedOut = r.TimedOut
	s.Clickstreams = len(r.Clickstreams)
	s.Shard = r.Shard
	s.TotalTime = r.TotalTime
	return s
}

// DifferencesResponse is the response of
// GET /api/v1/sites/:domain/differences.
type DifferencesResponse struct {
	Success     bool            `json:"success"`
	Domain      string          `json:"domain,omitempty"`
	Differences SiteDifferences `json:"differences,omitempty"`
	Summaries   []Summary       `json:"summaries,omitempty"`

	// CacheStatus is "hit" or "miss".
	CacheStatus string       `json:"cache_status,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request without a more
// specific response type.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "healthy" or "degraded"
	Uptime  string `json:"uptime"`
	Version string `json:"version"`

	// Queued is the number of sites still waiting to be crawled.
	Queued int `json:"queued"`
}
