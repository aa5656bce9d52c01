// Package metrics exposes Prometheus counters for comparisons, crawls and
// analysis shards.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cookiediff"

// Outcome labels for Comparisons.
const (
	OutcomeOK      = "ok"
	OutcomeMissing = "missing"
	OutcomeCorrupt = "corrupt"
	OutcomeNoTiles = "no_tiles"
	OutcomeInvalid = "invalid"
)

// FeatureRequest labels comparisons rejected before a feature is known.
const FeatureRequest = "request"

// Metrics groups every collector the service records.
type Metrics struct {
	// Comparisons counts sub-score computations.
	// Labels: feature, outcome (ok, missing, corrupt, no_tiles, invalid)
	Comparisons *prometheus.CounterVec

	// Crawls counts finished site crawls.
	// Labels: status (ok, landing_page_down, timed_out, error)
	Crawls *prometheus.CounterVec

	// CrawlSeconds measures the wall time of one site crawl.
	CrawlSeconds prometheus.Histogram

	// SitesAnalyzed counts sites compared by analysis shards.
	SitesAnalyzed prometheus.Counter

	// Requests counts API requests by route and status code.
	Requests *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Comparisons: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compare",
			Name:      "scores_total",
			Help:      "Sub-score computations by feature and outcome.",
		}, []string{"feature", "outcome"}),
		Crawls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "sites_total",
			Help:      "Finished site crawls by status.",
		}, []string{"status"}),
		CrawlSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "duration_seconds",
			Help:      "Wall time of one site crawl.",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		SitesAnalyzed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "sites_total",
			Help:      "Sites compared by analysis shards.",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// Score records one sub-score outcome. Safe on a nil receiver.
func (m *Metrics) Score(feature, outcome string) {
	if m == nil {
		return
	}
	m.Comparisons.WithLabelValues(feature, outcome).Inc()
}

// Crawl records one finished crawl. Safe on a nil receiver.
func (m *Metrics) Crawl(status string, seconds float64) {
	if m == nil {
		return
	}
	m.Crawls.WithLabelValues(status).Inc()
	m.CrawlSeconds.Observe(seconds)
}

// Analyzed records n compared sites. Safe on a nil receiver.
func (m *Metrics) Analyzed(n int) {
	if m == nil {
		return
	}
	m.SitesAnalyzed.Add(float64(n))
}
