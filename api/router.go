package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/cookiediff/api/handler"
	"github.com/use-agent/cookiediff/api/middleware"
	"github.com/use-agent/cookiediff/cache"
	"github.com/use-agent/cookiediff/config"
	"github.com/use-agent/cookiediff/metrics"
)

// Deps are the collaborators the routes serve from.
type Deps struct {
	Store   handler.Store
	Cache   *cache.Cache
	Metrics *metrics.Metrics

	// Gatherer backs /metrics. Nil uses the default Prometheus gatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics endpoints are intentionally outside auth so monitoring
// probes always work.
func NewRouter(cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics(deps.Metrics))
	r.MaxMultipartMemory = cfg.Server.MaxUploadBytes

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(deps.Store, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Ad-hoc comparisons
	protected.POST("/compare/features", handler.CompareFeatures(deps.Metrics))
	protected.POST("/compare/screenshots", handler.CompareScreenshots(cfg.Analysis.ChunkSize, cfg.Server.MaxUploadBytes, deps.Metrics))

	// Crawl results and stored differences
	protected.GET("/sites", handler.Sites(deps.Store))
	protected.GET("/sites/:domain/differences", handler.SiteDifferences(deps.Store, deps.Cache))

	return r
}
