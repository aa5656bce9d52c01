package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cookiediff/cache"
	"github.com/use-agent/cookiediff/compare"
	"github.com/use-agent/cookiediff/models"
)

// Sites returns a handler for GET /api/v1/sites.
// ?successful=true lists only sites eligible for analysis.
func Sites(st Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, err := st.Results(c.Request.Context())
		if err != nil {
			respondError(c, asTimeout(err))
			return
		}
		onlyOK := c.Query("successful") == "true"

		sites := make([]models.SiteStatus, 0, len(results))
		for _, r := range results {
			s := models.NewSiteStatus(r.Domain, r.Result)
			if onlyOK && !s.Successful {
				continue
			}
			sites = append(sites, s)
		}
		c.JSON(http.StatusOK, models.SitesResponse{Success: true, Total: len(sites), Sites: sites})
	}
}

// SiteDifferences returns a handler for GET /api/v1/sites/:domain/differences.
// Records are served from cc when fresh; ?refresh=true drops the cached
// entry and reads the database again.
func SiteDifferences(st Store, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		domain := strings.ToLower(strings.TrimSpace(c.Param("domain")))
		if domain == "" {
			invalidInput(c, "domain is required")
			return
		}

		if cc != nil && c.Query("refresh") == "true" {
			cc.Invalidate(domain)
		}
		if cc != nil {
			if diffs, hit := cc.Get(domain); hit {
				c.JSON(http.StatusOK, differencesResponse(domain, diffs, "hit"))
				return
			}
		}

		ctx := c.Request.Context()
		result, err := st.Result(ctx, domain)
		if err != nil {
			respondError(c, asTimeout(err))
			return
		}
		if result == nil {
			respondError(c, models.NewAnalysisError(models.ErrCodeNotFound, "site "+domain+" was not crawled", nil))
			return
		}
		diffs, err := st.Differences(ctx, domain)
		if err != nil {
			respondError(c, asTimeout(err))
			return
		}

		status := ""
		if cc != nil {
			cc.Set(domain, diffs)
			status = "miss"
		}
		c.JSON(http.StatusOK, differencesResponse(domain, diffs, status))
	}
}

func differencesResponse(domain string, diffs models.SiteDifferences, cacheStatus string) models.DifferencesResponse {
	var summaries []models.Summary
	for _, f := range compare.SummaryFeatures {
		if s, ok := compare.Summarize(domain, diffs, f); ok {
			summaries = append(summaries, s)
		}
	}
	return models.DifferencesResponse{
		Success:     true,
		Domain:      domain,
		Differences: diffs,
		Summaries:   summaries,
		CacheStatus: cacheStatus,
	}
}
