package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cookiediff/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports the crawl queue length and degrades status when the database
// cannot be read.
func Health(st Store, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:  "healthy",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: Version,
		}
		n, err := st.QueueLen(c.Request.Context())
		if err != nil {
			resp.Status = "degraded"
		}
		resp.Queued = n
		c.JSON(http.StatusOK, resp)
	}
}
