package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cookiediff/metrics"
)

// Metrics counts requests by matched route and status code. Unmatched
// routes are counted under "unmatched".
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
