// Package middleware holds the gin middleware guarding the API routes.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/use-agent/cookiediff/models"
)

// identityKey is the context key under which Auth stores the caller's API
// key for RateLimit.
const identityKey = "api_key"

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: msg},
	})
}
