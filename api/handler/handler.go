// Package handler implements the HTTP handlers of the API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cookiediff/models"
)

// Store is the read side of the crawl database the handlers serve.
// *store.Store implements it.
type Store interface {
	QueueLen(ctx context.Context) (int, error)
	Results(ctx context.Context) ([]models.SiteResult, error)
	Result(ctx context.Context, domain string) (*models.CrawlResult, error)
	Differences(ctx context.Context, domain string) (models.SiteDifferences, error)
}

// respondError maps an error to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	detail := models.Detail(err)
	c.JSON(statusFor(detail.Code), models.ErrorResponse{Success: false, Error: detail})
}

func invalidInput(c *gin.Context, msg string) {
	respondError(c, models.NewAnalysisError(models.ErrCodeInvalidInput, msg, nil))
}

// statusFor translates error codes to HTTP status codes.
func statusFor(code string) int {
	switch code {
	case models.ErrCodeInvalidInput, models.ErrCodeCorruptArtifact:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound, models.ErrCodeMissingArtifact:
		return http.StatusNotFound // 404
	case models.ErrCodePrecondition, models.ErrCodeNoComparison:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation, models.ErrCodeLandingPageDown:
		return http.StatusBadGateway // 502
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}

// asTimeout tags context deadline errors so they map to 504.
func asTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewAnalysisError(models.ErrCodeTimeout, "request timed out", err)
	}
	return err
}
