package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/cookiediff/freq"
	"github.com/use-agent/cookiediff/metrics"
	"github.com/use-agent/cookiediff/models"
	"github.com/use-agent/cookiediff/shingle"
)

// CompareFeatures returns a handler for POST /api/v1/compare/features.
// It scores one feature captured by the three sessions.
func CompareFeatures(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CompareFeaturesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			m.Score(metrics.FeatureRequest, metrics.OutcomeInvalid)
			invalidInput(c, err.Error())
			return
		}
		req.Defaults()
		if err := freq.Validate(req.Baseline, req.Control, req.Experimental); err != nil {
			m.Score(req.Feature, metrics.OutcomeInvalid)
			invalidInput(c, err.Error())
			return
		}

		scores := freq.Compare(req.Baseline, req.Control, req.Experimental)
		m.Score(req.Feature, metrics.OutcomeOK)
		c.JSON(http.StatusOK, models.CompareResponse{
			Success: true,
			Scores:  models.DiffRecord{req.Feature: scores},
		})
	}
}

// CompareScreenshots returns a handler for POST /api/v1/compare/screenshots.
//
// Multipart fields:
//
//	baseline      one image
//	control       one or more images
//	experimental  one image
//	chunk_size    tile size in pixels (optional)
//
// The response carries the positional "screenshot" score and the unordered
// "shingle" scores against the first control. A positional score that
// cannot be measured because every tile is noisy is left out.
func CompareScreenshots(defaultChunkSize int, maxUpload int64, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxUpload > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUpload)
		}
		form, err := c.MultipartForm()
		if err != nil {
			invalidInput(c, "invalid multipart form: "+err.Error())
			return
		}

		chunk := defaultChunkSize
		if v := c.PostForm("chunk_size"); v != "" {
			chunk, err = strconv.Atoi(v)
			if err != nil || chunk <= 0 {
				invalidInput(c, fmt.Sprintf("chunk_size must be a positive integer, got %q", v))
				return
			}
		}

		baseline, err := singleSet(form, "baseline", chunk)
		if err != nil {
			respondError(c, err)
			return
		}
		experimental, err := singleSet(form, "experimental", chunk)
		if err != nil {
			respondError(c, err)
			return
		}
		controls, err := sets(form, "control", chunk)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(controls) == 0 {
			invalidInput(c, `missing file field "control"`)
			return
		}

		record := models.DiffRecord{}
		positional, err := shingle.CompareWithControls(baseline, controls, experimental)
		switch {
		case err == nil:
			record[models.FeatureScreenshot] = models.DiDOnly(positional)
			m.Score(models.FeatureScreenshot, metrics.OutcomeOK)
		case errors.Is(err, shingle.ErrNoComparableTiles):
			m.Score(models.FeatureScreenshot, metrics.OutcomeNoTiles)
		default:
			m.Score(models.FeatureScreenshot, metrics.OutcomeInvalid)
			respondError(c, err)
			return
		}
		record[models.FeatureShingle] = models.NewScores(
			shingle.ComputeDifference(baseline, controls[0]),
			shingle.ComputeDifference(baseline, experimental),
		)
		m.Score(models.FeatureShingle, metrics.OutcomeOK)

		c.JSON(http.StatusOK, models.CompareResponse{
			Success:   true,
			Scores:    record,
			ChunkSize: chunk,
		})
	}
}

func singleSet(form *multipart.Form, field string, chunk int) (*shingle.Set, error) {
	s, err := sets(form, field, chunk)
	if err != nil {
		return nil, err
	}
	switch len(s) {
	case 0:
		return nil, models.NewAnalysisError(models.ErrCodeInvalidInput, fmt.Sprintf("missing file field %q", field), nil)
	case 1:
		return s[0], nil
	default:
		return nil, models.NewAnalysisError(models.ErrCodeInvalidInput, fmt.Sprintf("field %q takes exactly one file", field), nil)
	}
}

func sets(form *multipart.Form, field string, chunk int) ([]*shingle.Set, error) {
	files := form.File[field]
	out := make([]*shingle.Set, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, models.NewAnalysisError(models.ErrCodeInvalidInput, "open upload "+fh.Filename, err)
		}
		s, err := shingle.Read(f, fh.Filename, chunk)
		f.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
