package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses, logs and internal error handling.
const (
	// Comparison engine.
	ErrCodePrecondition    = "PRECONDITION_VIOLATION"
	ErrCodeNoComparison    = "NO_COMPARISON"
	ErrCodeMissingArtifact = "MISSING_ARTIFACT"
	ErrCodeCorruptArtifact = "CORRUPT_ARTIFACT"

	// Browser session and crawl.
	ErrCodeBrowserCrash    = "BROWSER_CRASH"
	ErrCodeNavigation      = "NAVIGATION_FAILED"
	ErrCodeLandingPageDown = "LANDING_PAGE_DOWN"
	ErrCodeActionFailed    = "ACTION_FAILED"
	ErrCodeTimeout         = "TIMEOUT"

	// API surface.
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalysisError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type AnalysisError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewAnalysisError creates a new AnalysisError.
func NewAnalysisError(code, message string, err error) *AnalysisError {
	return &AnalysisError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *AnalysisError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// Detail converts any error into an ErrorDetail, defaulting to
// ErrCodeInternal for errors that carry no code.
func Detail(err error) *ErrorDetail {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
