// Package engine resolves a site's domain to a reachable landing URL by
// racing fetch engines over the candidate URLs.
package engine

import (
	"context"
	"time"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}
