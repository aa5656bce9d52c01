package engine

import (
	"context"
	"fmt"
)

// RodFetchFunc is the callback that loads a page in a real browser. It is
// injected by the caller to avoid an import cycle (engine/ -> scraper/).
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is the browser-based engine. It is slower than the HTTP probe
// but sees pages that need JavaScript or reject non-browser clients.
type RodEngine struct {
	fetchFunc RodFetchFunc
}

// NewRodEngine creates a RodEngine delegating to fetchFunc.
func NewRodEngine(fetchFunc RodFetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return "rod" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("%s: fetchFunc not configured", e.Name())
	}

	// Clone the request so we don't mutate the caller's copy.
	r := *req
	result, err := e.fetchFunc(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), err)
	}

	result.EngineName = e.Name()
	return result, nil
}
