package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/cookiediff/siteurl"
)

// ErrUnresolved is returned by Resolve when no candidate URL of a domain
// produced a usable landing page.
var ErrUnresolved = errors.New("engine: no candidate url answered")

// Dispatcher coordinates multi-engine racing with staged escalation.
// It starts the fastest engine first and progressively escalates to heavier
// engines if earlier ones fail or time out.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	memory           *DomainMemory

	// CandidateTimeout bounds the race for a single candidate URL.
	// Zero means the caller's context is the only bound.
	CandidateTimeout time.Duration

	// Validate, when set, rejects fetch results that loaded but are not
	// usable landing pages. A rejected result counts as an engine failure.
	Validate func(*FetchResult) error

	Logger *slog.Logger
}

// NewDispatcher creates a Dispatcher with the given engines and escalation delays.
// engines[i] starts after escalationDelays[i] from the race beginning.
// The first delay should be 0 (immediate start).
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, memory *DomainMemory) *Dispatcher {
	// Ensure we have at least as many delays as engines.
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		memory:           memory,
	}
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Resolve turns a bare domain into the landing page URL the crawl starts
// from. Candidates are tried in siteurl.Candidates order and the first one
// any engine loads wins. A remembered resolution is re-checked with the
// engine that produced it before the full search runs.
func (d *Dispatcher) Resolve(ctx context.Context, domain string) (string, error) {
	key := siteurl.Domain(domain)
	log := d.logger().With("domain", domain)

	if res, ok := d.memory.Get(key); ok {
		if eng := d.engine(res.Engine); eng != nil {
			result, err := d.fetchWith(ctx, eng, res.URL)
			if err == nil {
				log.Debug("domain memory hit", "engine", res.Engine, "url", result.FinalURL)
				return result.FinalURL, nil
			}
			log.Info("domain memory stale, running full resolution", "engine", res.Engine, "error", err)
		}
		d.memory.Delete(key)
	}

	var lastErr error
	for _, candidate := range siteurl.Candidates(domain) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		result, err := d.Dispatch(ctx, &FetchRequest{URL: candidate, Timeout: d.CandidateTimeout})
		if err != nil {
			log.Debug("candidate failed", "url", candidate, "error", err)
			lastErr = err
			continue
		}
		d.memory.Set(key, Resolution{URL: result.FinalURL, Engine: result.EngineName})
		log.Info("domain resolved", "url", result.FinalURL, "engine", result.EngineName)
		return result.FinalURL, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnresolved, domain, lastErr)
	}
	return "", fmt.Errorf("%w: %s", ErrUnresolved, domain)
}

// Dispatch runs the multi-engine race for the given request and returns
// the first successful result. If all engines fail, it returns the last error.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, errors.New("dispatcher: no engines configured")
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	return d.race(ctx, req)
}

func (d *Dispatcher) engine(name string) Engine {
	for _, eng := range d.engines {
		if eng.Name() == name {
			return eng
		}
	}
	return nil
}

// fetchWith runs a single engine against url under CandidateTimeout.
func (d *Dispatcher) fetchWith(ctx context.Context, eng Engine, url string) (*FetchResult, error) {
	if d.CandidateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.CandidateTimeout)
		defer cancel()
	}
	result, err := eng.Fetch(ctx, &FetchRequest{URL: url, Timeout: d.CandidateTimeout})
	if err != nil {
		return nil, err
	}
	return d.check(result)
}

func (d *Dispatcher) check(result *FetchResult) (*FetchResult, error) {
	if result.FinalURL == "" {
		return nil, fmt.Errorf("%s: empty final url", result.EngineName)
	}
	if d.Validate != nil {
		if err := d.Validate(result); err != nil {
			return nil, fmt.Errorf("%s: %w", result.EngineName, err)
		}
	}
	return result, nil
}

// race runs all engines with staged delays and returns the first success.
func (d *Dispatcher) race(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	type raceResult struct {
		result *FetchResult
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan raceResult, len(d.engines))
	var wg sync.WaitGroup
	log := d.logger()

	for i, eng := range d.engines {
		delay := d.escalationDelays[i]
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			// Wait for the escalation delay or context cancellation.
			if delay > 0 {
				select {
				case <-raceCtx.Done():
					return
				case <-time.After(delay):
				}
			}

			// Check if another engine already won.
			select {
			case <-raceCtx.Done():
				return
			default:
			}

			log.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err == nil {
				result, err = d.check(result)
			}
			if err != nil {
				log.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{result: result, err: err}
		}(eng, delay)
	}

	// Close results channel when all goroutines finish.
	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for rr := range results {
		if rr.err != nil {
			lastErr = rr.err
			continue
		}
		// First success wins; cancel all other engines.
		raceCancel()
		log.Debug("engine won race", "engine", rr.result.EngineName, "url", req.URL)
		return rr.result, nil
	}

	if lastErr == nil {
		if err := ctx.Err(); err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
		}
	}
	return nil, lastErr
}
