package usecase

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pakbuy/backend/internal/domain"
)

// OrchestratorConfig holds fetch fan-out configuration
type OrchestratorConfig struct {
	// AdapterTimeout bounds a single fetch attempt
	AdapterTimeout time.Duration
	// RetryAttempts is the number of attempts per adapter
	RetryAttempts int
	// RetryBackoff is the base backoff; doubled on each retry
	RetryBackoff time.Duration
}

// Orchestrator fans a query out to all site adapters concurrently under a
// shared deadline and collects whatever completes. A failing or timed-out
// adapter never blocks or corrupts results from the others.
type Orchestrator struct {
	adapters       []domain.SiteAdapter
	adapterTimeout time.Duration
	retryAttempts  int
	retryBackoff   time.Duration
}

// NewOrchestrator creates an orchestrator over the given adapters
func NewOrchestrator(adapters []domain.SiteAdapter, config OrchestratorConfig) *Orchestrator {
	timeout := config.AdapterTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	attempts := config.RetryAttempts
	if attempts <= 0 {
		attempts = 2
	}
	backoff := config.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &Orchestrator{
		adapters:       adapters,
		adapterTimeout: timeout,
		retryAttempts:  attempts,
		retryBackoff:   backoff,
	}
}

// SourceNames lists the sources a fetch for this query would try,
// excluding skipSource
func (o *Orchestrator) SourceNames(skipSource string) []string {
	names := make([]string, 0, len(o.adapters))
	for _, adapter := range o.adapters {
		if adapter.Name() == skipSource {
			continue
		}
		names = append(names, adapter.Name())
	}
	return names
}

// fetchResult holds one adapter's outcome; errors are carried here so the
// errgroup never cancels sibling fetches
type fetchResult struct {
	listings []domain.RawListing
	err      error
}

// Fetch runs one fetch task per adapter and returns the union of completed
// batches. partial is true when at least one adapter contributed nothing.
// skipSource excludes the marketplace the user is already on.
// The only error returned is domain.ErrAllSourcesFailed.
func (o *Orchestrator) Fetch(ctx context.Context, query, skipSource string) (listings []domain.RawListing, partial bool, failed []string, err error) {
	active := make([]domain.SiteAdapter, 0, len(o.adapters))
	for _, adapter := range o.adapters {
		if adapter.Name() == skipSource {
			continue
		}
		active = append(active, adapter)
	}
	if len(active) == 0 {
		return nil, false, nil, domain.ErrAllSourcesFailed
	}

	// Per-slot results keep collection order independent of completion
	// order; workers always return nil so one failure cannot cancel the rest
	results := make([]fetchResult, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, adapter := range active {
		g.Go(func() error {
			results[i] = o.fetchOne(gctx, adapter, query)
			return nil
		})
	}
	_ = g.Wait() // errors captured in fetchResult.err

	for i, result := range results {
		if result.err != nil {
			log.Printf("[FETCH] %s failed: %v", active[i].Name(), result.err)
			failed = append(failed, active[i].Name())
			partial = true
			continue
		}
		listings = append(listings, result.listings...)
	}

	if len(failed) == len(active) {
		return nil, true, failed, domain.ErrAllSourcesFailed
	}
	return listings, partial, failed, nil
}

// fetchOne fetches from a single adapter, retrying transient failures with
// bounded exponential backoff until the shared deadline cancels it
func (o *Orchestrator) fetchOne(ctx context.Context, adapter domain.SiteAdapter, query string) fetchResult {
	var lastErr error
	backoff := o.retryBackoff

	for attempt := 1; attempt <= o.retryAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, o.adapterTimeout)
		listings, err := adapter.Search(attemptCtx, query)
		cancel()

		if err == nil {
			log.Printf("[FETCH] %s: %d listings (attempt %d)", adapter.Name(), len(listings), attempt)
			return fetchResult{listings: listings}
		}
		lastErr = err

		if ctx.Err() != nil {
			// Shared deadline elapsed; the result is discarded upstream
			return fetchResult{err: ctx.Err()}
		}
		if attempt < o.retryAttempts {
			log.Printf("[FETCH] %s attempt %d failed, retrying in %s: %v", adapter.Name(), attempt, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return fetchResult{err: ctx.Err()}
			}
			backoff *= 2
		}
	}
	return fetchResult{err: lastErr}
}
