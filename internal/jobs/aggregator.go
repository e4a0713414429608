package jobs

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ProviderFailure records one provider that was skipped.
type ProviderFailure struct {
	Provider string
	Err      error
}

// Aggregator fans a (keyword, location) query out to every registered
// provider and concatenates the successes in registration order.
type Aggregator struct {
	providers []Provider
}

// NewAggregator registers providers. Registration order is the order
// results are concatenated in.
func NewAggregator(providers ...Provider) *Aggregator {
	return &Aggregator{providers: providers}
}

// Search issues every provider call concurrently and collects settled
// results. Individual failures are skipped, never fatal: an empty result
// with len(failures) == provider count is how "all providers down" shows
// up, and callers must treat the empty aggregate as "no listings found".
func (a *Aggregator) Search(ctx context.Context, keyword, location string) ([]Listing, []ProviderFailure) {
	results := make([][]Listing, len(a.providers))
	errs := make([]error, len(a.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range a.providers {
		g.Go(func() error {
			listings, err := p.Search(gctx, keyword, location)
			results[i] = listings
			errs[i] = err
			return nil // provider errors are collected, not propagated
		})
	}
	_ = g.Wait()

	var listings []Listing
	var failures []ProviderFailure
	for i, p := range a.providers {
		if errs[i] != nil {
			failures = append(failures, ProviderFailure{Provider: p.Name(), Err: errs[i]})
			continue
		}
		listings = append(listings, results[i]...)
	}
	return listings, failures
}

// AllFailed reports whether no provider produced a result.
func (a *Aggregator) AllFailed(failures []ProviderFailure) bool {
	return len(a.providers) > 0 && len(failures) == len(a.providers)
}
