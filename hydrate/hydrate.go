// Package hydrate resolves saved keys that have no cached record by fetching
// them from the catalog, then back-fills the record cache in one write.
package hydrate

import (
	"context"

	"github.com/ptgott/savedsync/catalog"
	"github.com/ptgott/savedsync/metrics"
	"github.com/ptgott/savedsync/saved"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RecordCache is where hydrated records are written
type RecordCache interface {
	PutMany(records []saved.Record) error
}

// Hydrator fetches missing records concurrently
type Hydrator struct {
	fetcher     catalog.Fetcher
	cache       RecordCache
	concurrency int
	metrics     *metrics.Metrics
}

// New returns a Hydrator that runs at most concurrency fetches at once. A
// concurrency below one means no limit.
func New(fetcher catalog.Fetcher, cache RecordCache, concurrency int, m *metrics.Metrics) *Hydrator {
	if m == nil {
		m = metrics.Nop()
	}
	return &Hydrator{
		fetcher:     fetcher,
		cache:       cache,
		concurrency: concurrency,
		metrics:     m,
	}
}

// fetchResult holds the outcome for one key. Each goroutine writes only its
// own slot.
type fetchResult struct {
	record saved.Record
	ok     bool
}

// Hydrate fetches a record for each key and waits for every fetch to settle.
// A failed fetch only drops its own key from the result; that key stays
// uncached and is tried again on the next load. Resolved records are written
// to the cache in a single batch and returned in the order of keys.
func (h *Hydrator) Hydrate(ctx context.Context, keys []saved.Key) []saved.Record {
	if len(keys) == 0 {
		return nil
	}

	results := make([]fetchResult, len(keys))
	var g errgroup.Group
	if h.concurrency > 0 {
		g.SetLimit(h.concurrency)
	}

	for i, k := range keys {
		g.Go(func() error {
			r, err := h.fetcher.Fetch(ctx, k)
			if err != nil {
				log.Warn().Err(err).Str("key", string(k)).Msg("can't hydrate a saved item")
				h.metrics.RecordHydration(metrics.HydrationFailed)
				// Returning nil keeps one failure from hiding the others
				return nil
			}
			h.metrics.RecordHydration(metrics.HydrationResolved)
			results[i] = fetchResult{record: r, ok: true}
			return nil
		})
	}
	// Every goroutine returns nil
	_ = g.Wait()

	resolved := make([]saved.Record, 0, len(keys))
	for _, res := range results {
		if res.ok {
			resolved = append(resolved, res.record)
		}
	}

	if err := h.cache.PutMany(resolved); err != nil {
		log.Warn().Err(err).Int("count", len(resolved)).Msg("can't cache hydrated records")
	}

	log.Debug().
		Int("requested", len(keys)).
		Int("resolved", len(resolved)).
		Msg("hydrated saved items")
	return resolved
}
