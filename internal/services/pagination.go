package services

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// pagedConfig bounds a bulk fetch: how many rows per request, how many pages
// at most, and when the accumulated result is good enough to stop early.
type pagedConfig struct {
	pageSize int
	pageCap  int
	// target and minQuality form the early-stop condition: accumulation
	// stops once target rows are gathered and at least minQuality of them
	// pass the quality predicate.
	target     int
	minQuality int
	// allowPartial returns what was gathered so far when a mid-sequence
	// page fails, instead of propagating the error.
	allowPartial bool
}

// fetchPaged drives sequential page requests against an adapter, merging rows
// into an id-keyed accumulator so duplicate ids across pages collapse (last
// write wins). First-seen order is preserved; callers apply the canonical
// sort afterwards.
func fetchPaged[T any](
	ctx context.Context,
	fetch func(ctx context.Context, page, pageSize int) ([]T, error),
	key func(T) string,
	quality func(T) bool,
	cfg pagedConfig,
) ([]T, error) {
	byID := make(map[string]int)
	var out []T
	qualityCount := 0

	for page := 1; page <= cfg.pageCap; page++ {
		rows, err := fetch(ctx, page, cfg.pageSize)
		if err != nil {
			if cfg.allowPartial && len(out) > 0 {
				return out, nil
			}
			return nil, err
		}

		for _, row := range rows {
			id := key(row)
			if id == "" {
				continue
			}
			if idx, seen := byID[id]; seen {
				if quality != nil && quality(out[idx]) {
					qualityCount--
				}
				out[idx] = row
			} else {
				byID[id] = len(out)
				out = append(out, row)
			}
			if quality != nil && quality(row) {
				qualityCount++
			}
		}

		// A short page signals the end of the data set.
		if len(rows) < cfg.pageSize {
			break
		}
		if cfg.target > 0 && len(out) >= cfg.target && qualityCount >= cfg.minQuality {
			break
		}
	}

	return out, nil
}

// fetchPagedParallel issues up to pageCap page requests concurrently. Only
// valid when the provider's pagination is stable and filter-independent; the
// merge is keyed by id so in-flight ordering is irrelevant. A failed page
// only removes its own contribution, it does not cancel siblings, and the
// partial-results policy decides whether the overall call still succeeds.
func fetchPagedParallel[T any](
	ctx context.Context,
	fetch func(ctx context.Context, page, pageSize int) ([]T, error),
	key func(T) string,
	cfg pagedConfig,
) ([]T, error) {
	var mu sync.Mutex
	pages := make([][]T, cfg.pageCap)
	failures := 0
	var firstErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < cfg.pageCap; i++ {
		page := i + 1
		g.Go(func() error {
			rows, err := fetch(gctx, page, cfg.pageSize)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				if firstErr == nil {
					firstErr = err
				}
				// Swallow so sibling pages keep running.
				return nil
			}
			pages[page-1] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]int)
	var out []T
	for _, rows := range pages {
		for _, row := range rows {
			id := key(row)
			if id == "" {
				continue
			}
			if idx, seen := byID[id]; seen {
				out[idx] = row
			} else {
				byID[id] = len(out)
				out = append(out, row)
			}
		}
	}

	if failures == cfg.pageCap && firstErr != nil {
		return nil, fmt.Errorf("all %d page requests failed: %w", cfg.pageCap, firstErr)
	}
	if !cfg.allowPartial && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
