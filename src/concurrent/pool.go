// Package concurrent bounds fan-out over slices of independent work.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit caps concurrency when a caller passes limit <= 0.
const DefaultLimit = 10

// Map applies fn to every item with at most limit calls in flight and
// returns the results in input order. The first error cancels the context
// seen by the remaining calls and is returned.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	results := make([]R, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := fn(gctx, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
