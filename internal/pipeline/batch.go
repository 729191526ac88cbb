package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/job-ranker/internal/logger"
	"github.com/jonathan/job-ranker/internal/types"
)

// chunk splits items into consecutive slices of at most size elements. The
// slices share items' backing array.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// forEachBatch runs fn over every batch with at most BatchConcurrency in
// flight. fn handles its own failures; a failed batch never stops the others.
// A panicking batch is recovered in its own goroutine, stops the remaining
// batches and is returned as an error, which fails the run. Otherwise the only
// error returned is ctx's, once it is done.
func (r *run) forEachBatch(ctx context.Context, items []types.Job, size int, fn func(ctx context.Context, n int, batch []types.Job)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.BatchConcurrency)

	for n, batch := range chunk(items, size) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("pipeline: batch panic",
						zap.Int(logger.FieldBatch, n+1),
						zap.Any("panic", rec),
						zap.Stack("stack"))
					err = fmt.Errorf("panic in batch %d: %v", n+1, rec)
				}
			}()
			if gctx.Err() != nil {
				return nil
			}
			fn(ctx, n, batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
