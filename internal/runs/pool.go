package runs

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const maxWorkers = 3

// clampWorkers bounds the requested worker count to 1..3.
func clampWorkers(requested int) int {
	if requested < 1 {
		return 1
	}
	if requested > maxWorkers {
		return maxWorkers
	}
	return requested
}

// runPool fans prompts out to workers sharing one claim cursor. Each index
// is claimed exactly once; a worker observing a cancelled context stops
// before claiming. The first error from do cancels the group and is
// returned; do must absorb per-prompt failures and return errors only for
// conditions that should stop the whole batch.
func runPool(ctx context.Context, prompts []string, workers int, do func(ctx context.Context, index int, prompt string) error) error {
	var cursor atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < clampWorkers(workers); w++ {
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				index := int(cursor.Add(1)) - 1
				if index >= len(prompts) {
					return nil
				}
				if err := do(ctx, index, prompts[index]); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
