package lint

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanOut runs n probes concurrently, launched in index order, and returns
// their verdicts in index order once all have finished. A panicking probe
// yields a FAIL verdict in its slot.
func FanOut(ctx context.Context, n int, probe func(ctx context.Context, i int) Verdict) []Verdict {
	verdicts := make([]Verdict, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					verdicts[i] = PanicVerdict(rec)
				}
			}()
			verdicts[i] = probe(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return verdicts
}
