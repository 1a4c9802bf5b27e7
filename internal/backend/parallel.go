package backend

import (
	"context"
	"sync/atomic"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"kirsch-edgemap/internal/kirsch"
)

const ParallelName = "parallel"

// Parallel shards input rows across a persistent worker pool. Each worker
// writes only the output blocks of its own rows, so no locking is needed.
type Parallel struct {
	pool *workerpool.Pool
	opts options
}

// NewParallel runs on pool, which the caller owns and closes.
func NewParallel(pool *workerpool.Pool, opts ...Option) *Parallel {
	return &Parallel{pool: pool, opts: buildOptions(opts)}
}

func (b *Parallel) Name() string {
	return ParallelName
}

func (b *Parallel) Workers() int {
	return b.pool.NumWorkers()
}

func (b *Parallel) Classify(ctx context.Context, g *kirsch.Grey, p kirsch.Params) (*kirsch.EdgeImage, error) {
	out, err := Prepare(g, p)
	if err != nil {
		return nil, err
	}

	progress := NewRowReporter(b.opts.progressFor(ctx), g.Height)
	var cancelled atomic.Bool
	b.pool.ParallelFor(g.Height, func(start, end int) {
		for y := start; y < end; y++ {
			if ctx.Err() != nil {
				cancelled.Store(true)
				return
			}
			kirsch.ClassifyRows(g, p, out, y, y+1)
			progress.Add(1)
		}
	})

	if cancelled.Load() {
		return nil, ctx.Err()
	}
	return out, nil
}
