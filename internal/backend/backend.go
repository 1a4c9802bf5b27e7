// Package backend holds the execution strategies that turn a greyscale image
// into an edge map. Every strategy must produce byte-identical output for the
// same input and parameters.
package backend

import (
	"context"
	"fmt"
	"sync"

	"kirsch-edgemap/internal/kirsch"
)

// Backend classifies and colours every pixel of an image.
type Backend interface {
	Name() string
	Classify(ctx context.Context, g *kirsch.Grey, p kirsch.Params) (*kirsch.EdgeImage, error)
}

// ProgressFunc is told how many input rows are finished out of total.
type ProgressFunc func(done, total int)

type Option func(*options)

type options struct {
	progress ProgressFunc
}

// WithProgress reports row completion. Calls are serialised by the backend.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

type progressKey struct{}

// ContextWithProgress attaches a progress callback to a single Classify call.
// It takes precedence over WithProgress.
func ContextWithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ProgressFromContext returns the callback attached by ContextWithProgress,
// or nil.
func ProgressFromContext(ctx context.Context) ProgressFunc {
	fn, _ := ctx.Value(progressKey{}).(ProgressFunc)
	return fn
}

func (o options) progressFor(ctx context.Context) ProgressFunc {
	if fn := ProgressFromContext(ctx); fn != nil {
		return fn
	}
	return o.progress
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// RowReporter counts finished rows for one Classify call and serialises the
// progress calls coming from several workers. A nil *RowReporter or a nil
// callback turns Add into a no-op.
type RowReporter struct {
	mu    sync.Mutex
	fn    ProgressFunc
	done  int
	total int
}

func NewRowReporter(fn ProgressFunc, total int) *RowReporter {
	return &RowReporter{fn: fn, total: total}
}

func (r *RowReporter) Add(rows int) {
	if r == nil || r.fn == nil {
		return
	}
	r.mu.Lock()
	r.done += rows
	r.fn(r.done, r.total)
	r.mu.Unlock()
}

// Prepare validates p and allocates the background output image.
func Prepare(g *kirsch.Grey, p kirsch.Params) (*kirsch.EdgeImage, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil image", kirsch.ErrInvalidParameter)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return kirsch.NewEdgeImage(g.Width, g.Height, p.Scale), nil
}
