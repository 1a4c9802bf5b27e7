package backend

import (
	"context"

	"kirsch-edgemap/internal/kirsch"
)

const ScalarName = "scalar"

// Scalar is the sequential reference strategy: one goroutine, rows in order.
type Scalar struct {
	opts options
}

func NewScalar(opts ...Option) *Scalar {
	return &Scalar{opts: buildOptions(opts)}
}

func (s *Scalar) Name() string {
	return ScalarName
}

func (s *Scalar) Classify(ctx context.Context, g *kirsch.Grey, p kirsch.Params) (*kirsch.EdgeImage, error) {
	out, err := Prepare(g, p)
	if err != nil {
		return nil, err
	}

	progress := NewRowReporter(s.opts.progressFor(ctx), g.Height)
	for y := 0; y < g.Height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kirsch.ClassifyRows(g, p, out, y, y+1)
		progress.Add(1)
	}
	return out, nil
}
