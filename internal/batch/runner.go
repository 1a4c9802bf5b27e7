// Package batch runs the edge mapper over a list of files: each file is
// loaded, classified by the selected backend and written next to the input.
package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"kirsch-edgemap/internal/backend"
	"kirsch-edgemap/internal/imageio"
	"kirsch-edgemap/internal/kirsch"
	"kirsch-edgemap/internal/logger"
	"kirsch-edgemap/internal/timing"
)

// Progress describes one row update of one file.
type Progress struct {
	Index int // 1-based position of the file in the batch
	Total int
	File  string
	Row   int
	Rows  int
}

type ProgressFunc func(Progress)

// Result is the outcome of one file.
type Result struct {
	Input    string
	Output   string
	Width    int
	Height   int
	Duration time.Duration
}

type Option func(*Runner)

// WithJobs bounds how many files are processed at once.
func WithJobs(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.jobs = n
		}
	}
}

func WithSuffix(suffix string) Option {
	return func(r *Runner) { r.suffix = suffix }
}

func WithProgress(fn ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

func WithTracker(t *timing.Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

type Runner struct {
	backend  backend.Backend
	params   kirsch.Params
	loader   *imageio.Loader
	saver    *imageio.Saver
	logger   logger.Logger
	tracker  *timing.Tracker
	progress ProgressFunc
	suffix   string
	jobs     int
}

func NewRunner(b backend.Backend, p kirsch.Params, log logger.Logger, opts ...Option) *Runner {
	r := &Runner{
		backend: b,
		params:  p,
		loader:  imageio.NewLoader(log),
		saver:   imageio.NewSaver(log),
		logger:  log,
		tracker: timing.NewTracker(),
		suffix:  "_edge",
		jobs:    1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Tracker() *timing.Tracker {
	return r.tracker
}

// Run processes every distinct input. The first failure cancels the
// remaining files and is returned; results are in input order.
func (r *Runner) Run(ctx context.Context, inputs []string) ([]Result, error) {
	if err := r.params.Validate(); err != nil {
		return nil, err
	}
	if r.suffix == "" {
		return nil, fmt.Errorf("%w: output suffix must not be empty", kirsch.ErrInvalidParameter)
	}

	files := lo.Uniq(inputs)
	results := make([]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs)

	for i, path := range files {
		g.Go(func() error {
			res, err := r.processFile(gctx, i+1, len(files), path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug("BatchRunner", "batch finished", lo.Assign(
		map[string]interface{}{"files": len(files), "backend": r.backend.Name()},
		r.tracker.Summary(),
	))

	return results, nil
}

func (r *Runner) processFile(ctx context.Context, index, total int, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	res := Result{Input: path, Output: imageio.OutputPath(path, r.suffix)}

	var img *imageio.Image
	err := r.tracker.Track(ctx, "load", func(context.Context) error {
		var err error
		img, err = r.loader.LoadFile(path)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	res.Width, res.Height = img.Grey.Width, img.Grey.Height

	name := filepath.Base(path)
	classifyCtx := backend.ContextWithProgress(ctx, func(done, rows int) {
		if r.progress != nil {
			r.progress(Progress{Index: index, Total: total, File: name, Row: done, Rows: rows})
		}
	})

	var edges *kirsch.EdgeImage
	err = r.tracker.Track(classifyCtx, "classify", func(ctx context.Context) error {
		var err error
		edges, err = r.backend.Classify(ctx, img.Grey, r.params)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("classify %q: %w", path, err)
	}

	err = r.tracker.Track(ctx, "save", func(context.Context) error {
		return r.saver.SaveFile(res.Output, edges)
	})
	if err != nil {
		return Result{}, err
	}

	res.Duration = time.Since(start)
	r.logger.Debug("BatchRunner", "file processed", map[string]interface{}{
		"input":       res.Input,
		"output":      res.Output,
		"width":       res.Width,
		"height":      res.Height,
		"duration_ms": res.Duration.Milliseconds(),
	})

	return res, nil
}
