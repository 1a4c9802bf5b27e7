package main

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"kirsch-edgemap/internal/accel"
	"kirsch-edgemap/internal/backend"
	"kirsch-edgemap/internal/batch"
	"kirsch-edgemap/internal/config"
	"kirsch-edgemap/internal/kirsch"
	"kirsch-edgemap/internal/logger"
	"kirsch-edgemap/internal/opencv/memory"
	"kirsch-edgemap/internal/shutdown"
)

// Application owns the long lived pieces of one run: the worker pool, the
// backend registry and the shutdown manager.
type Application struct {
	cfg      config.Config
	params   kirsch.Params
	logger   logger.Logger
	pool     *workerpool.Pool
	backends *backend.Manager
	shutdown *shutdown.Manager
	stdout   io.Writer
}

func newApplication(ctx context.Context, cfg config.Config, log logger.Logger, stdout io.Writer) (*Application, error) {
	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}

	shutdownManager := shutdown.NewManager(ctx, log)

	pool := workerpool.New(cfg.Workers)
	shutdownManager.Register("worker_pool", shutdown.Func(pool.Close))

	mats := memory.NewManager(log, 0)
	shutdownManager.Register("opencv_mats", mats)

	device, err := newDevice(cfg.Device, pool, mats)
	if err != nil {
		shutdownManager.Shutdown()
		return nil, err
	}

	scalar := backend.NewScalar()
	accelOpts := []accel.Option{accel.WithLogger(log)}
	if cfg.AllowFallback {
		accelOpts = append(accelOpts, accel.WithFallback(scalar))
	}

	backends := backend.NewManager(
		scalar,
		backend.NewParallel(pool),
		accel.New(device, accelOpts...),
	)

	log.Info("Application", "application initialized", map[string]interface{}{
		"version":    AppVersion,
		"go_version": runtime.Version(),
		"workers":    pool.NumWorkers(),
		"backend":    backendName(cfg),
		"device":     device.Name(),
		"palette":    params.Palette.Name(),
		"threshold":  params.Threshold,
		"scale":      params.Scale,
		"border":     params.Border.String(),
	})

	return &Application{
		cfg:      cfg,
		params:   params,
		logger:   log,
		pool:     pool,
		backends: backends,
		shutdown: shutdownManager,
		stdout:   stdout,
	}, nil
}

func newDevice(name string, pool *workerpool.Pool, mats *memory.Manager) (accel.Device, error) {
	switch name {
	case accel.LanesDeviceName:
		return accel.NewLaneDevice(pool), nil
	case accel.OpenCVDeviceName:
		return accel.NewOpenCVDevice(pool, mats), nil
	}
	return nil, fmt.Errorf("%w: unknown device %q", kirsch.ErrInvalidParameter, name)
}

// backendName resolves --accel-gpu, which wins over --backend.
func backendName(cfg config.Config) string {
	if cfg.Accelerate {
		return accel.Name
	}
	return cfg.Backend
}

func (app *Application) Run(files []string) error {
	b, err := app.backends.Get(backendName(app.cfg))
	if err != nil {
		return err
	}

	app.shutdown.Listen()

	opts := []batch.Option{
		batch.WithJobs(app.cfg.Jobs),
		batch.WithSuffix(app.cfg.Suffix),
	}
	if app.cfg.Progress {
		printer := newProgressPrinter(app.stdout)
		opts = append(opts, batch.WithProgress(printer.Update))
	}

	runner := batch.NewRunner(b, app.params, app.logger, opts...)
	results, err := runner.Run(app.shutdown.Context(), files)
	if err != nil {
		return err
	}

	app.logger.Info("Application", "run complete", map[string]interface{}{
		"files":   len(results),
		"backend": b.Name(),
	})

	if app.cfg.Progress {
		fmt.Fprintln(app.stdout, "Success.")
	}
	return nil
}

func (app *Application) Close() {
	app.shutdown.Shutdown()
}
