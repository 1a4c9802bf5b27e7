// Package accel runs the Kirsch classifier as one fused kernel dispatched to a
// parallel device, one work-item per input pixel. Its output is byte-identical
// to the scalar backend.
package accel

import (
	"context"
	"errors"
	"fmt"

	"kirsch-edgemap/internal/backend"
	"kirsch-edgemap/internal/kirsch"
	"kirsch-edgemap/internal/logger"
)

const Name = "accel"

type Option func(*Backend)

// WithFallback lets Classify run fb when the device is unavailable. Without
// it an unavailable device is an error.
func WithFallback(fb backend.Backend) Option {
	return func(b *Backend) { b.fallback = fb }
}

// WithLogger sets the logger used for fallback warnings and dispatch stats.
func WithLogger(log logger.Logger) Option {
	return func(b *Backend) { b.log = log }
}

// Backend adapts a Device to the backend.Backend interface.
type Backend struct {
	device   Device
	fallback backend.Backend
	log      logger.Logger
}

func New(device Device, opts ...Option) *Backend {
	b := &Backend{device: device, log: logger.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string {
	return Name
}

// Device returns the device kernels are dispatched to.
func (b *Backend) Device() Device {
	return b.device
}

func (b *Backend) Classify(ctx context.Context, g *kirsch.Grey, p kirsch.Params) (*kirsch.EdgeImage, error) {
	out, err := backend.Prepare(g, p)
	if err != nil {
		return nil, err
	}

	if err := b.device.Probe(); err != nil {
		if b.fallback == nil || !errors.Is(err, ErrAccelerationUnavailable) {
			return nil, err
		}
		b.log.Warning("Accel", "device unavailable, using fallback backend", map[string]interface{}{
			"device":   b.device.Name(),
			"fallback": b.fallback.Name(),
			"reason":   err.Error(),
		})
		return b.fallback.Classify(ctx, g, p)
	}

	program, err := b.device.Compile(SpecFor(p))
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", b.device.Name(), err)
	}

	rows := backend.NewRowReporter(backend.ProgressFromContext(ctx), g.Height)
	if err := program.Dispatch(ctx, g, out, rows); err != nil {
		return nil, fmt.Errorf("device %s dispatch: %w", b.device.Name(), err)
	}

	b.log.Debug("Accel", "kernel completed", map[string]interface{}{
		"device":     b.device.Name(),
		"work_items": g.Width * g.Height,
	})
	return out, nil
}
