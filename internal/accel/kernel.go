package accel

import (
	"context"
	"errors"
	"fmt"

	"kirsch-edgemap/internal/backend"
	"kirsch-edgemap/internal/kirsch"
)

var (
	// ErrAccelerationUnavailable means the device or its runtime cannot be
	// initialised.
	ErrAccelerationUnavailable = errors.New("acceleration unavailable")
	// ErrKernelCompile means the kernel could not be built for the device.
	ErrKernelCompile = errors.New("kernel compilation failed")
)

// KernelSpec is the kernel source handed to a device: the mask bank plus the
// per-run constants baked into the compiled program.
type KernelSpec struct {
	Masks     [kirsch.Directions]kirsch.Mask
	Palette   kirsch.Palette
	Threshold int32
	Scale     int
	Border    kirsch.BorderPolicy
}

// SpecFor builds the kernel source for a run with the shared mask bank.
func SpecFor(p kirsch.Params) KernelSpec {
	return KernelSpec{
		Masks:     kirsch.Masks,
		Palette:   p.Palette,
		Threshold: p.Threshold,
		Scale:     p.Scale,
		Border:    p.Border,
	}
}

// Program is a kernel compiled for one device.
type Program interface {
	// Dispatch runs one work-item per pixel of g, writing into out, and
	// returns once every work-item has completed. Each finished input row is
	// counted on rows.
	Dispatch(ctx context.Context, g *kirsch.Grey, out *kirsch.EdgeImage, rows *backend.RowReporter) error
}

// Device is a massively parallel execution target.
type Device interface {
	Name() string
	// Probe reports ErrAccelerationUnavailable when the device cannot run.
	Probe() error
	Compile(spec KernelSpec) (Program, error)
}

// compiledKernel is the device-independent part of compilation: the checked
// mask bank in ring form and the expanded colour table.
type compiledKernel struct {
	rings     [kirsch.Directions][kirsch.Directions]int32
	colours   [kirsch.Directions]kirsch.RGB
	threshold int32
	scale     int
	border    kirsch.BorderPolicy
}

func compileKernel(spec KernelSpec) (*compiledKernel, error) {
	if err := kirsch.ValidateMasks(spec.Masks[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKernelCompile, err)
	}
	if n := spec.Palette.Len(); n != 1 && n != kirsch.Directions {
		return nil, fmt.Errorf("%w: palette %q has %d entries", ErrKernelCompile, spec.Palette.Name(), n)
	}
	if spec.Scale <= 0 {
		return nil, fmt.Errorf("%w: scale %d", ErrKernelCompile, spec.Scale)
	}
	if spec.Border != kirsch.BorderSkip && spec.Border != kirsch.BorderSymmetric {
		return nil, fmt.Errorf("%w: %s", ErrKernelCompile, spec.Border)
	}

	k := &compiledKernel{
		colours:   spec.Palette.Table(),
		threshold: spec.Threshold,
		scale:     spec.Scale,
		border:    spec.Border,
	}
	for d, m := range spec.Masks {
		k.rings[d] = m.Ring()
	}
	return k, nil
}

// classified reports whether pixel (x, y) is a work-item that produces an
// edge decision, rather than a frame pixel left as background.
func (k *compiledKernel) classified(g *kirsch.Grey, x, y int) bool {
	if !g.Interior() {
		return false
	}
	if k.border == kirsch.BorderSymmetric {
		return true
	}
	return x >= 1 && y >= 1 && x < g.Width-1 && y < g.Height-1
}
