package accel

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"
	"gocv.io/x/gocv"

	"kirsch-edgemap/internal/backend"
	"kirsch-edgemap/internal/kirsch"
	"kirsch-edgemap/internal/opencv/memory"
	"kirsch-edgemap/internal/opencv/safe"
)

const OpenCVDeviceName = "opencv"

// OpenCVDevice produces the eight derivative planes with OpenCV's Filter2D and
// runs selection, colouring and block writes per pixel on the worker pool.
// Filter2D correlates, which is exactly applying each mask in its generation
// orientation. CV_32F holds every response exactly.
type OpenCVDevice struct {
	pool          *workerpool.Pool
	mats          *memory.Manager
	opencvVersion func() string
}

// NewOpenCVDevice dispatches on pool and draws mask and plane matrices from
// mats. Both are owned by the caller.
func NewOpenCVDevice(pool *workerpool.Pool, mats *memory.Manager) *OpenCVDevice {
	return &OpenCVDevice{pool: pool, mats: mats, opencvVersion: gocv.OpenCVVersion}
}

func (d *OpenCVDevice) Name() string {
	return OpenCVDeviceName
}

// Version reports the gocv and OpenCV versions in use.
func (d *OpenCVDevice) Version() string {
	return fmt.Sprintf("gocv %s / opencv %s", gocv.Version(), d.opencvVersion())
}

// smokePatch is a 3x3 patch whose centre responses are all distinct.
var smokePatch = [][]uint8{
	{10, 200, 30},
	{90, 0, 60},
	{250, 120, 5},
}

// Probe asks the OpenCV runtime for its version and checks that Filter2D
// reproduces the scalar response of smokePatch under every mask.
func (d *OpenCVDevice) Probe() error {
	if d.pool == nil {
		return fmt.Errorf("%w: opencv device has no worker pool", ErrAccelerationUnavailable)
	}
	if d.mats == nil {
		return fmt.Errorf("%w: opencv device has no matrix manager", ErrAccelerationUnavailable)
	}
	if d.opencvVersion() == "" {
		return fmt.Errorf("%w: opencv runtime reports no version", ErrAccelerationUnavailable)
	}

	patch := kirsch.GreyFromRows(smokePatch)
	src, err := safe.NewMatFromBytes(3, 3, gocv.MatTypeCV8UC1, packed(patch), "smoke_input")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccelerationUnavailable, err)
	}
	defer src.Close()

	mats, err := d.mats.GetMats(2, 3, 3, gocv.MatTypeCV32FC1, "smoke")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccelerationUnavailable, err)
	}
	defer d.mats.ReleaseMats(mats...)
	mask, dst := mats[0], mats[1]

	want := kirsch.Responses(patch, 1, 1)
	for dir, m := range kirsch.Masks {
		if err := fillMask(mask, m); err != nil {
			return fmt.Errorf("%w: %w", ErrAccelerationUnavailable, err)
		}
		gocv.Filter2D(src.GetMat(), dst.Ptr(), gocv.MatTypeCV32F, mask.GetMat(),
			image.Point{X: -1, Y: -1}, 0, gocv.BorderReflect101)
		data, err := dst.Float32Data()
		if err != nil || len(data) != 9 {
			return fmt.Errorf("%w: Filter2D produced no plane", ErrAccelerationUnavailable)
		}
		if got := int32(data[4]); got != want[dir] {
			return fmt.Errorf("%w: Filter2D mask %d gave %d, want %d", ErrAccelerationUnavailable, dir, got, want[dir])
		}
	}
	return nil
}

func fillMask(mat *safe.Mat, m kirsch.Mask) error {
	for r := range 3 {
		for c := range 3 {
			if err := mat.SetFloatAt(r, c, float32(m[r][c])); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *OpenCVDevice) Compile(spec KernelSpec) (Program, error) {
	k, err := compileKernel(spec)
	if err != nil {
		return nil, err
	}

	masks, err := d.mats.GetMats(kirsch.Directions, 3, 3, gocv.MatTypeCV32FC1, "kirsch_mask")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKernelCompile, err)
	}
	for dir, m := range spec.Masks {
		if err := fillMask(masks[dir], m); err != nil {
			d.mats.ReleaseMats(masks...)
			return nil, fmt.Errorf("%w: mask %d: %w", ErrKernelCompile, dir, err)
		}
	}
	return &openCVProgram{kernel: k, pool: d.pool, mats: d.mats, masks: masks}, nil
}

// openCVProgram holds its mask matrices until its single dispatch, then hands
// them back to the manager.
type openCVProgram struct {
	kernel *compiledKernel
	pool   *workerpool.Pool
	mats   *memory.Manager
	masks  []*safe.Mat
}

func (op *openCVProgram) Dispatch(ctx context.Context, g *kirsch.Grey, out *kirsch.EdgeImage, rows *backend.RowReporter) error {
	defer op.mats.ReleaseMats(op.masks...)

	if !g.Interior() {
		rows.Add(g.Height)
		return nil
	}

	src, err := safe.NewMatFromBytes(g.Height, g.Width, gocv.MatTypeCV8UC1, packed(g), "kirsch_input")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAccelerationUnavailable, err)
	}
	defer src.Close()

	border := gocv.BorderReflect101
	if op.kernel.border == kirsch.BorderSymmetric {
		border = gocv.BorderReflect
	}

	dsts, err := op.mats.GetMats(kirsch.Directions, g.Height, g.Width, gocv.MatTypeCV32FC1, "kirsch_plane")
	if err != nil {
		return fmt.Errorf("planes: %w", err)
	}
	defer op.mats.ReleaseMats(dsts...)

	var planes [kirsch.Directions][]float32
	for dir, dst := range dsts {
		if err := ctx.Err(); err != nil {
			return err
		}
		gocv.Filter2D(src.GetMat(), dst.Ptr(), gocv.MatTypeCV32F, op.masks[dir].GetMat(),
			image.Point{X: -1, Y: -1}, 0, border)
		if err := safe.ValidateMatForOperation(dst, "Filter2D"); err != nil {
			return err
		}
		data, err := dst.Float32Data()
		if err != nil {
			return fmt.Errorf("plane %d: %w", dir, err)
		}
		planes[dir] = data
	}

	var cancelled atomic.Bool
	op.pool.ParallelFor(g.Height, func(start, end int) {
		for y := start; y < end; y++ {
			if ctx.Err() != nil {
				cancelled.Store(true)
				return
			}
			for x := 0; x < g.Width; x++ {
				if !op.kernel.classified(g, x, y) {
					continue
				}
				i := y*g.Width + x
				var r [kirsch.Directions]int32
				for dir := range kirsch.Directions {
					r[dir] = int32(planes[dir][i])
				}
				d := kirsch.Select(r)
				if d.Max > op.kernel.threshold {
					out.Expand(x, y, op.kernel.colours[d.Direction])
				}
			}
			rows.Add(1)
		}
	})

	if cancelled.Load() {
		return ctx.Err()
	}
	return nil
}

// packed returns the pixels without row padding.
func packed(g *kirsch.Grey) []byte {
	if g.Stride == g.Width {
		return g.Pix[:g.Width*g.Height]
	}
	buf := make([]byte, 0, g.Width*g.Height)
	for y := 0; y < g.Height; y++ {
		buf = append(buf, g.Row(y)...)
	}
	return buf
}
