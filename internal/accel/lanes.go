package accel

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"kirsch-edgemap/internal/backend"
	"kirsch-edgemap/internal/kirsch"
)

const LanesDeviceName = "lanes"

// LaneDevice executes the kernel on SIMD lanes: a work-group is a run of
// consecutive pixels of one row, one pixel per int32 lane, and work-groups
// are spread over a worker pool.
type LaneDevice struct {
	pool *workerpool.Pool
}

// NewLaneDevice dispatches on pool, which the caller owns and closes.
func NewLaneDevice(pool *workerpool.Pool) *LaneDevice {
	return &LaneDevice{pool: pool}
}

func (d *LaneDevice) Name() string {
	return LanesDeviceName
}

// Lanes is the work-group width.
func (d *LaneDevice) Lanes() int {
	return hwy.MaxLanes[int32]()
}

// Target names the instruction set the lanes map to.
func (d *LaneDevice) Target() string {
	return hwy.CurrentLevel().String()
}

func (d *LaneDevice) Probe() error {
	if d.pool == nil {
		return fmt.Errorf("%w: lanes device has no worker pool", ErrAccelerationUnavailable)
	}
	if d.Lanes() <= 0 {
		return fmt.Errorf("%w: no int32 lanes on %s", ErrAccelerationUnavailable, d.Target())
	}
	return nil
}

func (d *LaneDevice) Compile(spec KernelSpec) (Program, error) {
	k, err := compileKernel(spec)
	if err != nil {
		return nil, err
	}

	lanes := d.Lanes()
	prog := &laneProgram{
		kernel:    k,
		pool:      d.pool,
		lanes:     lanes,
		threshold: hwy.Set(k.threshold),
	}
	for dir := range kirsch.Directions {
		prog.dirIndex[dir] = hwy.Set(int32(dir))
		for p := range kirsch.Directions {
			prog.coef[dir][p] = hwy.Set(k.rings[dir][p])
		}
	}
	return prog, nil
}

type laneProgram struct {
	kernel    *compiledKernel
	pool      *workerpool.Pool
	lanes     int
	coef      [kirsch.Directions][kirsch.Directions]hwy.Vec[int32]
	dirIndex  [kirsch.Directions]hwy.Vec[int32]
	threshold hwy.Vec[int32]
}

func (lp *laneProgram) Dispatch(ctx context.Context, g *kirsch.Grey, out *kirsch.EdgeImage, rows *backend.RowReporter) error {
	if !g.Interior() {
		rows.Add(g.Height)
		return nil
	}

	groupsPerRow := (g.Width + lp.lanes - 1) / lp.lanes
	var cancelled atomic.Bool
	lp.pool.ParallelForAtomicBatched(groupsPerRow*g.Height, groupsPerRow, func(start, end int) {
		if ctx.Err() != nil {
			cancelled.Store(true)
			return
		}
		taps := newLaneTaps(lp.lanes)
		for i := start; i < end; i++ {
			lp.runGroup(g, out, (i%groupsPerRow)*lp.lanes, i/groupsPerRow, taps)
			if (i+1)%groupsPerRow == 0 {
				rows.Add(1)
			}
		}
	})

	if cancelled.Load() {
		return ctx.Err()
	}
	return nil
}

// laneTaps is per-worker scratch: ring samples per lane plus results.
type laneTaps struct {
	ring   [kirsch.Directions][]int32
	active []bool
	dir    []int32
}

func newLaneTaps(lanes int) *laneTaps {
	t := &laneTaps{
		active: make([]bool, lanes),
		dir:    make([]int32, lanes),
	}
	for p := range t.ring {
		t.ring[p] = make([]int32, lanes)
	}
	return t
}

// runGroup executes the work-items of pixels [x0, x0+lanes) of row y.
func (lp *laneProgram) runGroup(g *kirsch.Grey, out *kirsch.EdgeImage, x0, y int, t *laneTaps) {
	anyActive := false
	for lane := range lp.lanes {
		x := x0 + lane
		t.active[lane] = x < g.Width && lp.kernel.classified(g, x, y)
		if !t.active[lane] {
			for p := range t.ring {
				t.ring[p][lane] = 0
			}
			continue
		}
		anyActive = true
		var n [kirsch.Directions]int32
		if x >= 1 && y >= 1 && x < g.Width-1 && y < g.Height-1 {
			n = kirsch.Neighbourhood(g, x, y)
		} else {
			n = kirsch.SymmetricNeighbourhood(g, x, y)
		}
		for p := range t.ring {
			t.ring[p][lane] = n[p]
		}
	}
	if !anyActive {
		return
	}

	var taps [kirsch.Directions]hwy.Vec[int32]
	for p := range taps {
		taps[p] = hwy.Load(t.ring[p])
	}

	best := lp.response(0, &taps)
	dir := hwy.Zero[int32]()
	for d := 1; d < kirsch.Directions; d++ {
		r := lp.response(d, &taps)
		// Strictly greater keeps the first maximum on ties.
		m := hwy.GreaterThan(r, best)
		best = hwy.IfThenElse(m, r, best)
		dir = hwy.IfThenElse(m, lp.dirIndex[d], dir)
	}
	edge := hwy.GreaterThan(best, lp.threshold)
	hwy.Store(dir, t.dir)

	for lane := range lp.lanes {
		if t.active[lane] && edge.GetBit(lane) {
			out.Expand(x0+lane, y, lp.kernel.colours[t.dir[lane]])
		}
	}
}

func (lp *laneProgram) response(d int, taps *[kirsch.Directions]hwy.Vec[int32]) hwy.Vec[int32] {
	acc := hwy.Mul(lp.coef[d][0], taps[0])
	for p := 1; p < kirsch.Directions; p++ {
		acc = hwy.Add(acc, hwy.Mul(lp.coef[d][p], taps[p]))
	}
	return acc
}
