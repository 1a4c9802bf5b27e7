package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"kirsch-edgemap/internal/logger"
	"kirsch-edgemap/internal/opencv/safe"
)

func TestGetMatReusesReleasedMats(t *testing.T) {
	m := NewManager(logger.Nop(), 0)
	defer m.Shutdown()

	a, err := m.GetMat(4, 5, gocv.MatTypeCV32FC1, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, a.Rows())
	assert.Equal(t, 5, a.Cols())
	m.ReleaseMat(a)
	assert.Equal(t, 1, m.Pooled())

	b, err := m.GetMat(4, 5, gocv.MatTypeCV32FC1, "b")
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())

	stats := m.GetStats()
	assert.Equal(t, int64(1), stats.PoolHits)
	assert.Equal(t, int64(1), stats.PoolMisses)
	assert.Equal(t, int64(1), stats.ActiveMats)
	assert.Equal(t, int64(2*80), stats.TotalAllocated)
	assert.Equal(t, int64(80), stats.TotalReleased)
}

func TestGetMatKeysOnShape(t *testing.T) {
	m := NewManager(logger.Nop(), 0)
	defer m.Shutdown()

	a, err := m.GetMat(3, 3, gocv.MatTypeCV32FC1, "a")
	require.NoError(t, err)
	m.ReleaseMat(a)

	b, err := m.GetMat(3, 3, gocv.MatTypeCV8UC1, "b")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, int64(2), m.GetStats().PoolMisses)
}

func TestGetMatEnforcesLimit(t *testing.T) {
	m := NewManager(logger.Nop(), 100)
	defer m.Shutdown()

	_, err := m.GetMat(5, 5, gocv.MatTypeCV32FC1, "fits")
	require.NoError(t, err)

	_, err = m.GetMat(5, 5, gocv.MatTypeCV32FC1, "too much")
	assert.Error(t, err)
}

func TestReleaseUntrackedMatClosesIt(t *testing.T) {
	m := NewManager(logger.Nop(), 0)
	defer m.Shutdown()

	mat, err := safe.NewMat(2, 2, gocv.MatTypeCV8UC1, "stray")
	require.NoError(t, err)

	m.ReleaseMat(mat)
	assert.False(t, mat.IsValid())
	assert.Zero(t, m.Pooled())
	m.ReleaseMat(nil)
}

func TestShutdownClosesEverything(t *testing.T) {
	m := NewManager(logger.Nop(), 0)

	live, err := m.GetMat(2, 2, gocv.MatTypeCV8UC1, "live")
	require.NoError(t, err)
	idle, err := m.GetMat(2, 2, gocv.MatTypeCV8UC1, "idle")
	require.NoError(t, err)
	m.ReleaseMat(idle)

	m.Shutdown()
	assert.False(t, live.IsValid())
	assert.False(t, idle.IsValid())
	assert.Zero(t, m.Pooled())
}

func TestShelfBounds(t *testing.T) {
	sh := newShelf(1)
	assert.Nil(t, sh.take())

	a, err := safe.NewMat(1, 1, gocv.MatTypeCV8UC1, "a")
	require.NoError(t, err)
	b, err := safe.NewMat(1, 1, gocv.MatTypeCV8UC1, "b")
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, sh.park(a))
	assert.False(t, sh.park(b))
	assert.Equal(t, 1, sh.len())
	assert.Same(t, a, sh.take())
	assert.Zero(t, sh.len())

	require.True(t, sh.park(a))
	assert.Equal(t, 1, sh.drain())
	assert.False(t, a.IsValid())
}

func TestShelfSkipsClosedMats(t *testing.T) {
	sh := newShelf(2)
	live, err := safe.NewMat(1, 1, gocv.MatTypeCV8UC1, "live")
	require.NoError(t, err)
	defer live.Close()
	stale, err := safe.NewMat(1, 1, gocv.MatTypeCV8UC1, "stale")
	require.NoError(t, err)

	sh.park(live)
	sh.park(stale)
	stale.Close()

	assert.Same(t, live, sh.take())
	assert.Nil(t, sh.take())
}

func TestGetMatsHandsOutDistinctSet(t *testing.T) {
	m := NewManager(logger.Nop(), 0)
	defer m.Shutdown()

	planes, err := m.GetMats(8, 4, 6, gocv.MatTypeCV32FC1, "plane")
	require.NoError(t, err)
	require.Len(t, planes, 8)

	seen := map[uint64]bool{}
	for i, p := range planes {
		assert.Equal(t, 4, p.Rows())
		assert.Equal(t, 6, p.Cols())
		assert.Equal(t, fmt.Sprintf("plane_%d", i), p.Tag())
		seen[p.ID()] = true
	}
	assert.Len(t, seen, 8)
	assert.Equal(t, int64(8), m.GetStats().ActiveMats)

	m.ReleaseMats(append(planes, nil)...)
	assert.Equal(t, 8, m.Pooled())
	assert.Zero(t, m.GetStats().ActiveMats)

	again, err := m.GetMats(8, 4, 6, gocv.MatTypeCV32FC1, "plane")
	require.NoError(t, err)
	defer m.ReleaseMats(again...)
	assert.Equal(t, int64(8), m.GetStats().PoolHits)
	assert.Equal(t, int64(8), m.GetStats().PoolMisses)
}

func TestGetMatsReturnsPartialSetOnLimit(t *testing.T) {
	m := NewManager(logger.Nop(), 100)
	defer m.Shutdown()

	_, err := m.GetMats(2, 5, 5, gocv.MatTypeCV32FC1, "plane")
	require.Error(t, err)

	stats := m.GetStats()
	assert.Zero(t, stats.ActiveMats)
	assert.Equal(t, stats.TotalAllocated, stats.TotalReleased)
	assert.Equal(t, 1, m.Pooled())
}
