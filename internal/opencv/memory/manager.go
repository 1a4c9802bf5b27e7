// Package memory recycles OpenCV matrices between kernel dispatches. A batch
// of same-sized images asks for the same mask and plane shapes over and over,
// so released Mats are parked in per-shape pools instead of being freed.
package memory

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"kirsch-edgemap/internal/logger"
	"kirsch-edgemap/internal/opencv/safe"
)

// DefaultMaxBytes caps the bytes held by live Mats.
const DefaultMaxBytes = 2 * 1024 * 1024 * 1024

// shelfSize holds two dispatches' worth of mask or plane sets per shape.
const shelfSize = 16

type Manager struct {
	shelves     map[shapeKey]*shelf
	allocations map[uint64]*AllocationRecord
	mu          sync.Mutex
	stats       Stats
	logger      logger.Logger
}

type shapeKey struct {
	Rows    int
	Cols    int
	MatType gocv.MatType
}

type AllocationRecord struct {
	Mat       *safe.Mat
	CreatedAt time.Time
	Size      int64
}

type Stats struct {
	TotalAllocated int64
	TotalReleased  int64
	ActiveMats     int64
	PoolHits       int64
	PoolMisses     int64
	MaxAllowed     int64
}

// NewManager limits live allocations to maxBytes; zero or less uses
// DefaultMaxBytes.
func NewManager(log logger.Logger, maxBytes int64) *Manager {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Manager{
		shelves:     make(map[shapeKey]*shelf),
		allocations: make(map[uint64]*AllocationRecord),
		stats:       Stats{MaxAllowed: maxBytes},
		logger:      log,
	}
}

// GetMat hands out a rows×cols Mat of matType, reusing a pooled one when
// available. Contents of a reused Mat are undefined.
func (m *Manager) GetMat(rows, cols int, matType gocv.MatType, tag string) (*safe.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(rows, cols, matType, tag)
}

// GetMats hands out n Mats of one shape, tagged tag_0 .. tag_{n-1}. On error
// the Mats already taken are returned to the manager.
func (m *Manager) GetMats(n, rows, cols int, matType gocv.MatType, tag string) ([]*safe.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mats := make([]*safe.Mat, 0, n)
	for i := range n {
		mat, err := m.getLocked(rows, cols, matType, fmt.Sprintf("%s_%d", tag, i))
		if err != nil {
			for _, taken := range mats {
				m.releaseLocked(taken)
			}
			return nil, err
		}
		mats = append(mats, mat)
	}
	return mats, nil
}

func (m *Manager) getLocked(rows, cols int, matType gocv.MatType, tag string) (*safe.Mat, error) {
	key := shapeKey{Rows: rows, Cols: cols, MatType: matType}
	size := int64(rows) * int64(cols) * int64(matTypeSize(matType))

	if sh, exists := m.shelves[key]; exists {
		if mat := sh.take(); mat != nil {
			m.track(mat, size)
			m.stats.PoolHits++
			return mat, nil
		}
	}

	if live := m.stats.TotalAllocated - m.stats.TotalReleased; live+size > m.stats.MaxAllowed {
		return nil, fmt.Errorf("memory limit exceeded: %d bytes live, %d requested", live, size)
	}

	m.stats.PoolMisses++
	mat, err := safe.NewMat(rows, cols, matType, tag)
	if err != nil {
		return nil, err
	}
	m.track(mat, size)

	m.logger.Debug("MatManager", "created new Mat", map[string]interface{}{
		"tag":  tag,
		"rows": rows,
		"cols": cols,
	})
	return mat, nil
}

func (m *Manager) track(mat *safe.Mat, size int64) {
	m.allocations[mat.ID()] = &AllocationRecord{
		Mat:       mat,
		CreatedAt: time.Now(),
		Size:      size,
	}
	m.stats.TotalAllocated += size
	m.stats.ActiveMats++
}

// ReleaseMat returns mat to its pool, closing it when the pool is full or
// the Mat was not handed out by this manager.
func (m *Manager) ReleaseMat(mat *safe.Mat) {
	if mat == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(mat)
}

// ReleaseMats returns every non-nil Mat in mats.
func (m *Manager) ReleaseMats(mats ...*safe.Mat) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mat := range mats {
		if mat != nil {
			m.releaseLocked(mat)
		}
	}
}

func (m *Manager) releaseLocked(mat *safe.Mat) {
	id := mat.ID()
	record, exists := m.allocations[id]
	if !exists {
		m.logger.Warning("MatManager", "releasing untracked Mat", map[string]interface{}{
			"tag": mat.Tag(),
		})
		mat.Close()
		return
	}

	delete(m.allocations, id)
	m.stats.TotalReleased += record.Size
	m.stats.ActiveMats--

	if !mat.IsValid() || mat.Empty() {
		mat.Close()
		return
	}

	key := shapeKey{Rows: mat.Rows(), Cols: mat.Cols(), MatType: mat.Type()}
	sh, exists := m.shelves[key]
	if !exists {
		sh = newShelf(shelfSize)
		m.shelves[key] = sh
	}
	if !sh.park(mat) {
		mat.Close()
	}
}

func (m *Manager) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Pooled reports how many idle Mats are parked across all pools.
func (m *Manager) Pooled() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, sh := range m.shelves {
		n += sh.len()
	}
	return n
}

// Shutdown closes every pooled and outstanding Mat.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	matCount := 0
	for key, sh := range m.shelves {
		matCount += sh.drain()
		delete(m.shelves, key)
	}

	for id, record := range m.allocations {
		record.Mat.Close()
		delete(m.allocations, id)
		matCount++
	}

	m.logger.Debug("MatManager", "cleaned up Mats", map[string]interface{}{
		"count":          matCount,
		"pool_hits":      m.stats.PoolHits,
		"pool_misses":    m.stats.PoolMisses,
		"bytes_released": m.stats.TotalReleased,
	})
}

func matTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16UC1:
		return 2
	case gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV32FC3:
		return 12
	case gocv.MatTypeCV32FC4:
		return 16
	default:
		return 1
	}
}
