package memory

import "kirsch-edgemap/internal/opencv/safe"

// shelf parks idle Mats of a single shape. It has no lock of its own; the
// Manager's mutex guards it.
type shelf struct {
	idle     []*safe.Mat
	capacity int
}

func newShelf(capacity int) *shelf {
	return &shelf{idle: make([]*safe.Mat, 0, capacity), capacity: capacity}
}

// take pops the most recently parked Mat that is still usable. Stale Mats
// found on the way are closed.
func (s *shelf) take() *safe.Mat {
	for len(s.idle) > 0 {
		mat := s.idle[len(s.idle)-1]
		s.idle = s.idle[:len(s.idle)-1]
		if mat.IsValid() && !mat.Empty() {
			return mat
		}
		mat.Close()
	}
	return nil
}

// park keeps mat for reuse and reports false when the shelf is full.
func (s *shelf) park(mat *safe.Mat) bool {
	if len(s.idle) >= s.capacity {
		return false
	}
	s.idle = append(s.idle, mat)
	return true
}

func (s *shelf) len() int {
	return len(s.idle)
}

// drain closes every parked Mat and returns how many there were.
func (s *shelf) drain() int {
	n := len(s.idle)
	for _, mat := range s.idle {
		mat.Close()
	}
	s.idle = s.idle[:0]
	return n
}
