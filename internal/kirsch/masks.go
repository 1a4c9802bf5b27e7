package kirsch

import "fmt"

// Directions is the number of compass directions evaluated per pixel.
const Directions = 8

// Mask is a 3x3 Kirsch convolution mask, indexed [row][col].
type Mask [3][3]int32

// maskCycle is the ring of coefficients of direction 0, listed clockwise from
// the top-left neighbour.
var maskCycle = [Directions]int32{5, -3, -3, -3, -3, -3, 5, 5}

// ringOffsets maps ring positions to (dx, dy) offsets around the centre pixel.
var ringOffsets = [Directions][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{1, 0},
	{1, 1}, {0, 1}, {-1, 1},
	{-1, 0},
}

// Masks is the mask bank shared by every pixel and every backend.
var Masks = GenerateMasks()

// RingCoefficients returns the coefficients of direction d in ring order.
// Direction d is the base cycle rotated right by d positions.
func RingCoefficients(d int) [Directions]int32 {
	var ring [Directions]int32
	for p := range Directions {
		ring[p] = maskCycle[((p-d)%Directions+Directions)%Directions]
	}
	return ring
}

// GenerateMasks builds the eight masks, each a 45 degree clockwise rotation of
// the previous one.
func GenerateMasks() [Directions]Mask {
	var masks [Directions]Mask
	for d := range Directions {
		masks[d] = foldRing(RingCoefficients(d))
	}
	return masks
}

func foldRing(ring [Directions]int32) Mask {
	var m Mask
	for p, off := range ringOffsets {
		m[off[1]+1][off[0]+1] = ring[p]
	}
	return m
}

// Ring unfolds m back into ring order.
func (m Mask) Ring() [Directions]int32 {
	var ring [Directions]int32
	for p, off := range ringOffsets {
		ring[p] = m[off[1]+1][off[0]+1]
	}
	return ring
}

// Sum returns the sum of all coefficients.
func (m Mask) Sum() int32 {
	var s int32
	for _, row := range m {
		for _, v := range row {
			s += v
		}
	}
	return s
}

// ValidateMasks checks that masks form a Kirsch bank: zero centres, zero-sum
// coefficients and each mask a one-step rotation of its predecessor.
func ValidateMasks(masks []Mask) error {
	if len(masks) != Directions {
		return fmt.Errorf("mask bank has %d masks, want %d", len(masks), Directions)
	}
	for d, m := range masks {
		if m[1][1] != 0 {
			return fmt.Errorf("mask %d has non-zero centre %d", d, m[1][1])
		}
		if s := m.Sum(); s != 0 {
			return fmt.Errorf("mask %d coefficients sum to %d", d, s)
		}
		prev := masks[(d+Directions-1)%Directions].Ring()
		ring := m.Ring()
		for p := range Directions {
			if ring[p] != prev[(p+Directions-1)%Directions] {
				return fmt.Errorf("mask %d is not a rotation of mask %d", d, (d+Directions-1)%Directions)
			}
		}
	}
	return nil
}
