package kirsch

import (
	"fmt"
	"strings"
)

// BorderPolicy selects how pixels without a full 3x3 neighbourhood are treated.
type BorderPolicy int

const (
	// BorderSkip leaves the one-pixel frame unclassified (background).
	BorderSkip BorderPolicy = iota
	// BorderSymmetric mirrors out-of-range reads about the edge sample
	// (-1 -> 0, W -> W-1) so frame pixels get responses too. Interior pixels
	// are unaffected.
	BorderSymmetric
)

func (b BorderPolicy) String() string {
	switch b {
	case BorderSkip:
		return "skip"
	case BorderSymmetric:
		return "symmetric"
	default:
		return fmt.Sprintf("BorderPolicy(%d)", int(b))
	}
}

// ParseBorderPolicy maps a policy name to its value.
func ParseBorderPolicy(name string) (BorderPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "skip":
		return BorderSkip, nil
	case "symmetric", "symm", "reflect":
		return BorderSymmetric, nil
	}
	return BorderSkip, fmt.Errorf("%w: unknown border policy %q", ErrInvalidParameter, name)
}

// Neighbourhood returns the 8 neighbours of (x, y) in ring order. The pixel
// must be interior.
func Neighbourhood(g *Grey, x, y int) [Directions]int32 {
	above := g.Pix[(y-1)*g.Stride:]
	row := g.Pix[y*g.Stride:]
	below := g.Pix[(y+1)*g.Stride:]
	return [Directions]int32{
		int32(above[x-1]), int32(above[x]), int32(above[x+1]),
		int32(row[x+1]),
		int32(below[x+1]), int32(below[x]), int32(below[x-1]),
		int32(row[x-1]),
	}
}

// SymmetricNeighbourhood is Neighbourhood with mirrored reads, valid for
// frame pixels of images at least 3x3.
func SymmetricNeighbourhood(g *Grey, x, y int) [Directions]int32 {
	var n [Directions]int32
	for p, off := range ringOffsets {
		n[p] = int32(g.At(mirror(x+off[0], g.Width), mirror(y+off[1], g.Height)))
	}
	return n
}

func mirror(i, n int) int {
	switch {
	case i < 0:
		return -i - 1
	case i >= n:
		return 2*n - i - 1
	}
	return i
}

// RingResponses applies the mask bank, given in ring form, to a neighbourhood.
func RingResponses(n [Directions]int32, rings *[Directions][Directions]int32) [Directions]int32 {
	var r [Directions]int32
	for d := range Directions {
		var acc int32
		for p := range Directions {
			acc += n[p] * rings[d][p]
		}
		r[d] = acc
	}
	return r
}

// Responses returns the eight directional derivatives of interior pixel (x, y)
// under the shared mask bank.
func Responses(g *Grey, x, y int) [Directions]int32 {
	return RingResponses(Neighbourhood(g, x, y), &ringBank)
}

var ringBank = ringsOf(Masks)

func ringsOf(masks [Directions]Mask) [Directions][Directions]int32 {
	var rings [Directions][Directions]int32
	for d, m := range masks {
		rings[d] = m.Ring()
	}
	return rings
}

// ResponseField holds one plane of responses per direction. Cells that were
// not computed are marked invalid.
type ResponseField struct {
	Width  int
	Height int
	Planes [Directions][]int32
	valid  []bool
}

// Valid reports whether (x, y) carries computed responses.
func (f *ResponseField) Valid(x, y int) bool {
	return f.valid[y*f.Width+x]
}

// At returns the eight responses at (x, y).
func (f *ResponseField) At(x, y int) [Directions]int32 {
	var r [Directions]int32
	i := y*f.Width + x
	for d := range Directions {
		r[d] = f.Planes[d][i]
	}
	return r
}

// ComputeField convolves g with every mask. Under BorderSkip only pixels in
// [1, W-2] x [1, H-2] are computed; under BorderSymmetric every pixel is,
// unless the image is smaller than 3x3, in which case nothing is.
func ComputeField(g *Grey, masks [Directions]Mask, border BorderPolicy) *ResponseField {
	f := &ResponseField{
		Width:  g.Width,
		Height: g.Height,
		valid:  make([]bool, g.Width*g.Height),
	}
	for d := range Directions {
		f.Planes[d] = make([]int32, g.Width*g.Height)
	}
	if !g.Interior() {
		return f
	}

	rings := ringsOf(masks)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			n, ok := neighbourhoodFor(g, x, y, border)
			if !ok {
				continue
			}
			r := RingResponses(n, &rings)
			i := y*g.Width + x
			for d := range Directions {
				f.Planes[d][i] = r[d]
			}
			f.valid[i] = true
		}
	}
	return f
}

// neighbourhoodFor returns the ring of (x, y) under the policy and whether the
// pixel is classified at all.
func neighbourhoodFor(g *Grey, x, y int, border BorderPolicy) ([Directions]int32, bool) {
	if x >= 1 && y >= 1 && x < g.Width-1 && y < g.Height-1 {
		return Neighbourhood(g, x, y), true
	}
	if border == BorderSymmetric && g.Interior() {
		return SymmetricNeighbourhood(g, x, y), true
	}
	return [Directions]int32{}, false
}
