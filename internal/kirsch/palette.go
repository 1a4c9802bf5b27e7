package kirsch

import (
	"fmt"
	"strings"
)

// RGB is an opaque 8-bit colour.
type RGB struct {
	R, G, B uint8
}

// Background is written wherever no edge is detected.
var Background = RGB{}

// Palette maps an edge direction to a colour. A palette has either one entry
// per direction or a single entry shared by all of them.
type Palette struct {
	name    string
	colours []RGB
}

var (
	// Sim is the simulation colour table.
	Sim = Palette{name: "sim", colours: []RGB{
		{0, 100, 200}, {100, 200, 0}, {0, 200, 100}, {255, 0, 0},
		{0, 0, 255}, {200, 100, 0}, {0, 255, 0}, {200, 0, 100},
	}}
	// FPGA matches the colours of the hardware reference design.
	FPGA = Palette{name: "fpga", colours: []RGB{
		{0, 0, 255}, {255, 0, 0}, {0, 255, 0}, {255, 255, 0},
		{85, 85, 85}, {255, 0, 255}, {0, 255, 255}, {255, 255, 255},
	}}
	// Mono marks every edge with the same colour.
	Mono = Palette{name: "mono", colours: []RGB{{255, 127, 0}}}
)

var palettes = []Palette{Mono, Sim, FPGA}

// PaletteNames lists the built-in palettes.
func PaletteNames() []string {
	names := make([]string, len(palettes))
	for i, p := range palettes {
		names[i] = p.name
	}
	return names
}

// PaletteByName returns a built-in palette.
func PaletteByName(name string) (Palette, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, p := range palettes {
		if p.name == key {
			return p, nil
		}
	}
	return Palette{}, fmt.Errorf("%w: unknown palette %q (want one of %s)",
		ErrInvalidParameter, name, strings.Join(PaletteNames(), ", "))
}

// Name returns the palette's name.
func (p Palette) Name() string {
	return p.name
}

// Len is the number of distinct entries: 8, or 1 for mono.
func (p Palette) Len() int {
	return len(p.colours)
}

// Colour returns the colour of direction d.
func (p Palette) Colour(d uint8) RGB {
	if len(p.colours) == 1 {
		return p.colours[0]
	}
	return p.colours[d]
}

// Table expands the palette to one entry per direction.
func (p Palette) Table() [Directions]RGB {
	var t [Directions]RGB
	for d := range Directions {
		t[d] = p.Colour(uint8(d))
	}
	return t
}

// Colorize colours a decision. Responses equal to the threshold are background.
func Colorize(max int32, direction uint8, threshold int32, p Palette) RGB {
	if max > threshold {
		return p.Colour(direction)
	}
	return Background
}
