package kirsch

import (
	"image"
	"image/color"
)

// Grey is an 8-bit greyscale image, row-major with the origin at the top-left.
// The core only ever reads from it.
type Grey struct {
	Width  int
	Height int
	Stride int
	Pix    []uint8
}

// NewGrey allocates a black image of the given size.
func NewGrey(width, height int) *Grey {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Grey{
		Width:  width,
		Height: height,
		Stride: width,
		Pix:    make([]uint8, width*height),
	}
}

// GreyFromRows builds an image from rows of intensities. All rows must have
// the same length as the first one.
func GreyFromRows(rows [][]uint8) *Grey {
	if len(rows) == 0 {
		return NewGrey(0, 0)
	}
	g := NewGrey(len(rows[0]), len(rows))
	for y, row := range rows {
		copy(g.Pix[y*g.Stride:y*g.Stride+g.Width], row)
	}
	return g
}

// At returns the intensity at (x, y).
func (g *Grey) At(x, y int) uint8 {
	return g.Pix[y*g.Stride+x]
}

// Set writes the intensity at (x, y).
func (g *Grey) Set(x, y int, v uint8) {
	g.Pix[y*g.Stride+x] = v
}

// Row returns row y without copying.
func (g *Grey) Row(y int) []uint8 {
	return g.Pix[y*g.Stride : y*g.Stride+g.Width]
}

// Interior reports whether the image has at least one pixel with a full 3x3
// neighbourhood.
func (g *Grey) Interior() bool {
	return g.Width >= 3 && g.Height >= 3
}

// Luma converts an 8-bit RGB triple to greyscale with integer ITU-R 601
// weights, rounding to nearest.
func Luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}

// GreyFromImage converts any image to Grey. Gray images are copied as-is,
// everything else goes through Luma on non-premultiplied 8-bit channels.
func GreyFromImage(src image.Image) *Grey {
	b := src.Bounds()
	g := NewGrey(b.Dx(), b.Dy())

	switch img := src.(type) {
	case *image.Gray:
		for y := 0; y < g.Height; y++ {
			off := img.PixOffset(b.Min.X, b.Min.Y+y)
			copy(g.Row(y), img.Pix[off:off+g.Width])
		}
		return g
	case *image.RGBA:
		for y := 0; y < g.Height; y++ {
			off := img.PixOffset(b.Min.X, b.Min.Y+y)
			row := g.Row(y)
			for x := range row {
				p := img.Pix[off+4*x : off+4*x+4]
				c := color.NRGBAModel.Convert(color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}).(color.NRGBA)
				row[x] = Luma(c.R, c.G, c.B)
			}
		}
		return g
	}

	for y := 0; y < g.Height; y++ {
		row := g.Row(y)
		for x := range row {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			row[x] = Luma(c.R, c.G, c.B)
		}
	}
	return g
}
