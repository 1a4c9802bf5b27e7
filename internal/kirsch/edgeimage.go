package kirsch

import "image"

// EdgeImage is the colour-coded result, Scale times larger than the input in
// each dimension. Pix holds 3 bytes per pixel.
type EdgeImage struct {
	Width  int
	Height int
	Scale  int
	Stride int
	Pix    []uint8
}

// NewEdgeImage allocates a background image for a width x height input.
func NewEdgeImage(width, height, scale int) *EdgeImage {
	w, h := width*scale, height*scale
	return &EdgeImage{
		Width:  w,
		Height: h,
		Scale:  scale,
		Stride: 3 * w,
		Pix:    make([]uint8, 3*w*h),
	}
}

// Expand fills the Scale x Scale block of logical pixel (x, y) with c. The
// image starts out as background, so background blocks are not written.
func (e *EdgeImage) Expand(x, y int, c RGB) {
	if c == Background {
		return
	}
	x0, y0 := x*e.Scale, y*e.Scale
	row := e.Pix[y0*e.Stride+3*x0 : y0*e.Stride+3*(x0+e.Scale)]
	for i := 0; i < len(row); i += 3 {
		row[i], row[i+1], row[i+2] = c.R, c.G, c.B
	}
	for dy := 1; dy < e.Scale; dy++ {
		off := (y0+dy)*e.Stride + 3*x0
		copy(e.Pix[off:off+len(row)], row)
	}
}

// At returns the colour of output pixel (x, y).
func (e *EdgeImage) At(x, y int) RGB {
	i := y*e.Stride + 3*x
	return RGB{e.Pix[i], e.Pix[i+1], e.Pix[i+2]}
}

// RGBA converts the image for the standard encoders.
func (e *EdgeImage) RGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, e.Width, e.Height))
	for y := 0; y < e.Height; y++ {
		src := e.Pix[y*e.Stride : y*e.Stride+3*e.Width]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+4*e.Width]
		for x := 0; x < e.Width; x++ {
			out[4*x] = src[3*x]
			out[4*x+1] = src[3*x+1]
			out[4*x+2] = src[3*x+2]
			out[4*x+3] = 0xff
		}
	}
	return dst
}
