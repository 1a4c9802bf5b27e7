package kirsch

// ClassifyPixel runs the fused per-pixel pipeline on logical pixel (x, y):
// eight derivatives, direction selection and colouring. Frame pixels are
// background unless the border policy is symmetric.
func ClassifyPixel(g *Grey, x, y int, p Params) RGB {
	n, ok := neighbourhoodFor(g, x, y, p.Border)
	if !ok {
		return Background
	}
	d := Select(RingResponses(n, &ringBank))
	return Colorize(d.Max, d.Direction, p.Threshold, p.Palette)
}

// ClassifyRows classifies input rows [y0, y1) into out. Rows are independent,
// so disjoint ranges may run concurrently on the same output image.
func ClassifyRows(g *Grey, p Params, out *EdgeImage, y0, y1 int) {
	if !g.Interior() {
		return
	}
	for y := y0; y < y1; y++ {
		for x := 0; x < g.Width; x++ {
			out.Expand(x, y, ClassifyPixel(g, x, y, p))
		}
	}
}
