package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kirsch-edgemap/internal/kirsch"
	"kirsch-edgemap/internal/logger"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, suffix, want string
	}{
		{"cat.png", "_edge", "cat_edge.png"},
		{"dir/cat.jpeg", "_edge", "dir/cat_edge.jpeg"},
		{"a.b.tif", "-k", "a.b-k.tif"},
		{"noext", "_edge", "noext_edge"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputPath(tt.input, tt.suffix))
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, "jpeg", FormatFromPath("x.JPG"))
	assert.Equal(t, "tiff", FormatFromPath("x.tif"))
	assert.Equal(t, "webp", FormatFromPath("x.webp"))
	assert.Equal(t, "", FormatFromPath("x.xyz"))
}

func TestLoadPNGConvertsToLuma(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 200, B: 30, A: 255})

	path := filepath.Join(t.TempDir(), "in.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	img, err := NewLoader(logger.Nop()).LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", img.Format)
	assert.Equal(t, path, img.Path)
	assert.Equal(t, 2, img.Grey.Width)
	assert.Equal(t, 1, img.Grey.Height)
	assert.Equal(t, uint8(76), img.Grey.At(0, 0))
	assert.Equal(t, uint8(124), img.Grey.At(1, 0))
}

func TestLoadJPEG(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 8))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 100}))

	img, err := NewLoader(logger.Nop()).Decode(&buf, "jpeg")
	require.NoError(t, err)
	assert.Equal(t, 16, img.Grey.Width)
	assert.Equal(t, 8, img.Grey.Height)
	assert.InDelta(t, 128, int(img.Grey.At(4, 4)), 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader(logger.Nop()).LoadFile(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestLoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := NewLoader(logger.Nop()).LoadFile(path)
	assert.Error(t, err)
}

func edgeFixture() *kirsch.EdgeImage {
	e := kirsch.NewEdgeImage(2, 2, 2)
	e.Expand(1, 0, kirsch.RGB{R: 255})
	e.Expand(0, 1, kirsch.RGB{G: 255, B: 255})
	return e
}

func TestSaveRoundTrip(t *testing.T) {
	saver := NewSaver(logger.Nop())
	for _, ext := range []string{".png", ".bmp", ".tiff"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out"+ext)
			require.NoError(t, saver.SaveFile(path, edgeFixture()))

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()

			decoded, _, err := image.Decode(f)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 4, 4), decoded.Bounds())

			r, g, b, _ := decoded.At(3, 1).RGBA()
			assert.Equal(t, [3]uint32{0xffff, 0, 0}, [3]uint32{r, g, b})
			r, g, b, _ = decoded.At(0, 0).RGBA()
			assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b})
		})
	}
}

func TestSaveGIFKeepsExactColours(t *testing.T) {
	e := kirsch.NewEdgeImage(3, 2, 4)
	for x := 0; x < 3; x++ {
		e.Expand(x, 0, kirsch.Sim.Colour(uint8(x)))
	}
	e.Expand(1, 1, kirsch.FPGA.Colour(4))

	path := filepath.Join(t.TempDir(), "out.gif")
	require.NoError(t, NewSaver(logger.Nop()).SaveFile(path, e))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, format, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, "gif", format)
	require.Equal(t, image.Rect(0, 0, 12, 8), decoded.Bounds())

	for y := 0; y < 8; y++ {
		for x := 0; x < 12; x++ {
			want := e.At(x, y)
			r, g, b, _ := decoded.At(x, y).RGBA()
			assert.Equal(t, [3]uint8{want.R, want.G, want.B},
				[3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}, "pixel %d,%d", x, y)
		}
	}
}

func TestPalettedIndexesBackgroundFirst(t *testing.T) {
	pm, err := paletted(edgeFixture())
	require.NoError(t, err)

	require.Len(t, pm.Palette, 3)
	assert.Equal(t, color.RGBA{A: 0xff}, pm.Palette[0])
	assert.Equal(t, uint8(0), pm.ColorIndexAt(0, 0))
	assert.Equal(t, color.RGBA{R: 255, A: 0xff}, pm.Palette[pm.ColorIndexAt(3, 1)])
}

func TestSaveJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, NewSaver(logger.Nop()).SaveFile(path, edgeFixture()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 4, cfg.Width)
}

func TestSaveUnsupportedFallsBackToPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSaver(logger.Nop()).Encode(&buf, edgeFixture(), "webp"))

	_, format, err := image.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestSaveNil(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, NewSaver(logger.Nop()).Encode(&buf, nil, "png"))
}
