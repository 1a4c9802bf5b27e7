package imageio

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"kirsch-edgemap/internal/kirsch"
	"kirsch-edgemap/internal/logger"
)

type Saver struct {
	logger logger.Logger
}

func NewSaver(log logger.Logger) *Saver {
	return &Saver{logger: log}
}

// SaveFile encodes img in the format implied by the extension of path.
func (s *Saver) SaveFile(path string, img *kirsch.EdgeImage) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not write to file %q: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if err := s.Encode(w, img, FormatFromPath(path)); err != nil {
		f.Close()
		return fmt.Errorf("could not write to file %q: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("could not write to file %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not write to file %q: %w", path, err)
	}
	return nil
}

func (s *Saver) Encode(writer io.Writer, img *kirsch.EdgeImage, format string) error {
	if img == nil {
		return fmt.Errorf("no image data to save")
	}

	saveFormat := format
	if saveFormat == "" {
		saveFormat = "png"
	}

	s.logger.Debug("ImageSaver", "saving image", map[string]interface{}{
		"format": saveFormat,
		"width":  img.Width,
		"height": img.Height,
	})

	var rgba image.Image = img.RGBA()
	var err error
	switch saveFormat {
	case "jpeg":
		err = jpeg.Encode(writer, rgba, &jpeg.Options{Quality: 95})
	case "png":
		err = png.Encode(writer, rgba)
	case "gif":
		var pm *image.Paletted
		if pm, err = paletted(img); err == nil {
			err = gif.Encode(writer, pm, nil)
		}
	case "bmp":
		err = bmp.Encode(writer, rgba)
	case "tiff":
		err = tiff.Encode(writer, rgba, &tiff.Options{Compression: tiff.Deflate})
	default:
		s.logger.Warning("ImageSaver", "format not supported, using PNG", map[string]interface{}{
			"requested_format": strings.ToUpper(saveFormat),
		})
		err = png.Encode(writer, rgba)
	}

	if err != nil {
		s.logger.Error("ImageSaver", err, map[string]interface{}{
			"format": saveFormat,
		})
		return err
	}

	return nil
}

// paletted indexes img against the exact set of colours it uses, background
// first, so the GIF encoder neither quantizes nor dithers.
func paletted(img *kirsch.EdgeImage) (*image.Paletted, error) {
	bg := kirsch.Background
	palette := color.Palette{color.RGBA{R: bg.R, G: bg.G, B: bg.B, A: 0xff}}
	index := map[kirsch.RGB]uint8{bg: 0}

	pm := image.NewPaletted(image.Rect(0, 0, img.Width, img.Height), nil)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.At(x, y)
			i, ok := index[c]
			if !ok {
				if len(palette) == 256 {
					return nil, fmt.Errorf("gif: image uses more than 256 colours")
				}
				i = uint8(len(palette))
				index[c] = i
				palette = append(palette, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
			}
			pm.Pix[y*pm.Stride+x] = i
		}
	}
	pm.Palette = palette
	return pm, nil
}
