package imageio

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/jpegn"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"kirsch-edgemap/internal/kirsch"
	"kirsch-edgemap/internal/logger"
)

// Image is a decoded input converted to greyscale.
type Image struct {
	Grey   *kirsch.Grey
	Format string
	Path   string
}

type Loader struct {
	logger logger.Logger
}

func NewLoader(log logger.Logger) *Loader {
	return &Loader{logger: log}
}

// LoadFile decodes the image at path and converts it to greyscale.
func (l *Loader) LoadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open file %q: %w", path, err)
	}
	defer f.Close()

	img, err := l.Decode(bufio.NewReader(f), FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("could not decode file %q: %w", path, err)
	}
	img.Path = path
	return img, nil
}

// Decode reads one image. JPEG input goes through jpegn with EXIF
// orientation applied; everything else through the registered decoders.
func (l *Loader) Decode(r io.Reader, format string) (*Image, error) {
	var (
		src image.Image
		err error
	)
	if format == "jpeg" {
		src, err = jpegn.Decode(r, &jpegn.Options{AutoRotate: true})
	} else {
		var detected string
		src, detected, err = image.Decode(r)
		if detected != "" {
			format = detected
		}
	}
	if err != nil {
		return nil, err
	}

	grey := kirsch.GreyFromImage(src)

	l.logger.Debug("ImageLoader", "image decoded", map[string]interface{}{
		"width":  grey.Width,
		"height": grey.Height,
		"format": format,
		"model":  fmt.Sprintf("%T", src),
	})

	return &Image{Grey: grey, Format: format}, nil
}

// FormatFromPath maps a file extension to a format name, "" if unknown.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tiff", ".tif":
		return "tiff"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".bmp":
		return "bmp"
	case ".gif":
		return "gif"
	case ".webp":
		return "webp"
	default:
		return ""
	}
}

// OutputPath appends suffix to the stem of input, keeping directory and
// extension: "dir/cat.png" with "_edge" becomes "dir/cat_edge.png".
func OutputPath(input, suffix string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + suffix + ext
}
