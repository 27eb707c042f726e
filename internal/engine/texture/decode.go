// Package texture decodes user-supplied decal images and loads them off the
// render loop.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/anthonynsimon/bild/transform"
	"github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// MaxPixels bounds the decoded area; headers claiming more are rejected
// before any pixel memory is allocated.
const MaxPixels = 8192 * 8192

var (
	ErrEmpty       = errors.New("empty image data")
	ErrUnsupported = errors.New("unsupported image format")
	ErrTooLarge    = errors.New("image dimensions too large")
	ErrBadSize     = errors.New("image has no pixels")
)

type codec struct {
	decode func(io.Reader) (image.Image, error)
	config func(io.Reader) (image.Config, error)
}

// codecs is keyed by the extension filetype reports.
var codecs = map[string]codec{
	"png":  {png.Decode, png.DecodeConfig},
	"jpg":  {jpeg.Decode, jpeg.DecodeConfig},
	"gif":  {gif.Decode, gif.DecodeConfig},
	"webp": {webp.Decode, webp.DecodeConfig},
	"bmp":  {bmp.Decode, bmp.DecodeConfig},
}

var tgaCodec = codec{tga.Decode, tga.DecodeConfig}

// Decode sniffs data and decodes it. TGA carries no magic number, so it is
// only attempted when name ends in .tga or nothing else matched.
// The returned string is the detected format.
func Decode(data []byte, name string) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmpty
	}

	kind, _ := filetype.Image(data)
	if c, ok := codecs[kind.Extension]; ok {
		img, err := c.run(data)
		if err != nil {
			return nil, kind.Extension, fmt.Errorf("decoding %s: %w", kind.Extension, err)
		}
		return img, kind.Extension, nil
	}

	isTGA := strings.EqualFold(path.Ext(name), ".tga")
	if isTGA || kind == filetype.Unknown {
		img, err := tgaCodec.run(data)
		if err == nil {
			return img, "tga", nil
		}
		if isTGA || errors.Is(err, ErrTooLarge) {
			return nil, "tga", fmt.Errorf("decoding tga: %w", err)
		}
	}

	if kind != filetype.Unknown {
		return nil, kind.Extension, fmt.Errorf("%w: %s", ErrUnsupported, kind.MIME.Value)
	}
	return nil, "", ErrUnsupported
}

// run reads the header first and decodes only if the size is acceptable.
func (c codec) run(data []byte) (image.Image, error) {
	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadSize, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	return c.decode(bytes.NewReader(data))
}

// ToRGBA converts any image to *image.RGBA with its origin at (0,0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// Fit downscales img so neither side exceeds maxSize, keeping its aspect.
// Images already within bounds, or a non-positive maxSize, pass through.
func Fit(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}
	if w >= h {
		h = max(1, h*maxSize/w)
		w = maxSize
	} else {
		w = max(1, w*maxSize/h)
		h = maxSize
	}
	return transform.Resize(img, w, h, transform.Linear)
}
