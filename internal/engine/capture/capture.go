// Package capture writes still images of the rendered product.
package capture

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"
)

var (
	ErrSizeMismatch = errors.New("pixel data size mismatch")
	ErrFormat       = errors.New("unsupported capture format")
)

// Format is an output encoding.
type Format string

const (
	PNG  Format = "png"
	WebP Format = "webp"
)

// ParseFormat accepts "png" and "webp" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case PNG, WebP:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, s)
}

// Capturer names and writes captures.
type Capturer struct {
	outputDir string
	prefix    string
	format    Format

	// Now stamps file names; tests pin it.
	Now func() time.Time
}

// New creates a capturer. An empty prefix becomes "custom-product".
func New(outputDir, prefix string, format Format) *Capturer {
	if prefix == "" {
		prefix = "custom-product"
	}
	if format == "" {
		format = PNG
	}
	return &Capturer{outputDir: outputDir, prefix: prefix, format: format, Now: time.Now}
}

// Filename returns the path the next capture would be written to:
// <prefix>-<unix millis>.<format>.
func (c *Capturer) Filename() string {
	name := fmt.Sprintf("%s-%d.%s", c.prefix, c.Now().UnixMilli(), c.format)
	if c.outputDir != "" {
		name = filepath.Join(c.outputDir, name)
	}
	return name
}

// FromPixels converts a bottom-up RGBA framebuffer read into a top-down image.
func FromPixels(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return nil, fmt.Errorf("%w: expected %d bytes for %dx%d, got %d",
			ErrSizeMismatch, max(width*height*4, 0), width, height, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	row := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * row
		copy(img.Pix[y*img.Stride:y*img.Stride+row], pixels[src:src+row])
	}
	return img, nil
}

// Encode writes img to w in format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case PNG:
		return png.Encode(w, img)
	case WebP:
		return nativewebp.Encode(w, img, nil)
	}
	return fmt.Errorf("%w: %q", ErrFormat, format)
}

// Save writes img and returns its path.
func (c *Capturer) Save(img image.Image) (string, error) {
	if c.outputDir != "" {
		if err := os.MkdirAll(c.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	path := c.Filename()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	if err := Encode(f, img, c.format); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("encoding %s: %w", c.format, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// SavePixels flips and writes a framebuffer read.
func (c *Capturer) SavePixels(pixels []byte, width, height int) (string, error) {
	img, err := FromPixels(pixels, width, height)
	if err != nil {
		return "", err
	}
	return c.Save(img)
}
