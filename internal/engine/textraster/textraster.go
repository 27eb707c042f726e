// Package textraster renders multi-line decal text into RGBA bitmaps using the
// bundled Latin Modern faces.
package textraster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/go-fonts/latin-modern/lmmono10regular"
	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/go-fonts/latin-modern/lmsans10bold"
	"github.com/go-fonts/latin-modern/lmsans10regular"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

const (
	// LineHeight is the line advance as a multiple of the font size.
	LineHeight = 1.2
	// DefaultPadding surrounds the text block on every side, in pixels.
	DefaultPadding = 20
	// MaxDimension bounds either side of a generated bitmap.
	MaxDimension = 4096
	// maxStrokeRadius bounds the outline dilation in pixels.
	maxStrokeRadius = 32
)

var (
	ErrInvalidSize  = errors.New("font size must be positive")
	ErrInvalidColor = errors.New("invalid text colour")
	ErrTooLarge     = errors.New("text bitmap too large")
)

// Stroke outlines glyphs; Width follows canvas semantics (centred on the outline).
type Stroke struct {
	Width float64
	Color string
}

// Spec describes one text bitmap.
type Spec struct {
	Text    string
	Family  string
	Size    float64
	Color   string
	Stroke  *Stroke
	Padding int
	Regular bool // bold unless set
}

// Key identifies the bitmap a Spec produces; equal keys render identical pixels.
func (s Spec) Key() string {
	stroke := ""
	if s.Stroke != nil {
		stroke = fmt.Sprintf("%g/%s", s.Stroke.Width, s.Stroke.Color)
	}
	return fmt.Sprintf("%q|%s|%g|%s|%s|%d|%t", s.Text, s.Family, s.Size, s.Color, stroke, s.Padding, s.Regular)
}

type faceKey struct {
	style string
	size  float64
}

// Rasterizer caches parsed fonts and sized faces. Faces carry glyph buffers,
// so Rasterize must be called from one goroutine at a time.
type Rasterizer struct {
	mu    sync.Mutex
	fonts map[string]*opentype.Font
	faces map[faceKey]font.Face
}

// New parses the bundled faces.
func New() (*Rasterizer, error) {
	r := &Rasterizer{
		fonts: make(map[string]*opentype.Font),
		faces: make(map[faceKey]font.Face),
	}
	bundled := map[string][]byte{
		"sans":       lmsans10regular.TTF,
		"sans-bold":  lmsans10bold.TTF,
		"serif":      lmroman10regular.TTF,
		"serif-bold": lmroman10bold.TTF,
		"mono":       lmmono10regular.TTF,
		"mono-bold":  lmmono10regular.TTF,
	}
	for style, data := range bundled {
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s face: %w", style, err)
		}
		r.fonts[style] = f
	}
	return r, nil
}

// Style maps a CSS-like family name onto a bundled style.
func Style(family string, regular bool) string {
	base := "sans"
	switch strings.ToLower(strings.TrimSpace(family)) {
	case "serif", "times", "times new roman", "georgia", "garamond", "playfair display":
		base = "serif"
	case "monospace", "mono", "courier", "courier new", "roboto mono", "fira code":
		base = "mono"
	}
	if regular {
		return base
	}
	return base + "-bold"
}

func (r *Rasterizer) face(style string, size float64) (font.Face, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := faceKey{style, size}
	if f, ok := r.faces[key]; ok {
		return f, nil
	}
	face, err := opentype.NewFace(r.fonts[style], &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	r.faces[key] = face
	return face, nil
}

func parseColor(s string) (color.Color, error) {
	c, err := colorful.Hex(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// Rasterize draws each line centred horizontally with its top at
// padding + i*LineHeight*Size. The outline is painted beneath the fill.
func (r *Rasterizer) Rasterize(spec Spec) (*image.RGBA, error) {
	if spec.Size <= 0 {
		return nil, ErrInvalidSize
	}
	fill, err := parseColor(spec.Color)
	if err != nil {
		return nil, err
	}
	var outline color.Color
	radius := 0
	if spec.Stroke != nil && spec.Stroke.Width > 0 {
		if outline, err = parseColor(spec.Stroke.Color); err != nil {
			return nil, err
		}
		radius = min(int(spec.Stroke.Width/2+0.5), maxStrokeRadius)
	}

	face, err := r.face(Style(spec.Family, spec.Regular), spec.Size)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(norm.NFC.String(spec.Text), "\n")
	widths := make([]fixed.Int26_6, len(lines))
	var widest fixed.Int26_6
	for i, line := range lines {
		widths[i] = font.MeasureString(face, line)
		widest = max(widest, widths[i])
	}

	pad := spec.Padding
	lineHeight := spec.Size * LineHeight
	w := widest.Ceil() + 2*pad
	h := int(float64(len(lines))*lineHeight+0.5) + 2*pad
	w, h = max(w, 1), max(h, 1)
	if w > MaxDimension || h > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	ascent := face.Metrics().Ascent

	drawLines := func(src image.Image, dx, dy int) {
		d := &font.Drawer{Dst: img, Src: src, Face: face}
		for i, line := range lines {
			top := float64(pad) + float64(i)*lineHeight
			x := (fixed.I(w) - widths[i]) / 2
			d.Dot = fixed.Point26_6{
				X: x + fixed.I(dx),
				Y: fixed.Int26_6(top*64) + ascent + fixed.I(dy),
			}
			d.DrawString(line)
		}
	}

	if outline != nil {
		src := image.NewUniform(outline)
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx*dx+dy*dy <= radius*radius {
					drawLines(src, dx, dy)
				}
			}
		}
	}
	drawLines(image.NewUniform(fill), 0, 0)

	return img, nil
}
