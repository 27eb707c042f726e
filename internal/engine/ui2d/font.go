package ui2d

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/go-fonts/latin-modern/lmsans10bold"
	"github.com/go-fonts/latin-modern/lmsans10regular"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultFontSize is the HUD text size in pixels.
	DefaultFontSize = 15
	atlasWidth      = 512
	glyphPad        = 1
	firstRune       = ' '
	lastRune        = '~'
	fallbackRune    = '?'
)

// glyph locates one rune in the atlas. Offsets are relative to the pen
// position on the baseline.
type glyph struct {
	x0, y0, x1, y1 float32
	u0, v0, u1, v1 float32
	advance        float32
}

// Font is a pre-rasterized glyph atlas for printable ASCII.
type Font struct {
	atlas      *image.Alpha
	glyphs     map[rune]glyph
	ascent     float32
	lineHeight float32
}

// NewFont rasterizes the bundled sans face at size pixels.
func NewFont(size float64, bold bool) (*Font, error) {
	data := lmsans10regular.TTF
	if bold {
		data = lmsans10bold.TTF
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing HUD font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("sizing HUD font: %w", err)
	}
	defer face.Close()

	m := face.Metrics()
	f := &Font{
		glyphs:     make(map[rune]glyph, lastRune-firstRune+1),
		ascent:     float32(m.Ascent.Ceil()),
		lineHeight: float32(m.Height.Ceil()),
	}

	// First pass: shelf-pack glyph boxes to size the atlas.
	type placed struct {
		r      rune
		bounds image.Rectangle
		at     image.Point
	}
	var glyphs []placed
	x, y, shelf := glyphPad, glyphPad, 0
	for r := firstRune; r <= lastRune; r++ {
		b, adv, ok := face.GlyphBounds(r)
		if !ok {
			continue
		}
		rect := image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
		if x+rect.Dx()+glyphPad > atlasWidth {
			x, y, shelf = glyphPad, y+shelf+glyphPad, 0
		}
		glyphs = append(glyphs, placed{r: r, bounds: rect, at: image.Pt(x, y)})
		f.glyphs[r] = glyph{advance: float32(adv.Round())}
		x += rect.Dx() + glyphPad
		shelf = max(shelf, rect.Dy())
	}
	height := nextPow2(y + shelf + glyphPad)
	f.atlas = image.NewAlpha(image.Rect(0, 0, atlasWidth, height))

	// Second pass: draw each glyph so its bounds land on its slot.
	d := &font.Drawer{Dst: f.atlas, Src: image.Opaque, Face: face}
	for _, p := range glyphs {
		if p.bounds.Empty() {
			continue
		}
		d.Dot = fixed.P(p.at.X-p.bounds.Min.X, p.at.Y-p.bounds.Min.Y)
		d.DrawString(string(p.r))

		g := f.glyphs[p.r]
		g.x0, g.y0 = float32(p.bounds.Min.X), float32(p.bounds.Min.Y)
		g.x1, g.y1 = float32(p.bounds.Max.X), float32(p.bounds.Max.Y)
		g.u0 = float32(p.at.X) / atlasWidth
		g.v0 = float32(p.at.Y) / float32(height)
		g.u1 = float32(p.at.X+p.bounds.Dx()) / atlasWidth
		g.v1 = float32(p.at.Y+p.bounds.Dy()) / float32(height)
		f.glyphs[p.r] = g
	}
	return f, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (f *Font) lookup(r rune) glyph {
	if g, ok := f.glyphs[r]; ok {
		return g
	}
	return f.glyphs[fallbackRune]
}

// Atlas returns the coverage image.
func (f *Font) Atlas() *image.Alpha {
	return f.atlas
}

// LineHeight returns the distance between baselines.
func (f *Font) LineHeight() float32 {
	return f.lineHeight
}

// Measure returns the size of text laid out from one pen position. Newlines
// start a new line.
func (f *Font) Measure(text string) (width, height float32) {
	if text == "" {
		return 0, 0
	}
	var line float32
	lines := 1
	for _, r := range text {
		if r == '\n' {
			width = max(width, line)
			line = 0
			lines++
			continue
		}
		line += f.lookup(r).advance
	}
	return max(width, line), float32(lines) * f.lineHeight
}

// quad is a positioned glyph ready for drawing.
type quad struct {
	x, y, w, h     float32
	u0, v0, u1, v1 float32
}

// layout positions the glyphs of text with the top of the first line at y.
func (f *Font) layout(x, y float32, text string) []quad {
	quads := make([]quad, 0, len(text))
	penX, baseline := x, y+f.ascent
	for _, r := range text {
		if r == '\n' {
			penX = x
			baseline += f.lineHeight
			continue
		}
		g := f.lookup(r)
		if g.x1 > g.x0 && g.y1 > g.y0 {
			quads = append(quads, quad{
				x: penX + g.x0, y: baseline + g.y0,
				w: g.x1 - g.x0, h: g.y1 - g.y0,
				u0: g.u0, v0: g.v0, u1: g.u1, v1: g.v1,
			})
		}
		penX += g.advance
	}
	return quads
}

// coverage counts the lit atlas pixels under r's slot.
func (f *Font) coverage(r rune) int {
	g := f.lookup(r)
	w, h := float32(f.atlas.Bounds().Dx()), float32(f.atlas.Bounds().Dy())
	rect := image.Rect(int(g.u0*w), int(g.v0*h), int(g.u1*w), int(g.v1*h))
	sub := image.NewAlpha(rect)
	draw.Draw(sub, rect, f.atlas, rect.Min, draw.Src)
	n := 0
	for _, a := range sub.Pix {
		if a > 0 {
			n++
		}
	}
	return n
}
