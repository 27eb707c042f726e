package ui2d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFontAtlas(t *testing.T) {
	f, err := NewFont(DefaultFontSize, false)
	require.NoError(t, err)

	assert.Positive(t, f.LineHeight())
	assert.Positive(t, f.coverage('A'))
	assert.Zero(t, f.coverage(' '))

	w, h := f.Measure("")
	assert.Zero(t, w)
	assert.Zero(t, h)

	wa, _ := f.Measure("a")
	wb, _ := f.Measure("b")
	wab, hab := f.Measure("ab")
	assert.Equal(t, wa+wb, wab)
	assert.Equal(t, f.LineHeight(), hab)

	w2, h2 := f.Measure("ab\na")
	assert.Equal(t, wab, w2)
	assert.Equal(t, 2*f.LineHeight(), h2)

	unknown, _ := f.Measure("é")
	fallback, _ := f.Measure("?")
	assert.Equal(t, fallback, unknown)
}

func TestFontLayout(t *testing.T) {
	f, err := NewFont(DefaultFontSize, true)
	require.NoError(t, err)

	assert.Empty(t, f.layout(0, 0, " "))

	quads := f.layout(10, 20, "A\nA")
	require.Len(t, quads, 2)
	assert.Equal(t, quads[0].x, quads[1].x)
	assert.InDelta(t, f.LineHeight(), quads[1].y-quads[0].y, 1e-4)
	assert.GreaterOrEqual(t, quads[0].y, float32(20), "glyph stays below the line top")
	assert.Less(t, quads[0].u0, quads[0].u1)
}

func TestBatchQuads(t *testing.T) {
	f, err := NewFont(DefaultFontSize, false)
	require.NoError(t, err)
	b := &batch{font: f}

	b.DrawRect(0, 0, 10, 10, ColorWhite)
	assert.Len(t, b.solid, 6*solidFloats)
	b.DrawRect(0, 0, 0, 10, ColorWhite)
	assert.Len(t, b.solid, 6*solidFloats, "empty rects are skipped")

	b.DrawRectOutline(0, 0, 10, 10, 1, ColorWhite)
	assert.Len(t, b.solid, 5*6*solidFloats)

	b.DrawText(0, 0, "Hi", ColorText)
	assert.Len(t, b.text, 2*6*textFloats)

	b.reset()
	assert.Empty(t, b.solid)
	assert.Empty(t, b.text)
}

type drawnText struct {
	x, y float32
	text string
	c    Color
}

type fakeCanvas struct {
	rects []Rect
	texts []drawnText
}

func (f *fakeCanvas) DrawRect(x, y, w, h float32, _ Color) {
	f.rects = append(f.rects, Rect{x, y, w, h})
}

func (f *fakeCanvas) DrawRectOutline(x, y, w, h, _ float32, c Color) {
	f.DrawRect(x, y, w, h, c)
}

func (f *fakeCanvas) DrawText(x, y float32, text string, c Color) {
	f.texts = append(f.texts, drawnText{x, y, text, c})
}

func (f *fakeCanvas) MeasureText(text string) (float32, float32) {
	return float32(8 * len(text)), 12
}

func (f *fakeCanvas) Size() (int, int) { return 800, 600 }

func (f *fakeCanvas) text(s string) (drawnText, bool) {
	for _, t := range f.texts {
		if t.text == s {
			return t, true
		}
	}
	return drawnText{}, false
}

// frame runs one HUD frame with the pointer at (x, y).
func frame(c *Context, x, y float32, down bool, draw func()) {
	in := c.Input()
	in.MouseX, in.MouseY, in.MouseLeftDown = x, y, down
	c.Begin()
	draw()
	c.End()
}

func TestButtonClick(t *testing.T) {
	canvas := &fakeCanvas{}
	c := NewContext(canvas)
	var clicks int
	ui := func() {
		c.BeginWindow("tools", 10, 10, 200, 0, "Tools")
		if c.Button("place", 0, "Place") {
			clicks++
		}
		c.EndWindow()
	}

	frame(c, 0, 0, false, ui)
	label, ok := canvas.text("Place")
	require.True(t, ok)

	// Button spans the panel width below the title bar.
	bx, by := float32(10+padding), float32(10+titleBarH+padding)
	assert.InDelta(t, bx+(200-2*padding-40)/2, label.x, 1e-4)

	frame(c, bx+5, by+5, true, ui)
	assert.Equal(t, 1, clicks)
	frame(c, bx+5, by+5, true, ui)
	assert.Equal(t, 1, clicks, "holding does not repeat")
	frame(c, bx+5, by+5, false, ui)
	frame(c, bx+5, by+5, true, ui)
	assert.Equal(t, 2, clicks)
}

func TestOnlyOneWidgetTakesAPress(t *testing.T) {
	c := NewContext(&fakeCanvas{})
	var a, b bool
	ui := func() {
		c.BeginWindow("w", 0, 0, 200, 0, "W")
		a = c.Button("a", 100, "A")
		c.Row()
		b = c.Button("b", 100, "B")
		c.EndWindow()
		c.BeginWindow("w2", 0, 0, 200, 0, "W2")
		c.EndWindow()
	}
	frame(c, 0, 0, false, ui)
	frame(c, padding+1, titleBarH+padding+1, true, ui)
	assert.True(t, a)
	assert.False(t, b)
}

func TestWindowAutoHeightAndMouseCapture(t *testing.T) {
	c := NewContext(&fakeCanvas{})
	ui := func() {
		c.BeginWindow("parts", 100, 100, 150, 0, "Parts")
		for _, name := range []string{"front", "back", "waistband"} {
			c.Selectable(name, name, name == "back")
		}
		c.EndWindow()
	}
	frame(c, 0, 0, false, ui)
	frame(c, 0, 0, false, ui)

	ws := c.windows["parts"]
	want := float32(titleBarH+padding) + 3*selectableH + 2*spacing + padding
	assert.InDelta(t, want, ws.H, 1e-4)

	assert.False(t, c.WantsMouse())
	assert.True(t, c.Over(120, 120))
	assert.False(t, c.Over(10, 10))

	frame(c, 120, 120+want/2, false, ui)
	assert.True(t, c.WantsMouse())
}

func TestSelectableAndSwatch(t *testing.T) {
	canvas := &fakeCanvas{}
	c := NewContext(canvas)
	var picked string
	var swatch int
	colors := []Color{ColorWhite, ColorHighlight, ColorText}
	ui := func() {
		c.BeginWindow("p", 0, 0, 100, 0, "P")
		for _, name := range []string{"a", "b"} {
			if c.Selectable(name, name, false) {
				picked = name
			}
		}
		c.Row()
		for i, col := range colors {
			if c.Swatch(string(rune('x'+i)), 40, col, false) {
				swatch = i
			}
		}
		c.EndWindow()
	}
	frame(c, 0, 0, false, ui)

	rowB := float32(titleBarH+padding) + selectableH + spacing
	frame(c, 50, rowB+2, true, ui)
	assert.Equal(t, "b", picked)

	// Two 40px swatches fit in 84px of content width; the third wraps.
	top := rowB + selectableH + spacing
	frame(c, 0, 0, false, ui)
	frame(c, padding+5, top+40+spacing+5, true, ui)
	assert.Equal(t, 2, swatch)
}

func TestTitleBarDragsWindow(t *testing.T) {
	c := NewContext(&fakeCanvas{})
	ui := func() {
		c.BeginWindow("w", 50, 50, 100, 80, "W")
		c.EndWindow()
	}
	frame(c, 60, 60, false, ui)
	frame(c, 60, 60, true, ui)
	frame(c, 90, 70, true, ui)
	assert.True(t, c.WantsMouse())
	frame(c, 90, 70, false, ui)

	ws := c.windows["w"]
	assert.Equal(t, float32(80), ws.X)
	assert.Equal(t, float32(60), ws.Y)
	assert.False(t, ws.Moving)
}

func TestFromHex(t *testing.T) {
	assert.Equal(t, Color{1, 1, 1, 1}, FromHex("#ffffff", ColorText))
	assert.Equal(t, ColorText, FromHex("nope", ColorText))
	assert.Greater(t, ColorWhite.Luminance(), ColorText.Luminance())
}
