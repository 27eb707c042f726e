package textraster

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRasterizer(t *testing.T) *Rasterizer {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	return r
}

func TestStyle(t *testing.T) {
	tests := []struct {
		family  string
		regular bool
		want    string
	}{
		{"Inter", false, "sans-bold"},
		{"Inter", true, "sans"},
		{"Georgia", false, "serif-bold"},
		{" monospace ", true, "mono"},
		{"", false, "sans-bold"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Style(tt.family, tt.regular), tt.family)
	}
}

func TestRasterizeDimensions(t *testing.T) {
	r := newRasterizer(t)

	one, err := r.Rasterize(Spec{Text: "NEW TEXT", Family: "Inter", Size: 64, Color: "#ffffff", Padding: DefaultPadding})
	require.NoError(t, err)
	two, err := r.Rasterize(Spec{Text: "NEW TEXT\nNEW TEXT", Family: "Inter", Size: 64, Color: "#ffffff", Padding: DefaultPadding})
	require.NoError(t, err)

	line := 64 * LineHeight
	assert.Equal(t, int(line+0.5)+2*DefaultPadding, one.Bounds().Dy())
	assert.Equal(t, int(2*line+0.5)+2*DefaultPadding, two.Bounds().Dy())
	assert.Equal(t, one.Bounds().Dx(), two.Bounds().Dx())
	assert.Greater(t, one.Bounds().Dx(), 2*DefaultPadding)
}

func TestRasterizeFillsWithColour(t *testing.T) {
	r := newRasterizer(t)
	img, err := r.Rasterize(Spec{Text: "H", Size: 48, Color: "#ff0000"})
	require.NoError(t, err)

	var opaque int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.A == 0xff {
				opaque++
				assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, c)
			}
		}
	}
	assert.Positive(t, opaque)
}

func TestStrokeWidensCoverage(t *testing.T) {
	r := newRasterizer(t)
	covered := func(spec Spec) int {
		img, err := r.Rasterize(spec)
		require.NoError(t, err)
		n := 0
		for i := 3; i < len(img.Pix); i += 4 {
			if img.Pix[i] > 0 {
				n++
			}
		}
		return n
	}

	base := Spec{Text: "Go", Size: 48, Color: "#ffffff", Padding: 10}
	stroked := base
	stroked.Stroke = &Stroke{Width: 6, Color: "#000000"}

	assert.Greater(t, covered(stroked), covered(base))
}

func TestRasterizeErrors(t *testing.T) {
	r := newRasterizer(t)

	_, err := r.Rasterize(Spec{Text: "x", Size: 0, Color: "#fff"})
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = r.Rasterize(Spec{Text: "x", Size: 12, Color: "blue-ish"})
	assert.ErrorIs(t, err, ErrInvalidColor)

	_, err = r.Rasterize(Spec{Text: "x", Size: 12, Color: "#fff", Stroke: &Stroke{Width: 2, Color: "nope"}})
	assert.ErrorIs(t, err, ErrInvalidColor)

	_, err = r.Rasterize(Spec{Text: "x", Size: 5000, Color: "#fff"})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestEmptyTextStillProducesBitmap(t *testing.T) {
	r := newRasterizer(t)
	img, err := r.Rasterize(Spec{Size: 10, Color: "#000000", Padding: 4})
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 12+8, img.Bounds().Dy())
}

func TestSpecKey(t *testing.T) {
	a := Spec{Text: "A", Size: 10, Color: "#fff"}
	b := a
	assert.Equal(t, a.Key(), b.Key())

	b.Stroke = &Stroke{Width: 1, Color: "#000"}
	assert.NotEqual(t, a.Key(), b.Key())

	c := a
	c.Text = "B"
	assert.NotEqual(t, a.Key(), c.Key())
}
