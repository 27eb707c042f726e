package catalog

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHex(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"#FF0000", "#ff0000"},
		{" ff0000 ", "#ff0000"},
		{"#f00", "#ff0000"},
		{"abc", "#aabbcc"},
		{"rgb(255, 0, 128)", "#ff0080"},
		{"RGBA(1,2,3,0.5)", "#010203"},
		{"", "#000000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeHex(tt.in))
		})
	}
}

func TestLoadFlattensExport(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "fabrics.json"))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	cotton, err := c.Find("11")
	require.NoError(t, err)
	assert.Equal(t, "Brushed Cotton Red", cotton.Name)
	assert.Equal(t, "#ff0000", cotton.Hex, "first colour group wins over the root hex")
	assert.Equal(t, "Cotton Jersey", cotton.Type)
	assert.Equal(t, float32(15), cotton.LockedScale)
	assert.Equal(t, float32(0.6), cotton.LockedNormalScale)
	assert.Equal(t, []ColourGroup{
		{ID: "1", Name: "Red", Colour: "#ff0000"},
		{ID: "2", Name: "Navy", Colour: "#000080"},
	}, cotton.ColourGroups)
	assert.Equal(t, Price{SKU: "CT-RED", Price: 12.5, Name: "Standard"}, cotton.Price)
	assert.Equal(t, map[string]string{"map": "/uploads/ct.png", "normalMap": "/uploads/ct_n.png"}, cotton.Maps)
	assert.Equal(t, Thumbnails{
		Small:  "/uploads/thumb_ct.png",
		Medium: "/uploads/small_ct.png",
		Large:  "/uploads/ct.png",
	}, cotton.Thumbnails)

	satin, err := c.Find("12")
	require.NoError(t, err)
	assert.Equal(t, "#000080", satin.Hex)
	assert.Equal(t, float32(5), satin.LockedScale)
	assert.Equal(t, float32(0.2), satin.LockedNormalScale)

	mystery, err := c.Find("13")
	require.NoError(t, err)
	assert.Equal(t, "Unknown", mystery.Type)
	assert.Equal(t, "#000000", mystery.Hex)
	assert.Equal(t, float32(2), mystery.LockedScale)
	assert.Empty(t, mystery.Maps)

	_, err = c.Find("99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseBareArray(t *testing.T) {
	fabrics, err := Parse([]byte(`[{"id": 1, "attributes": {"name": "Denim", "type": {"data": {"attributes": {"name": "Raw Denim"}}}}}]`))
	require.NoError(t, err)
	require.Len(t, fabrics, 1)
	assert.Equal(t, float32(20), fabrics[0].LockedScale)
	assert.Equal(t, float32(1.2), fabrics[0].LockedNormalScale)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte(`"nope"`))
	assert.ErrorIs(t, err, ErrFormat)
	_, err = Parse(nil)
	assert.ErrorIs(t, err, ErrFormat)
	_, err = Parse([]byte(`[{"id": `))
	assert.Error(t, err)
}

func TestFilterByColorExactMatches(t *testing.T) {
	c := New([]Fabric{
		{ID: "group-only", Hex: "#ffffff", ColourGroups: []ColourGroup{{Colour: "#ff0000"}}},
		{ID: "other", Hex: "#00ff00"},
		{ID: "representative", Hex: "#ff0000"},
	})

	got := c.FilterByColor("#F00", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "representative", got[0].ID)
	assert.Equal(t, "group-only", got[1].ID)
}

func TestFilterByColorNearest(t *testing.T) {
	c := New([]Fabric{
		{ID: "black", Hex: "#000000"},
		{ID: "dark-red", Hex: "#cc0000"},
		{ID: "orange", Hex: "#ff8800"},
		{ID: "blue", Hex: "#0000ff"},
	})

	got := c.FilterByColor("#dd0000", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "dark-red", got[0].ID)
	assert.Equal(t, "orange", got[1].ID)
}

func TestFilterByColorCapsResults(t *testing.T) {
	var fabrics []Fabric
	for i := 0; i < 40; i++ {
		fabrics = append(fabrics, Fabric{ID: fmt.Sprint(i), Hex: fmt.Sprintf("#%02x0000", i*6)})
	}
	got := New(fabrics).FilterByColor("#123456", 0)
	assert.Len(t, got, DefaultMaxResults)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance("#ff0000", "f00"), 1e-9)
	assert.Greater(t, Distance("#000000", "#ffffff"), 90.0)
	assert.Less(t, Distance("#cc0000", "#dd0000"), Distance("#cc0000", "#0000ff"))
	assert.Equal(t, 100.0, Distance("not-a-colour", "#000000"))
}
