// Package catalog reads the fabric catalog export and answers colour queries.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultMaxResults caps nearest-colour results.
const DefaultMaxResults = 16

var (
	ErrFormat   = errors.New("unrecognised catalog format")
	ErrNotFound = errors.New("fabric not found")
)

// ColourGroup is one named colourway of a fabric.
type ColourGroup struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Colour string `json:"colour"`
}

// Price is the fabric's catalog price entry.
type Price struct {
	SKU   string  `json:"sku"`
	Price float64 `json:"price"`
	Name  string  `json:"name"`
}

// Thumbnails holds preview image URLs.
type Thumbnails struct {
	Small  string `json:"small,omitempty"`
	Medium string `json:"medium,omitempty"`
	Large  string `json:"large,omitempty"`
}

// Fabric is a flattened catalog entry.
type Fabric struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Hex          string            `json:"hex"` // representative colour
	Type         string            `json:"type"`
	ColourGroups []ColourGroup     `json:"colourGroups"`
	Price        Price             `json:"price"`
	Maps         map[string]string `json:"maps"`
	Thumbnails   Thumbnails        `json:"thumbnails"`
	// LockedScale divides the texture repeat; larger means a larger pattern.
	LockedScale       float32 `json:"lockedScale"`
	LockedNormalScale float32 `json:"lockedNormalScale"`
}

var rgbDigits = regexp.MustCompile(`\d+`)

// NormalizeHex lowercases a colour, adds the leading '#', expands short hex
// and converts rgb()/rgba() notation. Empty input is black.
func NormalizeHex(s string) string {
	clean := strings.ToLower(strings.TrimSpace(s))
	if clean == "" {
		return "#000000"
	}
	if strings.HasPrefix(clean, "rgb") {
		if m := rgbDigits.FindAllString(clean, 3); len(m) == 3 {
			var c [3]int
			for i, v := range m {
				n, _ := strconv.Atoi(v)
				c[i] = min(n, 255)
			}
			return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
		}
	}
	if !strings.HasPrefix(clean, "#") {
		clean = "#" + clean
	}
	if len(clean) == 4 {
		clean = string([]byte{'#', clean[1], clean[1], clean[2], clean[2], clean[3], clean[3]})
	}
	return clean
}

// scaling returns the tiling parameters for a fabric type name.
func scaling(typeName string) (scale, normal float32) {
	t := strings.ToLower(typeName)
	switch {
	case strings.Contains(t, "satin"), strings.Contains(t, "silk"):
		return 5, 0.2
	case strings.Contains(t, "cotton"), strings.Contains(t, "jersey"), strings.Contains(t, "knit"):
		return 15, 0.6
	case strings.Contains(t, "leather"):
		return 5, 1
	case strings.Contains(t, "fur"):
		return 5, 0.8
	case strings.Contains(t, "denim"):
		return 20, 1.2
	case strings.Contains(t, "mesh"):
		return 25, 0.5
	}
	return 2, 1
}

// Catalog is an immutable set of fabrics.
type Catalog struct {
	fabrics []Fabric
	byID    map[string]int
}

// New indexes fabrics. Later duplicates of an id are ignored.
func New(fabrics []Fabric) *Catalog {
	c := &Catalog{fabrics: fabrics, byID: make(map[string]int, len(fabrics))}
	for i, f := range fabrics {
		if _, dup := c.byID[f.ID]; !dup {
			c.byID[f.ID] = i
		}
	}
	return c
}

// Load reads and parses a catalog export file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	fabrics, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return New(fabrics), nil
}

// Len returns the number of fabrics.
func (c *Catalog) Len() int {
	return len(c.fabrics)
}

// All returns every fabric in catalog order.
func (c *Catalog) All() []Fabric {
	return slices.Clone(c.fabrics)
}

// Find looks a fabric up by id.
func (c *Catalog) Find(id string) (Fabric, error) {
	i, ok := c.byID[id]
	if !ok {
		return Fabric{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return c.fabrics[i], nil
}

// Distance is the CIELAB ΔE between two colours (0-100 scale).
func Distance(a, b string) float64 {
	ca, errA := colorful.Hex(NormalizeHex(a))
	cb, errB := colorful.Hex(NormalizeHex(b))
	if errA != nil || errB != nil {
		return 100
	}
	return ca.DistanceLab(cb) * 100
}

// FilterByColor returns fabrics matching target exactly, either by their
// representative colour or one of their colour groups, with representative
// matches first. Without exact matches it returns the limit nearest fabrics
// by ΔE; limit <= 0 means DefaultMaxResults.
func (c *Catalog) FilterByColor(target string, limit int) []Fabric {
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	want := NormalizeHex(target)

	var exact []Fabric
	for _, f := range c.fabrics {
		if f.Hex == want || slices.ContainsFunc(f.ColourGroups, func(g ColourGroup) bool { return g.Colour == want }) {
			exact = append(exact, f)
		}
	}
	if len(exact) > 0 {
		slices.SortStableFunc(exact, func(a, b Fabric) int {
			switch {
			case a.Hex == want && b.Hex != want:
				return -1
			case b.Hex == want && a.Hex != want:
				return 1
			}
			return 0
		})
		return exact
	}

	type ranked struct {
		fabric   Fabric
		distance float64
	}
	all := make([]ranked, len(c.fabrics))
	for i, f := range c.fabrics {
		all[i] = ranked{fabric: f, distance: Distance(f.Hex, want)}
	}
	slices.SortStableFunc(all, func(a, b ranked) int {
		switch {
		case a.distance < b.distance:
			return -1
		case a.distance > b.distance:
			return 1
		}
		return 0
	})

	out := make([]Fabric, 0, min(limit, len(all)))
	for _, r := range all[:min(limit, len(all))] {
		out = append(out, r.fabric)
	}
	return out
}

// decodeEntries accepts either a bare array or an object with a data array.
func decodeEntries(data []byte) ([]rawItem, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrFormat
	}
	switch data[0] {
	case '[':
		var items []rawItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	case '{':
		var wrapped struct {
			Data []rawItem `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		return wrapped.Data, nil
	}
	return nil, ErrFormat
}
