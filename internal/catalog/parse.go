package catalog

import (
	"bytes"
	"encoding/json"
	"strings"
)

// flexID accepts both numeric and string ids.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	*id = flexID(b)
	return nil
}

// The export nests every relation as {"data": {"id", "attributes"}}.

type rawNamed struct {
	Data *struct {
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

type rawColourGroup struct {
	ID         flexID `json:"id"`
	Attributes struct {
		Name   string `json:"name"`
		Colour string `json:"colour"`
	} `json:"attributes"`
}

type rawFormat struct {
	URL string `json:"url"`
}

type rawImage struct {
	MapType string `json:"mapType"`
	Image   struct {
		Data *struct {
			Attributes struct {
				URL     string               `json:"url"`
				Formats map[string]rawFormat `json:"formats"`
			} `json:"attributes"`
		} `json:"data"`
	} `json:"image"`
}

type rawItem struct {
	ID         flexID `json:"id"`
	Attributes struct {
		Name         string   `json:"name"`
		Hex          string   `json:"hex"`
		Type         rawNamed `json:"type"`
		ColourGroups struct {
			Data []rawColourGroup `json:"data"`
		} `json:"colourGroups"`
		Price struct {
			Data *struct {
				Attributes Price `json:"attributes"`
			} `json:"data"`
		} `json:"price"`
		Images []rawImage `json:"images"`
	} `json:"attributes"`
}

// Parse flattens the nested catalog export into fabrics.
func Parse(data []byte) ([]Fabric, error) {
	items, err := decodeEntries(data)
	if err != nil {
		return nil, err
	}
	fabrics := make([]Fabric, 0, len(items))
	for _, it := range items {
		fabrics = append(fabrics, flatten(it))
	}
	return fabrics, nil
}

func flatten(it rawItem) Fabric {
	attr := it.Attributes

	typeName := "Unknown"
	if attr.Type.Data != nil && attr.Type.Data.Attributes.Name != "" {
		typeName = attr.Type.Data.Attributes.Name
	}
	scale, normal := scaling(typeName)

	f := Fabric{
		ID:                string(it.ID),
		Name:              attr.Name,
		Type:              typeName,
		ColourGroups:      make([]ColourGroup, 0, len(attr.ColourGroups.Data)),
		Maps:              make(map[string]string),
		LockedScale:       scale,
		LockedNormalScale: normal,
	}

	// The root hex is mostly a #000000 placeholder; the first colour group
	// carries the real colour.
	raw := attr.Hex
	if groups := attr.ColourGroups.Data; len(groups) > 0 && groups[0].Attributes.Colour != "" {
		raw = groups[0].Attributes.Colour
	}
	f.Hex = NormalizeHex(raw)

	for _, g := range attr.ColourGroups.Data {
		f.ColourGroups = append(f.ColourGroups, ColourGroup{
			ID:     string(g.ID),
			Name:   g.Attributes.Name,
			Colour: NormalizeHex(g.Attributes.Colour),
		})
	}
	if attr.Price.Data != nil {
		f.Price = attr.Price.Data.Attributes
	}

	for _, img := range attr.Images {
		if img.Image.Data == nil {
			continue
		}
		a := img.Image.Data.Attributes
		if img.MapType != "" {
			f.Maps[img.MapType] = a.URL
		}
		if img.MapType == "map" || f.Thumbnails.Medium == "" {
			f.Thumbnails = Thumbnails{
				Small:  firstURL(a.Formats, a.URL, "thumbnail"),
				Medium: firstURL(a.Formats, a.URL, "medium", "small"),
				Large:  firstURL(a.Formats, a.URL, "large"),
			}
		}
	}
	return f
}

func firstURL(formats map[string]rawFormat, fallback string, names ...string) string {
	for _, n := range names {
		if u := strings.TrimSpace(formats[n].URL); u != "" {
			return u
		}
	}
	return fallback
}
