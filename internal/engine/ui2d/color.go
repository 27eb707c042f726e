package ui2d

import (
	"github.com/lucasb-eyer/go-colorful"
)

// Color represents an RGBA color with float components (0.0 to 1.0).
type Color struct {
	R, G, B, A float32
}

// Theme colors for the customizer HUD.
var (
	ColorTransparent = Color{0, 0, 0, 0}
	ColorWhite       = Color{1, 1, 1, 1}

	ColorPanelBg      = Color{0.98, 0.98, 0.99, 0.92}
	ColorPanelBorder  = Color{0.82, 0.83, 0.86, 1}
	ColorTitleBg      = Color{0.94, 0.95, 0.97, 1}
	ColorButtonNormal = Color{0.95, 0.95, 0.97, 1}
	ColorButtonHover  = Color{0.89, 0.91, 0.95, 1}
	ColorButtonActive = Color{0.23, 0.51, 0.96, 1}
	ColorText         = Color{0.12, 0.13, 0.16, 1}
	ColorTextDim      = Color{0.45, 0.47, 0.52, 1}
	ColorTextOnAccent = Color{1, 1, 1, 1}
	ColorHighlight    = Color{0.23, 0.51, 0.96, 1}
)

// RGBA creates a color from 8-bit RGBA values (0-255).
func RGBA(r, g, b, a uint8) Color {
	return Color{
		R: float32(r) / 255.0,
		G: float32(g) / 255.0,
		B: float32(b) / 255.0,
		A: float32(a) / 255.0,
	}
}

// FromHex parses "#rrggbb" or "#rgb". Invalid input yields fallback.
func FromHex(s string, fallback Color) Color {
	c, err := colorful.Hex(s)
	if err != nil {
		return fallback
	}
	return Color{float32(c.R), float32(c.G), float32(c.B), 1}
}

// WithAlpha returns a copy of the color with a different alpha value.
func (c Color) WithAlpha(a float32) Color {
	return Color{c.R, c.G, c.B, a}
}

// Darken returns a darker version of the color.
func (c Color) Darken(factor float32) Color {
	return Color{
		R: c.R * (1 - factor),
		G: c.G * (1 - factor),
		B: c.B * (1 - factor),
		A: c.A,
	}
}

// Luminance is the relative brightness used to pick readable text.
func (c Color) Luminance() float32 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}
