// Package lighting describes the studio light rig the product is shown under.
package lighting

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Light is a directional light. Direction points from the surface towards
// the light.
type Light struct {
	Direction mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
}

// Rig is the fixed set of lights a frame is lit by.
type Rig struct {
	Key     Light
	Fill    Light
	Rim     Light
	Ambient mgl32.Vec3
	// Sky and Ground tint the hemispheric ambient term.
	Sky    mgl32.Vec3
	Ground mgl32.Vec3
}

// Direction converts an azimuth around +Y (degrees, 0 = +Z) and an elevation
// above the horizon (degrees) to a unit vector.
func Direction(azimuth, elevation float32) mgl32.Vec3 {
	az := mgl32.DegToRad(azimuth)
	el := mgl32.DegToRad(elevation)
	return mgl32.Vec3{
		math32.Cos(el) * math32.Sin(az),
		math32.Sin(el),
		math32.Cos(el) * math32.Cos(az),
	}.Normalize()
}

// Studio returns a three-point rig: a warm key from the front right, a cool
// fill from the left and a rim light from behind.
func Studio() Rig {
	return Rig{
		Key:     Light{Direction: Direction(35, 45), Color: mgl32.Vec3{1, 0.97, 0.92}, Intensity: 1.1},
		Fill:    Light{Direction: Direction(-60, 20), Color: mgl32.Vec3{0.85, 0.9, 1}, Intensity: 0.45},
		Rim:     Light{Direction: Direction(180, 30), Color: mgl32.Vec3{1, 1, 1}, Intensity: 0.35},
		Ambient: mgl32.Vec3{0.18, 0.18, 0.2},
		Sky:     mgl32.Vec3{0.9, 0.95, 1},
		Ground:  mgl32.Vec3{0.35, 0.33, 0.3},
	}
}

// Lights returns the directional lights in shader order.
func (r Rig) Lights() [3]Light {
	return [3]Light{r.Key, r.Fill, r.Rim}
}
