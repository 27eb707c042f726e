// Package camera provides the orbiting product camera and its interaction lock.
package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/picking"
)

// OrbitCamera orbits around a target point using spherical coordinates.
type OrbitCamera struct {
	Target mgl32.Vec3

	// Spherical coordinates
	Distance float32 // Distance from target
	Polar    float32 // Angle from +Y (radians)
	Azimuth  float32 // Angle around +Y (radians), 0 places the camera on +Z

	// Constraints
	MinDistance float32
	MaxDistance float32
	MinPolar    float32
	MaxPolar    float32

	// Projection
	FOVDegrees float32
	Near, Far  float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	// Damping eases drag input over several updates when enabled.
	Damping       bool
	DampingFactor float32

	// Control gates user input; placement and the transform gadget suspend it.
	Control *OrbitControl

	deltaPolar   float32
	deltaAzimuth float32
}

// NewOrbitCamera creates an orbit camera framed on the product at the origin.
func NewOrbitCamera() *OrbitCamera {
	c := &OrbitCamera{
		MinDistance:     0.5,
		MaxDistance:     10,
		MinPolar:        0,
		MaxPolar:        math32.Pi / 1.75,
		FOVDegrees:      35,
		Near:            0.1,
		Far:             100,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
		Damping:         true,
		DampingFactor:   0.05,
		Control:         NewOrbitControl(),
	}
	c.SetPosition(mgl32.Vec3{0, 0.5, 6})
	return c
}

// SetPosition places the camera at pos, keeping the current target.
func (c *OrbitCamera) SetPosition(pos mgl32.Vec3) {
	offset := pos.Sub(c.Target)
	c.Distance = offset.Len()
	if c.Distance == 0 {
		return
	}
	c.Polar = math32.Acos(mgl32.Clamp(offset[1]/c.Distance, -1, 1))
	c.Azimuth = math32.Atan2(offset[0], offset[2])
	c.clamp()
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	sinPolar := math32.Sin(c.Polar)
	return c.Target.Add(mgl32.Vec3{
		c.Distance * sinPolar * math32.Sin(c.Azimuth),
		c.Distance * math32.Cos(c.Polar),
		c.Distance * sinPolar * math32.Cos(c.Azimuth),
	})
}

// View returns the view matrix for this camera.
func (c *OrbitCamera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, mgl32.Vec3{0, 1, 0})
}

// Projection returns the perspective projection for the given aspect ratio.
func (c *OrbitCamera) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOVDegrees), aspect, c.Near, c.Far)
}

// ViewProjection returns Projection * View.
func (c *OrbitCamera) ViewProjection(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Mul4(c.View())
}

// Ray returns the world-space pick ray through a pointer position.
func (c *OrbitCamera) Ray(vp picking.Viewport, clientX, clientY float32) picking.Ray {
	inv := c.ViewProjection(vp.Aspect()).Inv()
	return picking.ScreenToRay(vp.NDC(clientX, clientY), inv)
}

// HandleDrag queues rotation from a pointer drag delta in pixels.
// Input is dropped while the orbit control is suspended.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	if !c.Control.Enabled() {
		return
	}
	c.deltaAzimuth -= deltaX * c.DragSensitivity
	c.deltaPolar -= deltaY * c.DragSensitivity
	if !c.Damping {
		c.apply(1)
	}
}

// HandleZoom updates distance based on scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	if !c.Control.Enabled() {
		return
	}
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.clamp()
}

// Update advances damping; call once per frame.
func (c *OrbitCamera) Update() {
	if !c.Damping {
		return
	}
	c.apply(c.DampingFactor)
}

func (c *OrbitCamera) apply(factor float32) {
	c.Azimuth += c.deltaAzimuth * factor
	c.Polar += c.deltaPolar * factor
	if factor >= 1 {
		c.deltaAzimuth, c.deltaPolar = 0, 0
	} else {
		c.deltaAzimuth *= 1 - factor
		c.deltaPolar *= 1 - factor
	}
	c.clamp()
}

func (c *OrbitCamera) clamp() {
	c.Polar = mgl32.Clamp(c.Polar, c.MinPolar, c.MaxPolar)
	// Keep off the exact pole so LookAt has a usable up vector.
	c.Polar = max(c.Polar, 1e-4)
	c.Distance = mgl32.Clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

// FitToBounds centres the camera on box and backs off far enough to frame it.
func (c *OrbitCamera) FitToBounds(box picking.AABB) {
	if !box.Valid() {
		return
	}
	c.Target = box.Center()
	radius := box.Size().Len() / 2
	half := mgl32.DegToRad(c.FOVDegrees) / 2
	c.Distance = radius / math32.Sin(half)
	c.clamp()
}
