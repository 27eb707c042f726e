// Package picking provides ray casting and surface picking utilities.
package picking

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon used for parallel tests and triangle intersection.
const Epsilon = 1e-7

// Ray represents a ray in 3D space with origin and direction.
// Direction is normalized by constructors; Transform keeps the parameter t
// consistent between spaces and therefore does not renormalize.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Viewport is the on-screen rectangle of the rendering surface in pixels.
type Viewport struct {
	Left, Top     float32
	Width, Height float32
}

// NDC converts pointer client coordinates to normalized device coordinates
// relative to the viewport rectangle. Y is flipped so +1 is the top edge.
func (v Viewport) NDC(clientX, clientY float32) mgl32.Vec2 {
	if v.Width <= 0 || v.Height <= 0 {
		return mgl32.Vec2{}
	}
	return mgl32.Vec2{
		((clientX-v.Left)/v.Width)*2 - 1,
		-((clientY-v.Top)/v.Height)*2 + 1,
	}
}

// Aspect returns width/height, or 1 for an empty viewport.
func (v Viewport) Aspect() float32 {
	if v.Height <= 0 {
		return 1
	}
	return v.Width / v.Height
}

// NewRay builds a ray with a normalized direction.
func NewRay(origin, direction mgl32.Vec3) Ray {
	if l := direction.Len(); l > 0 {
		direction = direction.Mul(1 / l)
	}
	return Ray{Origin: origin, Direction: direction}
}

// ScreenToRay converts normalized device coordinates to a world-space ray.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(ndc mgl32.Vec2, invViewProj mgl32.Mat4) Ray {
	nearWorld := invViewProj.Mul4x1(mgl32.Vec4{ndc[0], ndc[1], -1, 1})
	farWorld := invViewProj.Mul4x1(mgl32.Vec4{ndc[0], ndc[1], 1, 1})

	// Perspective divide
	if nearWorld[3] != 0 {
		nearWorld = nearWorld.Mul(1 / nearWorld[3])
	}
	if farWorld[3] != 0 {
		farWorld = farWorld.Mul(1 / farWorld[3])
	}

	origin := nearWorld.Vec3()
	return NewRay(origin, farWorld.Vec3().Sub(origin))
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Transform maps the ray into the space described by m (typically the inverse
// of a node's world matrix). The parameter t of a point is preserved.
func (r Ray) Transform(m mgl32.Mat4) Ray {
	return Ray{
		Origin:    mgl32.TransformCoordinate(r.Origin, m),
		Direction: mgl32.TransformNormal(r.Direction, m),
	}
}

// IntersectPlane intersects the ray with the plane through point with the given normal.
func (r Ray) IntersectPlane(point, normal mgl32.Vec3) (t float32, ok bool) {
	denom := normal.Dot(r.Direction)
	if math32.Abs(denom) < 1e-6 {
		return 0, false // Ray parallel to plane
	}
	t = point.Sub(r.Origin).Dot(normal) / denom
	if t < 0 {
		return 0, false // Intersection behind ray origin
	}
	return t, true
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box AABB) (t float32, hit bool) {
	tmin, tmax := float32(-math32.MaxFloat32), float32(math32.MaxFloat32)

	for axis := 0; axis < 3; axis++ {
		if r.Direction[axis] != 0 {
			t1 := (box.Min[axis] - r.Origin[axis]) / r.Direction[axis]
			t2 := (box.Max[axis] - r.Origin[axis]) / r.Direction[axis]
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			tmin = max(tmin, t1)
			tmax = min(tmax, t2)
		} else if r.Origin[axis] < box.Min[axis] || r.Origin[axis] > box.Max[axis] {
			return 0, false
		}
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}

	// Return entry point, or exit point if starting inside
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// IntersectTriangle tests the ray against triangle (a, b, c) using the
// Möller–Trumbore algorithm. Both windings are accepted.
// Returns the ray parameter t of the hit.
func (r Ray) IntersectTriangle(a, b, c mgl32.Vec3) (t float32, hit bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)
	h := r.Direction.Cross(edge2)
	det := edge1.Dot(h)
	if math32.Abs(det) < Epsilon {
		return 0, false
	}

	inv := 1 / det
	s := r.Origin.Sub(a)
	u := inv * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := inv * r.Direction.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t = inv * edge2.Dot(q)
	if t <= Epsilon {
		return 0, false
	}
	return t, true
}

// NewAABB creates an AABB from two corners, ordering each axis.
func NewAABB(a, b mgl32.Vec3) AABB {
	box := AABB{Min: a, Max: b}
	for axis := 0; axis < 3; axis++ {
		if box.Min[axis] > box.Max[axis] {
			box.Min[axis], box.Max[axis] = box.Max[axis], box.Min[axis]
		}
	}
	return box
}

// EmptyAABB returns an inverted box that Extend can grow from.
func EmptyAABB() AABB {
	return AABB{
		Min: mgl32.Vec3{math32.MaxFloat32, math32.MaxFloat32, math32.MaxFloat32},
		Max: mgl32.Vec3{-math32.MaxFloat32, -math32.MaxFloat32, -math32.MaxFloat32},
	}
}

// Extend grows the box to contain p.
func (b AABB) Extend(p mgl32.Vec3) AABB {
	for axis := 0; axis < 3; axis++ {
		b.Min[axis] = min(b.Min[axis], p[axis])
		b.Max[axis] = max(b.Max[axis], p[axis])
	}
	return b
}

// Valid reports whether the box contains at least one point.
func (b AABB) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the box extents.
func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Transform returns the world-space AABB enclosing the eight transformed corners.
func (b AABB) Transform(m mgl32.Mat4) AABB {
	out := EmptyAABB()
	for i := 0; i < 8; i++ {
		corner := mgl32.Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.Extend(mgl32.TransformCoordinate(corner, m))
	}
	return out
}
