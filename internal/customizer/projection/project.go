package projection

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/scene"
)

// half is the extent of the decal box in its own frame.
const half = 0.5

// clipPlanes are the six faces of the unit decal box as (axis, sign).
var clipPlanes = [6]struct {
	axis int
	sign float32
}{
	{0, 1}, {0, -1},
	{1, 1}, {1, -1},
	{2, 1}, {2, -1},
}

// Project cuts the part of target that falls inside the decal box. box maps
// the unit cube [-0.5, 0.5]^3 into target-local space. The result is
// expressed in box space, so a node carrying box as its local transform
// lays it back onto the surface. Triangles facing away from the box's +Z
// axis are culled. UVs map box x,y from [-0.5, 0.5] to [0, 1].
func Project(target *scene.Geometry, box mgl32.Mat4) (*scene.Geometry, error) {
	if !target.Ready() || !target.Valid() {
		return nil, ErrNoGeometry
	}
	det := box.Det()
	if det == 0 || math32.IsNaN(det) || math32.IsInf(det, 0) {
		return nil, ErrDegenerateBox
	}
	inv := box.Inv()
	// A mirrored box flips winding.
	facing := float32(1)
	if det < 0 {
		facing = -1
	}

	out := &scene.Geometry{}
	poly := make([]mgl32.Vec3, 0, 9)
	next := make([]mgl32.Vec3, 0, 9)

	for i := 0; i < target.TriangleCount(); i++ {
		a, b, c := target.Triangle(i)
		pa := mgl32.TransformCoordinate(a, inv)
		pb := mgl32.TransformCoordinate(b, inv)
		pc := mgl32.TransformCoordinate(c, inv)

		normal := pb.Sub(pa).Cross(pc.Sub(pa))
		if normal[2]*facing <= 0 {
			continue
		}
		if outside(pa, pb, pc) {
			continue
		}

		poly = append(poly[:0], pa, pb, pc)
		for _, pl := range clipPlanes {
			next = clip(poly, next[:0], pl.axis, pl.sign)
			poly, next = next, poly
			if len(poly) < 3 {
				break
			}
		}
		if len(poly) < 3 {
			continue
		}

		n := normal.Normalize()
		base := uint32(len(out.Positions))
		for _, v := range poly {
			out.Positions = append(out.Positions, v)
			out.Normals = append(out.Normals, n)
			out.UVs = append(out.UVs, mgl32.Vec2{v[0] + half, v[1] + half})
		}
		for k := 1; k+1 < len(poly); k++ {
			out.Indices = append(out.Indices, base, base+uint32(k), base+uint32(k+1))
		}
	}

	if len(out.Indices) == 0 {
		return nil, ErrEmptyProjection
	}
	out.Invalidate()
	return out, nil
}

// outside reports whether all three corners lie beyond the same box face.
func outside(a, b, c mgl32.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		if a[axis] > half && b[axis] > half && c[axis] > half {
			return true
		}
		if a[axis] < -half && b[axis] < -half && c[axis] < -half {
			return true
		}
	}
	return false
}

// clip runs one Sutherland-Hodgman pass against the plane sign*p[axis] <= half.
func clip(in, out []mgl32.Vec3, axis int, sign float32) []mgl32.Vec3 {
	dist := func(v mgl32.Vec3) float32 {
		return sign*v[axis] - half
	}
	for i := range in {
		cur := in[i]
		prev := in[(i+len(in)-1)%len(in)]
		dc, dp := dist(cur), dist(prev)

		switch {
		case dc <= 0 && dp <= 0:
			out = append(out, cur)
		case dc <= 0 && dp > 0:
			out = append(out, lerp(prev, cur, dp/(dp-dc)), cur)
		case dc > 0 && dp <= 0:
			out = append(out, lerp(prev, cur, dp/(dp-dc)))
		}
	}
	return out
}

func lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
