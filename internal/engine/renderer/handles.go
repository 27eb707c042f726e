package renderer

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/gizmo"
	"github.com/Faultbox/decalforge/internal/engine/picking"
)

// lineFloats is position(3) + colour(4).
const lineFloats = 7

// ringSegments is the number of line segments per rotate ring.
const ringSegments = 48

var (
	axisColors = [3]mgl32.Vec4{
		{0.95, 0.26, 0.21, 1},
		{0.3, 0.8, 0.3, 1},
		{0.25, 0.5, 0.95, 1},
	}
	activeColor = mgl32.Vec4{1, 0.85, 0.1, 1}

	// SelectionColor outlines the selected part.
	SelectionColor = mgl32.Vec4{0.2, 0.45, 0.9, 0.8}
)

// boxEdges indexes corner pairs; corner bit 0 is x, bit 1 is y, bit 2 is z.
var boxEdges = [12][2]int{
	{0, 1}, {1, 5}, {5, 4}, {4, 0}, // bottom
	{2, 3}, {3, 7}, {7, 6}, {6, 2}, // top
	{0, 2}, {1, 3}, {5, 7}, {4, 6},
}

func handleColor(h gizmo.Handle) mgl32.Vec4 {
	if h.Active {
		return activeColor
	}
	if h.Axis >= gizmo.AxisX && h.Axis <= gizmo.AxisZ {
		return axisColors[h.Axis]
	}
	return mgl32.Vec4{1, 1, 1, 1}
}

// HandleLines builds a GL_LINES vertex list for the gadget handles: a
// segment per axis, or a ring around it in rotate mode.
func HandleLines(handles []gizmo.Handle) []float32 {
	var out []float32
	push := func(p mgl32.Vec3, c mgl32.Vec4) {
		out = append(out, p[0], p[1], p[2], c[0], c[1], c[2], c[3])
	}
	for _, h := range handles {
		c := handleColor(h)
		if !h.Ring {
			push(h.Origin, c)
			push(h.Origin.Add(h.Direction.Mul(h.Length)), c)
			continue
		}
		u, v := basis(h.Direction)
		point := func(i int) mgl32.Vec3 {
			a := 2 * math32.Pi * float32(i) / ringSegments
			return h.Origin.Add(u.Mul(math32.Cos(a) * h.Length)).Add(v.Mul(math32.Sin(a) * h.Length))
		}
		for i := 0; i < ringSegments; i++ {
			push(point(i), c)
			push(point(i+1), c)
		}
	}
	return out
}

// BoxLines builds a GL_LINES wireframe of a local-space box grown by pad and
// placed by world. Empty boxes yield nothing.
func BoxLines(box picking.AABB, world mgl32.Mat4, pad float32, c mgl32.Vec4) []float32 {
	if !box.Valid() {
		return nil
	}
	lo := box.Min.Sub(mgl32.Vec3{pad, pad, pad})
	hi := box.Max.Add(mgl32.Vec3{pad, pad, pad})
	var corners [8]mgl32.Vec3
	for i := range corners {
		p := lo
		if i&1 != 0 {
			p[0] = hi[0]
		}
		if i&2 != 0 {
			p[1] = hi[1]
		}
		if i&4 != 0 {
			p[2] = hi[2]
		}
		corners[i] = mgl32.TransformCoordinate(p, world)
	}
	out := make([]float32, 0, len(boxEdges)*2*lineFloats)
	for _, e := range boxEdges {
		for _, i := range e {
			p := corners[i]
			out = append(out, p[0], p[1], p[2], c[0], c[1], c[2], c[3])
		}
	}
	return out
}

// basis returns two unit vectors perpendicular to n and to each other.
func basis(n mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	ref := mgl32.Vec3{0, 1, 0}
	if math32.Abs(n.Dot(ref)) > 0.9 {
		ref = mgl32.Vec3{1, 0, 0}
	}
	u := n.Cross(ref).Normalize()
	return u, n.Cross(u).Normalize()
}
