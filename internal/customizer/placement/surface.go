package placement

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/scene"
)

// minNormalLength rejects normals that collapse under the frame transform.
const minNormalLength = 1e-8

// Surface is a hit expressed in the local frame of its drawable.
type Surface struct {
	Drawable *scene.Node
	Point    mgl32.Vec3 // local hit point
	Normal   mgl32.Vec3 // local unit normal
	Rotation mgl32.Vec3 // Euler XYZ turning the forward axis onto Normal
}

// DrawableAncestor walks from n (inclusive) toward the root and returns the
// first drawable. Hits on a decal resolve to the mesh carrying it.
func DrawableAncestor(n *scene.Node) *scene.Node {
	if n == nil {
		return nil
	}
	if n.Kind == scene.KindDrawable {
		return n
	}
	for _, a := range n.Ancestors() {
		if a.Kind == scene.KindDrawable {
			return a
		}
	}
	return nil
}

// ResolveFrame converts a world-space hit into the drawable's local frame:
// the local point, the face normal carried from the hit node into drawable
// space, and the shortest-arc orientation onto that normal.
func ResolveFrame(drawable *scene.Node, hit scene.Hit) (Surface, error) {
	if drawable == nil || hit.Node == nil {
		return Surface{}, ErrNoDrawable
	}

	world := drawable.World()
	if world.Det() == 0 {
		return Surface{}, ErrDegenerateFrame
	}
	point := mgl32.TransformCoordinate(hit.Point, world.Inv())

	// Face normal: hit-node space -> world -> drawable space.
	worldNormal := scene.NormalMatrix(hit.Node.World()).Mul3x1(hit.FaceNormal)
	localNormal := world.Mat3().Transpose().Mul3x1(worldNormal)
	l := localNormal.Len()
	if l < minNormalLength || math32.IsNaN(l) || math32.IsInf(l, 0) {
		return Surface{}, ErrDegenerateFrame
	}
	localNormal = localNormal.Mul(1 / l)

	rotation := scene.OrientToNormal(localNormal)
	if !finite(point) || !finite(rotation) {
		return Surface{}, ErrDegenerateFrame
	}

	return Surface{
		Drawable: drawable,
		Point:    point,
		Normal:   localNormal,
		Rotation: rotation,
	}, nil
}

func finite(v mgl32.Vec3) bool {
	for _, c := range v {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return false
		}
	}
	return true
}
