package scene

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/picking"
)

// Hit is a ray intersection with a node's geometry.
type Hit struct {
	Node     *Node
	Distance float32
	// Point is the world-space intersection point.
	Point mgl32.Vec3
	// FaceNormal is the unit normal of the hit triangle in the frame of Node.
	FaceNormal mgl32.Vec3
	Face       int
}

// Intersect tests the ray against every visible node with geometry under
// subtree (the graph root when nil) and returns hits sorted nearest first.
func (g *Graph) Intersect(subtree *Node, ray picking.Ray) []Hit {
	if subtree == nil {
		subtree = g.root
	}
	var hits []Hit
	subtree.Walk(func(n *Node) bool {
		if !n.Visible {
			return false
		}
		hits = append(hits, intersectGeometry(n, ray)...)
		return true
	})
	sortHits(hits)
	return hits
}

// IntersectNode tests the ray against n alone, ignoring its children.
func (g *Graph) IntersectNode(n *Node, ray picking.Ray) []Hit {
	if n == nil {
		return nil
	}
	hits := intersectGeometry(n, ray)
	sortHits(hits)
	return hits
}

func sortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})
}

func intersectGeometry(n *Node, ray picking.Ray) []Hit {
	geo := n.Geometry
	if !geo.Ready() || !geo.Valid() {
		return nil
	}

	world := n.World()
	if world.Det() == 0 {
		return nil
	}
	local := ray.Transform(world.Inv())

	if _, ok := local.IntersectAABB(geo.Bounds()); !ok {
		return nil
	}

	var hits []Hit
	for i := 0; i < geo.TriangleCount(); i++ {
		a, b, c := geo.Triangle(i)
		t, ok := local.IntersectTriangle(a, b, c)
		if !ok {
			continue
		}
		normal := b.Sub(a).Cross(c.Sub(a))
		if l := normal.Len(); l > 0 {
			normal = normal.Mul(1 / l)
		}
		hits = append(hits, Hit{
			Node:       n,
			Distance:   t,
			Point:      ray.At(t),
			FaceNormal: normal,
			Face:       i,
		})
	}
	return hits
}
