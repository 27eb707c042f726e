package renderer

import (
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/scene"
)

// Pass orders draw items within a frame.
type Pass int

const (
	PassOpaque Pass = iota
	// PassDecal draws polygon-offset overlays after the surfaces they sit on.
	PassDecal
	PassTransparent
)

// Item is one node queued for drawing.
type Item struct {
	Node  *scene.Node
	Model mgl32.Mat4
	Pass  Pass
	// Depth is the squared distance from the eye, used to sort blended items.
	Depth float32
}

func passOf(n *scene.Node) Pass {
	m := n.Material
	switch {
	case n.Kind == scene.KindDecal || m.PolygonOffsetFactor != 0:
		return PassDecal
	case m.Transparent || m.Opacity < 1:
		return PassTransparent
	default:
		return PassOpaque
	}
}

// Collect walks the visible part of the graph under root and returns the
// drawable items in draw order: opaque front to back, then decals, then
// transparent back to front. view is needed to orient billboards.
func Collect(root *scene.Node, view mgl32.Mat4) []Item {
	eye := view.Inv().Col(3).Vec3()
	var items []Item
	root.Walk(func(n *scene.Node) bool {
		if !n.Visible {
			return false
		}
		if n.Material == nil || !n.Geometry.Ready() || !n.Geometry.Valid() {
			return true
		}
		model := n.World()
		if n.Billboard {
			model = Billboard(model, view)
		}
		center := model.Mul4x1(n.Geometry.Bounds().Center().Vec4(1)).Vec3()
		d := center.Sub(eye)
		items = append(items, Item{Node: n, Model: model, Pass: passOf(n), Depth: d.Dot(d)})
		return true
	})

	slices.SortStableFunc(items, func(a, b Item) int {
		if a.Pass != b.Pass {
			return int(a.Pass) - int(b.Pass)
		}
		var less bool
		switch a.Pass {
		case PassTransparent:
			less = a.Depth > b.Depth
		case PassOpaque:
			less = a.Depth < b.Depth
		default:
			return 0
		}
		if less {
			return -1
		}
		if a.Depth == b.Depth {
			return 0
		}
		return 1
	})
	return items
}

// Billboard replaces the rotation of world with the inverse camera rotation
// so the node faces the viewer, keeping its position and scale.
func Billboard(world, view mgl32.Mat4) mgl32.Mat4 {
	pos := world.Col(3).Vec3()
	scale := mgl32.Vec3{
		world.Col(0).Vec3().Len(),
		world.Col(1).Vec3().Len(),
		world.Col(2).Vec3().Len(),
	}
	rot := view.Mat3().Transpose().Mat4()
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(rot).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}
