package projection

import (
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/customizer/readiness"
	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/scene"
	"github.com/Faultbox/decalforge/internal/engine/texture"
)

type shapeKey struct {
	geometry *scene.Geometry
	version  uint64
	box      mgl32.Mat4
}

// instance is the live visual of one decal.
type instance struct {
	id      string
	part    string
	decal   store.Decal
	editing bool

	key         readiness.Key
	drawable    *scene.Node
	cancelAwait func()

	node        *scene.Node
	material    *scene.Material
	placeholder *scene.Node

	textKey    string
	imageURL   string
	imageErr   error
	pending    *texture.Pending
	cancelPoll func()

	shape  shapeKey
	shaped bool

	err error
}

func newInstance(id string) *instance {
	m := scene.NewMaterial()
	n := scene.NewNode("decal:"+id, scene.KindDecal)
	n.Material = m
	n.Visible = false
	return &instance{id: id, node: n, material: m}
}

func (inst *instance) setColorMap(img *image.RGBA) {
	if img == nil {
		inst.material.ColorMap = nil
	} else {
		inst.material.ColorMap = img
	}
	inst.material.Touch()
}

func (inst *instance) view() View {
	return View{
		ID:          inst.id,
		Part:        inst.part,
		Drawable:    inst.drawable,
		Node:        inst.node,
		Visible:     inst.node.Visible && inst.node.Parent() != nil,
		Placeholder: inst.placeholder != nil && inst.placeholder.Visible,
		Err:         inst.err,
	}
}

// unitQuad is a 1x1 plane facing +Z, used for placeholders.
func unitQuad() *scene.Geometry {
	n := mgl32.Vec3{0, 0, 1}
	return &scene.Geometry{
		Positions: []mgl32.Vec3{{-0.5, -0.5, 0}, {0.5, -0.5, 0}, {0.5, 0.5, 0}, {-0.5, 0.5, 0}},
		Normals:   []mgl32.Vec3{n, n, n, n},
		UVs:       []mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}
