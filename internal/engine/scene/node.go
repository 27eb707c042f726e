// Package scene is the scene graph the customizer works against: typed nodes,
// transforms, geometry, materials and ray intersection.
package scene

import (
	"image"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/Faultbox/decalforge/internal/engine/picking"
)

// Kind identifies the role of a node in the graph.
type Kind int

const (
	KindGroup Kind = iota
	KindDrawable
	KindDecal
	KindHelper
	KindLight
	KindCamera
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindDrawable:
		return "drawable"
	case KindDecal:
		return "decal"
	case KindHelper:
		return "helper"
	case KindLight:
		return "light"
	case KindCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Geometry is an indexed triangle list in node-local space.
type Geometry struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   []uint32 // nil means non-indexed triangles

	// Version is bumped whenever buffers change so the GPU copy is re-uploaded.
	Version uint64

	bounds      picking.AABB
	boundsValid bool
}

// Ready reports whether the geometry holds at least one complete triangle.
func (g *Geometry) Ready() bool {
	if g == nil || len(g.Positions) < 3 {
		return false
	}
	return g.TriangleCount() > 0
}

// TriangleCount returns the number of complete triangles.
func (g *Geometry) TriangleCount() int {
	if g == nil {
		return 0
	}
	if g.Indices != nil {
		return len(g.Indices) / 3
	}
	return len(g.Positions) / 3
}

// Triangle returns the corners of triangle i. The caller must keep i in range.
func (g *Geometry) Triangle(i int) (a, b, c mgl32.Vec3) {
	if g.Indices != nil {
		return g.Positions[g.Indices[i*3]], g.Positions[g.Indices[i*3+1]], g.Positions[g.Indices[i*3+2]]
	}
	return g.Positions[i*3], g.Positions[i*3+1], g.Positions[i*3+2]
}

// Valid reports whether every index refers to an existing vertex.
func (g *Geometry) Valid() bool {
	for _, idx := range g.Indices {
		if int(idx) >= len(g.Positions) {
			return false
		}
	}
	return true
}

// Bounds returns the local-space bounding box, computed on first use.
func (g *Geometry) Bounds() picking.AABB {
	if !g.boundsValid {
		box := picking.EmptyAABB()
		for _, p := range g.Positions {
			box = box.Extend(p)
		}
		g.bounds = box
		g.boundsValid = true
	}
	return g.bounds
}

// Invalidate marks buffers as changed.
func (g *Geometry) Invalidate() {
	g.boundsValid = false
	g.Version++
}

// Material holds the surface parameters the renderer understands.
type Material struct {
	Color             mgl32.Vec3
	Opacity           float32
	Roughness         float32
	Metalness         float32
	Emissive          mgl32.Vec3
	EmissiveIntensity float32

	// ColorMap is sampled with UVs scaled by TextureRepeat.
	ColorMap      image.Image
	NormalMap     image.Image
	NormalScale   float32
	TextureRepeat float32

	DoubleSided         bool
	Transparent         bool
	DepthWrite          bool
	PolygonOffsetFactor float32

	// Version is bumped whenever a texture changes.
	Version uint64
}

// NewMaterial returns an opaque white material.
func NewMaterial() *Material {
	return &Material{
		Color:         mgl32.Vec3{1, 1, 1},
		Opacity:       1,
		Roughness:     1,
		NormalScale:   1,
		TextureRepeat: 1,
		DepthWrite:    true,
	}
}

// Touch marks texture content as changed.
func (m *Material) Touch() {
	m.Version++
}

// Node is an element of the scene graph.
type Node struct {
	ID   string
	Name string
	Kind Kind

	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
	// Matrix replaces Position/Rotation/Scale as the local transform when set.
	Matrix *mgl32.Mat4

	Geometry *Geometry
	Material *Material

	Visible   bool
	Billboard bool // rendered facing the camera

	parent   *Node
	children []*Node
}

// NewNode creates a visible node with an identity transform and a fresh stable id.
func NewNode(name string, kind Kind) *Node {
	return &Node{
		ID:       uuid.NewString(),
		Name:     name,
		Kind:     kind,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Visible:  true,
	}
}

// Parent returns the parent node or nil.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	return slices.Clone(n.children)
}

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child == nil || child == n {
		return
	}
	child.Detach()
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n. It reports whether child was attached to n.
func (n *Node) Remove(child *Node) bool {
	i := slices.Index(n.children, child)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	child.parent = nil
	return true
}

// Detach removes n from its parent.
func (n *Node) Detach() {
	if n.parent != nil {
		n.parent.Remove(n)
	}
}

// Ancestors returns the parent chain, nearest first.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	seen := map[*Node]bool{n: true}
	for p := n.parent; p != nil && !seen[p]; p = p.parent {
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Root returns the top-most ancestor (n itself when detached).
func (n *Node) Root() *Node {
	if anc := n.Ancestors(); len(anc) > 0 {
		return anc[len(anc)-1]
	}
	return n
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// FindByName returns the first node in depth-first order with the given name.
func (n *Node) FindByName(name string) *Node {
	return n.find(func(c *Node) bool { return c.Name == name })
}

// FindByID returns the node with the given stable id.
func (n *Node) FindByID(id string) *Node {
	return n.find(func(c *Node) bool { return c.ID == id })
}

func (n *Node) find(match func(*Node) bool) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// Local returns the node's transform relative to its parent.
func (n *Node) Local() mgl32.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	return ComposeTRS(n.Position, n.Rotation, n.Scale)
}

// World returns the node's transform relative to the graph root.
func (n *Node) World() mgl32.Mat4 {
	m := n.Local()
	for _, p := range n.Ancestors() {
		m = p.Local().Mul4(m)
	}
	return m
}

// WorldPosition returns the origin of the node in world space.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.World().Col(3).Vec3()
}

// WorldToLocal maps a world-space point into the node's local frame.
func (n *Node) WorldToLocal(p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(p, n.World().Inv())
}

// LocalToWorld maps a local point into world space.
func (n *Node) LocalToWorld(p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(p, n.World())
}

// ComposeTRS builds T * R * S.
func ComposeTRS(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(rot.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of m.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	return m.Mat3().Inv().Transpose()
}
