package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/decalforge/internal/engine/gizmo"
	"github.com/Faultbox/decalforge/internal/engine/picking"
	"github.com/Faultbox/decalforge/internal/engine/scene"
)

func assertVecNear(t *testing.T, want, got mgl32.Vec3, delta float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], delta, "component %d of %v", i, got)
	}
}

func quad(z float32) *scene.Geometry {
	return &scene.Geometry{
		Positions: []mgl32.Vec3{{-1, -1, z}, {1, -1, z}, {1, 1, z}, {-1, 1, z}},
		UVs:       []mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestPackGeneratesNormals(t *testing.T) {
	vertices, indices := Pack(quad(0))

	require.Len(t, vertices, 4*vertexFloats)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, indices)
	for i := 0; i < 4; i++ {
		n := mgl32.Vec3{vertices[i*vertexFloats+3], vertices[i*vertexFloats+4], vertices[i*vertexFloats+5]}
		assertVecNear(t, mgl32.Vec3{0, 0, 1}, n, 1e-6)
	}
	assert.Equal(t, []float32{1, 1}, vertices[2*vertexFloats+6:2*vertexFloats+8])
}

func TestPackNonIndexed(t *testing.T) {
	g := &scene.Geometry{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {5, 5, 5}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
	}
	vertices, indices := Pack(g)

	assert.Equal(t, []uint32{0, 1, 2}, indices, "trailing partial triangle is dropped")
	assert.Len(t, vertices, 4*vertexFloats)
	assert.Equal(t, float32(0), vertices[6], "missing UVs are zero")
}

func TestVertexNormalsAveragesSharedFaces(t *testing.T) {
	// Two faces meeting at a right angle along the x axis.
	g := &scene.Geometry{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {7, 7, 7}},
		Indices:   []uint32{0, 1, 2, 0, 3, 1},
	}
	n := VertexNormals(g)

	shared := mgl32.Vec3{0, 1, 1}.Normalize()
	assertVecNear(t, shared, n[0], 1e-5)
	assertVecNear(t, mgl32.Vec3{0, 0, 1}, n[2], 1e-6)
	assert.Equal(t, mgl32.Vec3{0, 0, 1}, n[4], "unreferenced vertex")
}

func node(name string, kind scene.Kind, z float32) *scene.Node {
	n := scene.NewNode(name, kind)
	n.Geometry = quad(0)
	n.Material = scene.NewMaterial()
	n.Position = mgl32.Vec3{0, 0, z}
	return n
}

func TestCollectOrdersPasses(t *testing.T) {
	root := scene.NewNode("root", scene.KindGroup)
	near := node("near", scene.KindDrawable, 2)
	far := node("far", scene.KindDrawable, -2)
	glassNear := node("glassNear", scene.KindDrawable, 1)
	glassNear.Material.Transparent = true
	glassFar := node("glassFar", scene.KindDrawable, -1)
	glassFar.Material.Opacity = 0.5
	decal := node("decal", scene.KindDecal, 0)
	hidden := node("hidden", scene.KindDrawable, 0)
	hidden.Visible = false
	empty := scene.NewNode("empty", scene.KindDrawable)
	empty.Material = scene.NewMaterial()
	for _, n := range []*scene.Node{far, glassNear, decal, near, glassFar, hidden, empty} {
		root.Add(n)
	}

	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	items := Collect(root, view)

	var names []string
	for _, it := range items {
		names = append(names, it.Node.Name)
	}
	assert.Equal(t, []string{"near", "far", "decal", "glassFar", "glassNear"}, names)
	assert.Equal(t, PassDecal, items[2].Pass)
}

func TestBillboardFacesCamera(t *testing.T) {
	world := mgl32.Translate3D(1, 2, 3).
		Mul4(mgl32.HomogRotate3DY(1.2)).
		Mul4(mgl32.Scale3D(2, 2, 2))
	eye := mgl32.Vec3{5, 2, 3}
	view := mgl32.LookAtV(eye, mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 1, 0})

	m := Billboard(world, view)

	assert.True(t, m.Col(3).Vec3().ApproxEqual(mgl32.Vec3{1, 2, 3}))
	facing := m.Mul4x1(mgl32.Vec4{0, 0, 1, 0}).Vec3().Normalize()
	toEye := eye.Sub(mgl32.Vec3{1, 2, 3}).Normalize()
	assert.InDelta(t, 1, facing.Dot(toEye), 1e-4)
	assert.InDelta(t, 2, m.Col(0).Vec3().Len(), 1e-4)
}

func TestHandleLines(t *testing.T) {
	segments := []gizmo.Handle{
		{Axis: gizmo.AxisX, Origin: mgl32.Vec3{}, Direction: mgl32.Vec3{1, 0, 0}, Length: 2},
		{Axis: gizmo.AxisY, Origin: mgl32.Vec3{}, Direction: mgl32.Vec3{0, 1, 0}, Length: 2, Active: true},
	}
	v := HandleLines(segments)
	require.Len(t, v, 4*lineFloats)
	assert.Equal(t, []float32{2, 0, 0}, v[lineFloats:lineFloats+3])
	assert.Equal(t, activeColor[:], v[2*lineFloats+3:2*lineFloats+7])

	ring := HandleLines([]gizmo.Handle{{Axis: gizmo.AxisZ, Direction: mgl32.Vec3{0, 0, 1}, Length: 1, Ring: true}})
	require.Len(t, ring, 2*ringSegments*lineFloats)
	for i := 0; i < len(ring); i += lineFloats {
		p := mgl32.Vec3{ring[i], ring[i+1], ring[i+2]}
		assert.InDelta(t, 1, p.Len(), 1e-4)
		assert.InDelta(t, 0, p.Z(), 1e-5)
	}
	assert.Empty(t, HandleLines(nil))
}

func TestBoxLines(t *testing.T) {
	box := picking.NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	lines := BoxLines(box, mgl32.Translate3D(10, 0, 0), 0.5, SelectionColor)
	require.Len(t, lines, 24*lineFloats)

	for i := 0; i < len(lines); i += lineFloats {
		x, y := lines[i], lines[i+1]
		assert.Contains(t, []float32{8.5, 11.5}, x)
		assert.Contains(t, []float32{-1.5, 1.5}, y)
		assert.Equal(t, SelectionColor[3], lines[i+6])
	}

	assert.Nil(t, BoxLines(picking.EmptyAABB(), mgl32.Ident4(), 0, SelectionColor))
}
