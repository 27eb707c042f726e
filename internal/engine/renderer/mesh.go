package renderer

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/scene"
)

// vertexFloats is position(3) + normal(3) + uv(2).
const vertexFloats = 8

// Pack interleaves geometry for upload. Missing normals are generated by
// averaging face normals; missing UVs are zero. Non-indexed geometry gets
// sequential indices.
func Pack(g *scene.Geometry) (vertices []float32, indices []uint32) {
	normals := g.Normals
	if len(normals) != len(g.Positions) {
		normals = VertexNormals(g)
	}

	vertices = make([]float32, 0, len(g.Positions)*vertexFloats)
	for i, p := range g.Positions {
		n := normals[i]
		var uv mgl32.Vec2
		if i < len(g.UVs) {
			uv = g.UVs[i]
		}
		vertices = append(vertices, p[0], p[1], p[2], n[0], n[1], n[2], uv[0], uv[1])
	}

	indices = g.Indices
	if indices == nil {
		count := g.TriangleCount() * 3
		indices = make([]uint32, count)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	return vertices, indices
}

// VertexNormals averages the area-weighted normals of the faces sharing each
// vertex. Unreferenced vertices get +Z.
func VertexNormals(g *scene.Geometry) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(g.Positions))
	corner := func(tri, k int) int {
		if g.Indices != nil {
			return int(g.Indices[tri*3+k])
		}
		return tri*3 + k
	}
	for tri := 0; tri < g.TriangleCount(); tri++ {
		a, b, c := g.Triangle(tri)
		face := b.Sub(a).Cross(c.Sub(a))
		for k := 0; k < 3; k++ {
			i := corner(tri, k)
			out[i] = out[i].Add(face)
		}
	}
	for i, n := range out {
		if l := n.Len(); l > 1e-12 {
			out[i] = n.Mul(1 / l)
		} else {
			out[i] = mgl32.Vec3{0, 0, 1}
		}
	}
	return out
}

// gpuMesh is the uploaded copy of one Geometry.
type gpuMesh struct {
	vao, vbo, ebo uint32
	count         int32
	version       uint64
	lastUsed      uint64
}

func (m *gpuMesh) upload(g *scene.Geometry) {
	vertices, indices := Pack(g)
	if m.vao == 0 {
		gl.GenVertexArrays(1, &m.vao)
		gl.GenBuffers(1, &m.vbo)
		gl.GenBuffers(1, &m.ebo)
	}
	gl.BindVertexArray(m.vao)

	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	if len(vertices) > 0 {
		gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	}
	stride := int32(vertexFloats * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 6*4)
	gl.EnableVertexAttribArray(2)

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	if len(indices) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)
	}
	gl.BindVertexArray(0)

	m.count = int32(len(indices))
	m.version = g.Version
}

func (m *gpuMesh) draw() {
	if m.count == 0 {
		return
	}
	gl.BindVertexArray(m.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, m.count, gl.UNSIGNED_INT, 0)
}

func (m *gpuMesh) destroy() {
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
		gl.DeleteBuffers(1, &m.vbo)
		gl.DeleteBuffers(1, &m.ebo)
		m.vao, m.vbo, m.ebo = 0, 0, 0
	}
}
