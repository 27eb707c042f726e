package assets

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/decalforge/internal/engine/scene"
)

var ErrNoScene = errors.New("document has no scene")

// Build converts a glTF document into a scene graph. The root group is
// named rootName and holds the default scene's nodes. A node whose mesh has
// one triangle primitive becomes a drawable; several primitives become a
// group of drawables named <node>_<i>.
func Build(doc *gltf.Document, rootName string) (*scene.Graph, error) {
	if len(doc.Scenes) == 0 {
		return nil, ErrNoScene
	}
	var sceneIdx uint32
	if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
		sceneIdx = *doc.Scene
	}

	root := scene.NewNode(rootName, scene.KindGroup)
	b := &builder{doc: doc, visiting: make(map[uint32]bool)}
	for _, idx := range doc.Scenes[sceneIdx].Nodes {
		n, err := b.node(idx)
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return scene.NewGraph(root), nil
}

type builder struct {
	doc      *gltf.Document
	visiting map[uint32]bool
}

func (b *builder) node(idx uint32) (*scene.Node, error) {
	if int(idx) >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	if b.visiting[idx] {
		return nil, fmt.Errorf("node %d is its own ancestor", idx)
	}
	b.visiting[idx] = true
	defer delete(b.visiting, idx)

	src := b.doc.Nodes[idx]
	var n *scene.Node
	if src.Mesh != nil {
		var err error
		if n, err = b.mesh(src.Name, *src.Mesh); err != nil {
			return nil, fmt.Errorf("node %q: %w", src.Name, err)
		}
	} else {
		n = scene.NewNode(src.Name, scene.KindGroup)
	}
	transform(n, src)

	for _, child := range src.Children {
		c, err := b.node(child)
		if err != nil {
			return nil, err
		}
		n.Add(c)
	}
	return n, nil
}

func transform(n *scene.Node, src *gltf.Node) {
	if m := src.MatrixOrDefault(); m != gltf.DefaultMatrix {
		mat := mgl32.Mat4(m)
		n.Matrix = &mat
		return
	}
	r := src.RotationOrDefault()
	n.Position = mgl32.Vec3(src.TranslationOrDefault())
	n.Rotation = mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
	n.Scale = mgl32.Vec3(src.ScaleOrDefault())
}

func (b *builder) mesh(name string, idx uint32) (*scene.Node, error) {
	if int(idx) >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", idx)
	}
	mesh := b.doc.Meshes[idx]
	if name == "" {
		name = mesh.Name
	}

	var parts []*scene.Node
	for i, prim := range mesh.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		geo, err := b.geometry(prim)
		if err != nil {
			return nil, fmt.Errorf("primitive %d: %w", i, err)
		}
		d := scene.NewNode(name, scene.KindDrawable)
		d.Geometry = geo
		d.Material = b.material(prim.Material)
		parts = append(parts, d)
	}

	switch len(parts) {
	case 0:
		return scene.NewNode(name, scene.KindGroup), nil
	case 1:
		return parts[0], nil
	}
	group := scene.NewNode(name, scene.KindGroup)
	for i, p := range parts {
		p.Name = fmt.Sprintf("%s_%d", name, i)
		group.Add(p)
	}
	return group, nil
}

func (b *builder) geometry(prim *gltf.Primitive) (*scene.Geometry, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errors.New("missing POSITION")
	}
	acr, err := b.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(b.doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}

	geo := &scene.Geometry{Positions: make([]mgl32.Vec3, len(positions))}
	for i, p := range positions {
		geo.Positions[i] = p
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if acr, err := b.accessor(idx); err == nil {
			if normals, err := modeler.ReadNormal(b.doc, acr, nil); err == nil && len(normals) == len(positions) {
				geo.Normals = make([]mgl32.Vec3, len(normals))
				for i, v := range normals {
					geo.Normals[i] = v
				}
			}
		}
	}
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if acr, err := b.accessor(idx); err == nil {
			if uvs, err := modeler.ReadTextureCoord(b.doc, acr, nil); err == nil && len(uvs) == len(positions) {
				geo.UVs = make([]mgl32.Vec2, len(uvs))
				for i, v := range uvs {
					geo.UVs[i] = v
				}
			}
		}
	}

	if prim.Indices != nil {
		acr, err := b.accessor(*prim.Indices)
		if err != nil {
			return nil, err
		}
		if geo.Indices, err = modeler.ReadIndices(b.doc, acr, nil); err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
	}
	if !geo.Valid() {
		return nil, errors.New("index out of range")
	}
	geo.Invalidate()
	return geo, nil
}

func (b *builder) accessor(idx uint32) (*gltf.Accessor, error) {
	if int(idx) >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", idx)
	}
	return b.doc.Accessors[idx], nil
}

func (b *builder) material(idx *uint32) *scene.Material {
	m := scene.NewMaterial()
	if idx == nil || int(*idx) >= len(b.doc.Materials) {
		return m
	}
	src := b.doc.Materials[*idx]
	m.DoubleSided = src.DoubleSided
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		c := pbr.BaseColorFactorOrDefault()
		m.Color = mgl32.Vec3{c[0], c[1], c[2]}
		m.Opacity = c[3]
		m.Roughness = pbr.RoughnessFactorOrDefault()
		m.Metalness = pbr.MetallicFactorOrDefault()
	}
	return m
}
