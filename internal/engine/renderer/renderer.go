// Package renderer draws the scene graph with OpenGL: product meshes under a
// studio light rig, decal overlays and the transform gadget.
package renderer

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/engine/gizmo"
	"github.com/Faultbox/decalforge/internal/engine/lighting"
	"github.com/Faultbox/decalforge/internal/engine/scene"
	"github.com/Faultbox/decalforge/internal/engine/shader"
	"github.com/Faultbox/decalforge/internal/engine/texture"
)

// evictAfter is how many frames an unused GPU resource survives.
const evictAfter = 120

// Camera supplies the view for a frame; *camera.OrbitCamera implements it.
type Camera interface {
	View() mgl32.Mat4
	ViewProjection(aspect float32) mgl32.Mat4
	Position() mgl32.Vec3
}

// Config holds renderer settings.
type Config struct {
	Background mgl32.Vec4
	Rig        lighting.Rig
	Logger     *zap.Logger
}

// Stats describes the last frame.
type Stats struct {
	Items    int
	Meshes   int
	Textures int
}

type gpuTexture struct {
	id       uint32
	lastUsed uint64
}

// Renderer owns the GL resources mirrored from scene geometry and materials.
// It must be used from the thread that owns the GL context.
type Renderer struct {
	cfg Config
	log *zap.Logger

	mesh  *shader.Program
	lines *shader.Program

	lineVAO, lineVBO uint32

	meshes   map[*scene.Geometry]*gpuMesh
	textures map[image.Image]*gpuTexture
	frame    uint64
	stats    Stats
}

// New initializes GL and builds the shaders. Call after the context exists.
func New(cfg Config) (*Renderer, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Background == (mgl32.Vec4{}) {
		cfg.Background = mgl32.Vec4{0.93, 0.93, 0.95, 1}
	}
	if cfg.Rig == (lighting.Rig{}) {
		cfg.Rig = lighting.Studio()
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	r := &Renderer{
		cfg:      cfg,
		log:      log,
		meshes:   make(map[*scene.Geometry]*gpuMesh),
		textures: make(map[image.Image]*gpuTexture),
	}

	var err error
	if r.mesh, err = shader.New(meshVertex, meshFragment); err != nil {
		return nil, fmt.Errorf("mesh shader: %w", err)
	}
	if r.lines, err = shader.New(lineVertex, lineFragment); err != nil {
		r.mesh.Delete()
		return nil, fmt.Errorf("line shader: %w", err)
	}

	gl.GenVertexArrays(1, &r.lineVAO)
	gl.GenBuffers(1, &r.lineVBO)
	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	stride := int32(lineFloats * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 4, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)
	gl.BindVertexArray(0)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	return r, nil
}

// Stats returns counters for the last frame.
func (r *Renderer) Stats() Stats {
	return r.stats
}

// Render draws the graph into the bound framebuffer of the given size.
func (r *Renderer) Render(g *scene.Graph, cam Camera, width, height int) {
	r.frame++
	gl.Viewport(0, 0, int32(width), int32(height))
	bg := r.cfg.Background
	gl.ClearColor(bg[0], bg[1], bg[2], bg[3])
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	if g == nil || width <= 0 || height <= 0 {
		return
	}

	view := cam.View()
	viewProj := cam.ViewProjection(float32(width) / float32(height))
	items := Collect(g.Root(), view)

	r.mesh.Use()
	r.mesh.SetMat4("uViewProj", viewProj)
	r.mesh.SetVec3("uEye", cam.Position())
	r.setLights()
	r.mesh.SetInt("uColorMap", 0)
	r.mesh.SetInt("uNormalMap", 1)

	gl.Enable(gl.DEPTH_TEST)
	for _, it := range items {
		r.drawItem(it)
	}
	r.resetState()

	r.evict()
	r.stats = Stats{Items: len(items), Meshes: len(r.meshes), Textures: len(r.textures)}
}

func (r *Renderer) setLights() {
	rig := r.cfg.Rig
	for i, l := range rig.Lights() {
		r.mesh.SetVec3(fmt.Sprintf("uLightDir[%d]", i), l.Direction)
		r.mesh.SetVec3(fmt.Sprintf("uLightColor[%d]", i), l.Color.Mul(l.Intensity))
	}
	r.mesh.SetVec3("uAmbient", rig.Ambient)
	r.mesh.SetVec3("uSky", rig.Sky)
	r.mesh.SetVec3("uGround", rig.Ground)
}

func (r *Renderer) drawItem(it Item) {
	n, m := it.Node, it.Node.Material

	if m.DoubleSided || it.Pass == PassDecal {
		gl.Disable(gl.CULL_FACE)
	} else {
		gl.Enable(gl.CULL_FACE)
	}
	gl.DepthMask(m.DepthWrite && it.Pass == PassOpaque)
	if it.Pass != PassOpaque || m.Opacity < 1 {
		gl.Enable(gl.BLEND)
		gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	} else {
		gl.Disable(gl.BLEND)
	}
	if m.PolygonOffsetFactor != 0 {
		gl.Enable(gl.POLYGON_OFFSET_FILL)
		gl.PolygonOffset(m.PolygonOffsetFactor, m.PolygonOffsetFactor)
	} else {
		gl.Disable(gl.POLYGON_OFFSET_FILL)
	}

	p := r.mesh
	p.SetMat4("uModel", it.Model)
	p.SetMat3("uNormalMatrix", scene.NormalMatrix(it.Model))
	p.SetVec3("uColor", m.Color)
	p.SetFloat("uOpacity", m.Opacity)
	p.SetFloat("uRoughness", m.Roughness)
	p.SetFloat("uMetalness", m.Metalness)
	p.SetVec3("uEmissive", m.Emissive)
	p.SetFloat("uEmissiveIntensity", m.EmissiveIntensity)
	p.SetFloat("uRepeat", max(m.TextureRepeat, 1e-3))
	p.SetFloat("uNormalScale", m.NormalScale)

	wrap := int32(gl.REPEAT)
	if n.Kind == scene.KindDecal {
		wrap = gl.CLAMP_TO_EDGE
	}
	p.SetBool("uHasColorMap", r.bindTexture(gl.TEXTURE0, m.ColorMap, wrap))
	p.SetBool("uHasNormalMap", r.bindTexture(gl.TEXTURE1, m.NormalMap, wrap))

	r.meshFor(n.Geometry).draw()
}

func (r *Renderer) resetState() {
	gl.BindVertexArray(0)
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)
	gl.Disable(gl.POLYGON_OFFSET_FILL)
	gl.Disable(gl.CULL_FACE)
}

func (r *Renderer) meshFor(g *scene.Geometry) *gpuMesh {
	m, ok := r.meshes[g]
	if !ok {
		m = &gpuMesh{}
		r.meshes[g] = m
	}
	if !ok || m.version != g.Version {
		m.upload(g)
	}
	m.lastUsed = r.frame
	return m
}

// bindTexture binds img to unit and reports whether there was one.
func (r *Renderer) bindTexture(unit uint32, img image.Image, wrap int32) bool {
	gl.ActiveTexture(unit)
	if img == nil {
		gl.BindTexture(gl.TEXTURE_2D, 0)
		return false
	}
	t, ok := r.textures[img]
	if !ok {
		t = &gpuTexture{id: uploadTexture(texture.ToRGBA(img))}
		r.textures[img] = t
	}
	t.lastUsed = r.frame
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)
	return true
}

func uploadTexture(img *image.RGBA) uint32 {
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	b := img.Bounds()
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(img.Stride/4))
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(b.Dx()), int32(b.Dy()), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	return id
}

// evict frees GPU copies of geometry and images no longer drawn.
func (r *Renderer) evict() {
	for g, m := range r.meshes {
		if r.frame-m.lastUsed > evictAfter {
			m.destroy()
			delete(r.meshes, g)
		}
	}
	for img, t := range r.textures {
		if r.frame-t.lastUsed > evictAfter {
			gl.DeleteTextures(1, &t.id)
			delete(r.textures, img)
		}
	}
}

// DrawHandles draws gadget handles on top of the scene.
func (r *Renderer) DrawHandles(handles []gizmo.Handle, cam Camera, width, height int) {
	r.drawLines(HandleLines(handles), cam, width, height)
}

// DrawSelection outlines a node's geometry bounds.
func (r *Renderer) DrawSelection(n *scene.Node, cam Camera, width, height int) {
	if n == nil || n.Geometry == nil || !n.Visible {
		return
	}
	size := n.Geometry.Bounds().Size()
	pad := 0.01 * max(size[0], size[1], size[2])
	r.drawLines(BoxLines(n.Geometry.Bounds(), n.World(), pad, SelectionColor), cam, width, height)
}

func (r *Renderer) drawLines(vertices []float32, cam Camera, width, height int) {
	if len(vertices) == 0 || width <= 0 || height <= 0 {
		return
	}
	r.lines.Use()
	r.lines.SetMat4("uViewProj", cam.ViewProjection(float32(width)/float32(height)))

	gl.Disable(gl.DEPTH_TEST)
	gl.LineWidth(1)
	gl.BindVertexArray(r.lineVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.lineVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STREAM_DRAW)
	gl.DrawArrays(gl.LINES, 0, int32(len(vertices)/lineFloats))
	gl.BindVertexArray(0)
	gl.Enable(gl.DEPTH_TEST)
}

// Close frees every GL resource.
func (r *Renderer) Close() {
	r.log.Debug("closing renderer")
	for g, m := range r.meshes {
		m.destroy()
		delete(r.meshes, g)
	}
	for img, t := range r.textures {
		gl.DeleteTextures(1, &t.id)
		delete(r.textures, img)
	}
	if r.lineVAO != 0 {
		gl.DeleteVertexArrays(1, &r.lineVAO)
		gl.DeleteBuffers(1, &r.lineVBO)
	}
	r.mesh.Delete()
	r.lines.Delete()
}
