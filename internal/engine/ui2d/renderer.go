// Package ui2d draws the customizer HUD: flat panels, buttons and text
// rendered as batched quads over the 3D view.
package ui2d

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/shader"
)

const (
	solidFloats = 6 // pos(2) + color(4)
	textFloats  = 8 // pos(2) + uv(2) + color(4)
)

// Canvas is what widgets draw on. *Renderer implements it.
type Canvas interface {
	DrawRect(x, y, w, h float32, c Color)
	DrawRectOutline(x, y, w, h, thickness float32, c Color)
	DrawText(x, y float32, text string, c Color)
	MeasureText(text string) (w, h float32)
	Size() (w, h int)
}

// batch accumulates one frame of quads. It holds no GL state.
type batch struct {
	font  *Font
	solid []float32
	text  []float32
}

func (b *batch) reset() {
	b.solid = b.solid[:0]
	b.text = b.text[:0]
}

func (b *batch) DrawRect(x, y, w, h float32, c Color) {
	if w <= 0 || h <= 0 {
		return
	}
	v := func(px, py float32) {
		b.solid = append(b.solid, px, py, c.R, c.G, c.B, c.A)
	}
	v(x, y)
	v(x+w, y)
	v(x+w, y+h)
	v(x, y)
	v(x+w, y+h)
	v(x, y+h)
}

func (b *batch) DrawRectOutline(x, y, w, h, t float32, c Color) {
	b.DrawRect(x, y, w, t, c)
	b.DrawRect(x, y+h-t, w, t, c)
	b.DrawRect(x, y+t, t, h-2*t, c)
	b.DrawRect(x+w-t, y+t, t, h-2*t, c)
}

func (b *batch) DrawText(x, y float32, text string, c Color) {
	if b.font == nil {
		return
	}
	for _, q := range b.font.layout(x, y, text) {
		v := func(px, py, u, tv float32) {
			b.text = append(b.text, px, py, u, tv, c.R, c.G, c.B, c.A)
		}
		v(q.x, q.y, q.u0, q.v0)
		v(q.x+q.w, q.y, q.u1, q.v0)
		v(q.x+q.w, q.y+q.h, q.u1, q.v1)
		v(q.x, q.y, q.u0, q.v0)
		v(q.x+q.w, q.y+q.h, q.u1, q.v1)
		v(q.x, q.y+q.h, q.u0, q.v1)
	}
}

func (b *batch) MeasureText(text string) (float32, float32) {
	if b.font == nil {
		return 0, 0
	}
	return b.font.Measure(text)
}

// Renderer is the OpenGL Canvas.
type Renderer struct {
	batch
	width, height int
	// pixelRatio maps layout units to framebuffer pixels on high-DPI screens.
	pixelRatio float32

	solidProg *shader.Program
	textProg  *shader.Program

	solidVAO, solidVBO uint32
	textVAO, textVBO   uint32
	atlas              uint32
}

// New creates the HUD renderer. Call after the GL context exists.
func New(width, height int, font *Font) (*Renderer, error) {
	r := &Renderer{
		batch: batch{
			font:  font,
			solid: make([]float32, 0, 4096),
			text:  make([]float32, 0, 4096),
		},
		width:      width,
		height:     height,
		pixelRatio: 1,
	}

	var err error
	if r.solidProg, err = shader.New(solidVertex, solidFragment); err != nil {
		return nil, fmt.Errorf("create solid shader: %w", err)
	}
	if r.textProg, err = shader.New(textVertex, textFragment); err != nil {
		r.solidProg.Delete()
		return nil, fmt.Errorf("create text shader: %w", err)
	}

	r.solidVAO, r.solidVBO = vertexArray(solidFloats, 2, 4)
	r.textVAO, r.textVBO = vertexArray(textFloats, 2, 2, 4)
	if font != nil {
		r.atlas = uploadAtlas(font)
	}
	return r, nil
}

// vertexArray creates a VAO whose interleaved float attributes have the
// given component counts.
func vertexArray(stride int, sizes ...int32) (vao, vbo uint32) {
	gl.GenVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	gl.GenBuffers(1, &vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	offset := 0
	for i, n := range sizes {
		gl.VertexAttribPointerWithOffset(uint32(i), n, gl.FLOAT, false, int32(stride*4), uintptr(offset*4))
		gl.EnableVertexAttribArray(uint32(i))
		offset += int(n)
	}
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return vao, vbo
}

func uploadAtlas(f *Font) uint32 {
	img := f.Atlas()
	b := img.Bounds()
	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.R8, int32(b.Dx()), int32(b.Dy()), 0, gl.RED, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return id
}

// Resize updates the layout size and the framebuffer pixels per unit.
func (r *Renderer) Resize(width, height int, pixelRatio float32) {
	r.width = width
	r.height = height
	r.pixelRatio = max(pixelRatio, 1)
}

// Size returns the screen dimensions.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Begin starts a new frame.
func (r *Renderer) Begin() {
	r.reset()
}

// End draws everything queued since Begin over the current framebuffer.
func (r *Renderer) End() {
	gl.Viewport(0, 0, int32(float32(r.width)*r.pixelRatio), int32(float32(r.height)*r.pixelRatio))
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)

	proj := mgl32.Ortho(0, float32(r.width), float32(r.height), 0, -1, 1)

	if len(r.solid) > 0 {
		r.solidProg.Use()
		r.solidProg.SetMat4("uProjection", proj)
		drawBatch(r.solidVAO, r.solidVBO, r.solid, solidFloats)
	}
	if len(r.text) > 0 && r.atlas != 0 {
		r.textProg.Use()
		r.textProg.SetMat4("uProjection", proj)
		r.textProg.SetInt("uAtlas", 0)
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, r.atlas)
		drawBatch(r.textVAO, r.textVBO, r.text, textFloats)
		gl.BindTexture(gl.TEXTURE_2D, 0)
	}

	gl.BindVertexArray(0)
	gl.UseProgram(0)
	gl.Disable(gl.BLEND)
	gl.Enable(gl.DEPTH_TEST)
}

func drawBatch(vao, vbo uint32, vertices []float32, stride int) {
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STREAM_DRAW)
	gl.DrawArrays(gl.TRIANGLES, 0, int32(len(vertices)/stride))
}

// Close releases renderer resources.
func (r *Renderer) Close() {
	for _, vao := range []*uint32{&r.solidVAO, &r.textVAO} {
		if *vao != 0 {
			gl.DeleteVertexArrays(1, vao)
		}
	}
	for _, vbo := range []*uint32{&r.solidVBO, &r.textVBO} {
		if *vbo != 0 {
			gl.DeleteBuffers(1, vbo)
		}
	}
	if r.atlas != 0 {
		gl.DeleteTextures(1, &r.atlas)
	}
	r.solidProg.Delete()
	r.textProg.Delete()
}

const solidVertex = `
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec4 aColor;

uniform mat4 uProjection;

out vec4 vColor;

void main() {
	gl_Position = uProjection * vec4(aPos, 0.0, 1.0);
	vColor = aColor;
}
`

const solidFragment = `
in vec4 vColor;
out vec4 FragColor;

void main() {
	FragColor = vColor;
}
`

const textVertex = `
layout (location = 0) in vec2 aPos;
layout (location = 1) in vec2 aUV;
layout (location = 2) in vec4 aColor;

uniform mat4 uProjection;

out vec2 vUV;
out vec4 vColor;

void main() {
	gl_Position = uProjection * vec4(aPos, 0.0, 1.0);
	vUV = aUV;
	vColor = aColor;
}
`

const textFragment = `
uniform sampler2D uAtlas;

in vec2 vUV;
in vec4 vColor;
out vec4 FragColor;

void main() {
	FragColor = vec4(vColor.rgb, vColor.a * texture(uAtlas, vUV).r);
}
`
