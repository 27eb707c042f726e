// Package appearance paints product drawables with their part's colour or
// fabric. A drawable belongs to a part when its name equals the part name.
package appearance

import (
	"image"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/scene"
	"github.com/Faultbox/decalforge/internal/engine/texture"
)

const (
	// VisibilityBoost enlarges the fabric pattern relative to its metadata scale.
	VisibilityBoost = 20
	MinRepeat       = 0.005
	// MinFabricRoughness keeps cloth from glaring at grazing angles.
	MinFabricRoughness = 0.35

	DefaultTextureScale = 2
	DefaultNormalScale  = 1
)

// Map slots understood by the renderer.
const (
	SlotColor  = "map"
	SlotNormal = "normalMap"
)

// Repeat returns the texture repeat for a fabric's locked scale.
func Repeat(lockedScale float32) float32 {
	if lockedScale <= 0 {
		lockedScale = DefaultTextureScale
	}
	return max(MinRepeat, 1/(lockedScale*VisibilityBoost))
}

// Parts is the part state the applier reads.
type Parts interface {
	Parts() []store.Part
	Subscribe(fn func(store.Event)) (unsubscribe func())
}

// Drawables lists the scene's drawables; *scene.Graph implements it.
type Drawables interface {
	Drawables() []*scene.Node
}

// ImageLoader starts background texture loads.
type ImageLoader interface {
	Load(src string) *texture.Pending
}

// Applier keeps drawable materials in step with part appearance. Like the
// decal renderer it is driven from the render loop.
type Applier struct {
	parts  Parts
	scene  Drawables
	images ImageLoader
	log    *zap.Logger

	loads   map[string]*texture.Pending
	failed  map[string]bool
	dirty   atomic.Bool
	waiting bool
	unsub   func()
}

// New creates an applier and subscribes it to part changes.
func New(parts Parts, s Drawables, images ImageLoader, log *zap.Logger) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Applier{
		parts:  parts,
		scene:  s,
		images: images,
		log:    log,
		loads:  make(map[string]*texture.Pending),
		failed: make(map[string]bool),
	}
	a.unsub = parts.Subscribe(func(ev store.Event) {
		if ev.Kind == store.EventPartAppearance {
			a.dirty.Store(true)
		}
	})
	a.dirty.Store(true)
	return a
}

// SetScene repaints a reloaded scene.
func (a *Applier) SetScene(s Drawables) {
	a.scene = s
	a.dirty.Store(true)
}

// Update applies pending part changes and finishes fabrics whose textures
// arrived. Call once per frame.
func (a *Applier) Update() {
	if a.dirty.Swap(false) || a.waiting {
		a.Apply()
	}
}

// Apply paints every drawable that matches a part.
func (a *Applier) Apply() {
	a.waiting = false
	byName := make(map[string]store.Part)
	for _, p := range a.parts.Parts() {
		byName[p.Name] = p
	}

	for _, n := range a.scene.Drawables() {
		p, ok := byName[n.Name]
		if !ok {
			continue
		}
		if n.Material == nil {
			n.Material = scene.NewMaterial()
		}
		if p.FabricID == "" {
			a.paint(n.Material, p)
			continue
		}
		if !a.dress(n.Material, p) {
			a.waiting = true
		}
	}
}

// paint applies a flat colour and drops any fabric maps.
func (a *Applier) paint(m *scene.Material, p store.Part) {
	c, err := colorful.Hex(p.Color)
	if err != nil {
		a.log.Warn("part colour unreadable, using white", zap.String("part", p.Name), zap.String("color", p.Color))
		c = colorful.Color{R: 1, G: 1, B: 1}
	}
	m.Color = mgl32.Vec3{float32(c.R), float32(c.G), float32(c.B)}
	m.Metalness = 0
	m.Roughness = 1
	m.TextureRepeat = 1
	m.NormalScale = DefaultNormalScale
	if m.ColorMap != nil || m.NormalMap != nil {
		m.ColorMap = nil
		m.NormalMap = nil
		m.Touch()
	}
}

// dress applies a fabric once its textures are in. It reports false while
// a load is still running; the material is left as it was until then.
func (a *Applier) dress(m *scene.Material, p store.Part) bool {
	colorMap, ok := a.texture(p.Maps[SlotColor])
	if !ok {
		return false
	}
	normalMap, ok := a.texture(p.Maps[SlotNormal])
	if !ok {
		return false
	}

	changed := false
	if !sameImage(m.ColorMap, colorMap) {
		m.ColorMap = asImage(colorMap)
		changed = true
	}
	if !sameImage(m.NormalMap, normalMap) {
		m.NormalMap = asImage(normalMap)
		changed = true
	}
	if changed {
		m.Touch()
	}

	m.TextureRepeat = Repeat(p.TextureScale)
	m.NormalScale = p.NormalScale
	if m.NormalScale <= 0 {
		m.NormalScale = DefaultNormalScale
	}
	if colorMap != nil {
		m.Color = mgl32.Vec3{1, 1, 1}
	}
	m.Roughness = max(MinFabricRoughness, m.Roughness)
	m.Metalness = 0
	return true
}

// texture returns the image for url, or ok=false while it is loading.
// A failed load counts as finished with no image.
func (a *Applier) texture(url string) (*image.RGBA, bool) {
	if url == "" {
		return nil, true
	}
	p, ok := a.loads[url]
	if !ok {
		p = a.images.Load(url)
		a.loads[url] = p
	}
	img, err, done := p.Poll()
	if !done {
		return nil, false
	}
	if err != nil {
		if !a.failed[url] {
			a.failed[url] = true
			a.log.Warn("fabric texture failed to load", zap.String("url", url), zap.Error(err))
		}
		return nil, true
	}
	return img, true
}

func asImage(img *image.RGBA) image.Image {
	if img == nil {
		return nil
	}
	return img
}

func sameImage(have image.Image, want *image.RGBA) bool {
	if want == nil {
		return have == nil
	}
	got, ok := have.(*image.RGBA)
	return ok && got == want
}

// Close stops listening and abandons running loads.
func (a *Applier) Close() {
	if a.unsub != nil {
		a.unsub()
		a.unsub = nil
	}
	for url, p := range a.loads {
		p.Cancel()
		delete(a.loads, url)
	}
}
