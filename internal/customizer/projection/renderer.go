package projection

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/customizer/placement"
	"github.com/Faultbox/decalforge/internal/customizer/readiness"
	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/gizmo"
	"github.com/Faultbox/decalforge/internal/engine/picking"
	"github.com/Faultbox/decalforge/internal/engine/scene"
	"github.com/Faultbox/decalforge/internal/engine/textraster"
	"github.com/Faultbox/decalforge/internal/engine/texture"
)

// placeholderLift keeps placeholders just in front of their stored position.
const placeholderLift = 0.01

// Renderer mirrors store decals into the scene. All methods must be called
// from the render loop goroutine; store notifications from elsewhere only
// mark it dirty.
type Renderer struct {
	store   Store
	scene   Scene
	sched   Scheduler
	tracker *readiness.Tracker
	text    TextRasterizer
	images  ImageLoader
	gadget  *gizmo.Gadget
	opts    Options
	log     *zap.Logger

	ownsTracker bool
	highlight   mgl32.Vec3

	instances map[string]*instance
	snapshot  scene.Snapshot
	overlay   *scene.Node
	gadgetID  string

	dirty       atomic.Bool
	syncing     bool
	unsubscribe func()
	graceUntil  time.Time
	cancelGrace func()
	closed      bool
}

// New creates a renderer and subscribes it to the store. The first Update
// builds every decal.
func New(cfg Config) *Renderer {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	opts := cfg.Options
	if opts.PollInterval <= 0 {
		opts.PollInterval = readiness.DefaultPollInterval
	}

	r := &Renderer{
		store:     cfg.Store,
		sched:     cfg.Scheduler,
		tracker:   cfg.Tracker,
		text:      cfg.Text,
		images:    cfg.Images,
		gadget:    cfg.Gadget,
		opts:      opts,
		log:       log,
		instances: make(map[string]*instance),
		overlay:   scene.NewNode("decal-manager", scene.KindGroup),
	}
	if r.tracker == nil {
		r.tracker = readiness.New(cfg.Scene, cfg.Scheduler, opts.PollInterval, log.Named("readiness"))
		r.ownsTracker = true
	}

	r.highlight = mgl32.Vec3{0.23, 0.51, 0.96}
	if c, err := colorful.Hex(opts.HighlightColor); err == nil {
		r.highlight = mgl32.Vec3{float32(c.R), float32(c.G), float32(c.B)}
	} else if opts.HighlightColor != "" {
		log.Warn("invalid highlight colour, using default", zap.String("color", opts.HighlightColor))
	}

	if r.gadget != nil {
		r.gadget.OnChange = r.reseat
	}
	r.attachScene(cfg.Scene)
	r.unsubscribe = cfg.Store.Subscribe(func(store.Event) {
		r.dirty.Store(true)
	})
	r.dirty.Store(true)
	return r
}

func (r *Renderer) attachScene(s Scene) {
	r.scene = s
	r.snapshot = s.Snapshot(nil)
	s.Root().Add(r.overlay)

	if r.cancelGrace != nil {
		r.cancelGrace()
	}
	r.graceUntil = r.sched.Now().Add(r.opts.GraceWindow)
	r.cancelGrace = r.sched.After(r.opts.GraceWindow, r.endGrace)
}

func (r *Renderer) endGrace() {
	r.cancelGrace = nil
	for _, inst := range r.instances {
		r.dropPlaceholder(inst)
	}
}

func (r *Renderer) inGrace() bool {
	return r.opts.Placeholder && r.sched.Now().Before(r.graceUntil)
}

// SetScene switches to a reloaded scene. Every instance is rebuilt and
// identity resolution starts over; decals whose mesh is gone stay invisible.
func (r *Renderer) SetScene(s Scene) {
	for id, inst := range r.instances {
		r.teardown(inst)
		delete(r.instances, id)
	}
	r.overlay.Detach()
	r.tracker.SetSource(s)
	r.attachScene(s)
	r.dirty.Store(true)
	r.log.Info("scene replaced, resolving decals again")
}

// Dirty reports whether a store change is waiting for Sync.
func (r *Renderer) Dirty() bool {
	return r.dirty.Load()
}

// Update syncs when the store changed since the last pass. Call once per frame.
func (r *Renderer) Update() {
	if r.dirty.Load() {
		r.Sync()
	}
}

// Sync reconciles every store decal with its live instance and tears down
// instances whose decal is gone. A failing decal is hidden and logged; the
// others are unaffected.
func (r *Renderer) Sync() {
	if r.closed {
		return
	}
	r.dirty.Store(false)
	r.syncing = true
	defer func() { r.syncing = false }()

	edit, editing := r.store.EditTarget()
	live := make(map[string]bool)
	for _, pd := range r.store.AllDecals() {
		id := pd.Decal.ID
		live[id] = true
		inst, ok := r.instances[id]
		if !ok {
			inst = newInstance(id)
			r.instances[id] = inst
		}
		inst.part = pd.Part
		inst.decal = pd.Decal
		inst.editing = editing && edit.DecalID == id
		r.guard(inst, r.reconcile)
	}

	for id, inst := range r.instances {
		if !live[id] {
			r.teardown(inst)
			delete(r.instances, id)
		}
	}
	r.syncGadget()
}

// guard runs fn for one decal, converting a panic into a failure so that
// the rest of the pass continues.
func (r *Renderer) guard(inst *instance, fn func(*instance) error) {
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%w: %v", ErrPanic, rec)
			}
		}()
		return fn(inst)
	}()
	r.record(inst, err)
}

func (r *Renderer) record(inst *instance, err error) {
	if err == nil {
		inst.err = nil
		return
	}
	inst.node.Visible = false
	if inst.placeholder != nil {
		inst.placeholder.Visible = false
	}
	if inst.err == nil || inst.err.Error() != err.Error() {
		msg := "decal image failed to load"
		if IsProjectionFailure(err) {
			msg = "decal projection failed"
		}
		r.log.Warn(msg,
			zap.String("decal", inst.id),
			zap.String("part", inst.part),
			zap.Error(err))
	}
	inst.err = err
}

func (r *Renderer) reconcile(inst *instance) error {
	key := readiness.Key{ID: inst.decal.TargetMeshID, Name: inst.decal.TargetMesh}
	if key != inst.key || (inst.drawable != nil && !r.scene.Contains(inst.drawable)) {
		r.release(inst)
		inst.key = key
	}

	if inst.drawable == nil && inst.cancelAwait == nil && !key.Empty() {
		cancel := r.tracker.Await(key, r.snapshot, func(n *scene.Node) {
			r.resolved(inst, n)
		})
		if inst.drawable == nil {
			inst.cancelAwait = cancel
		}
	}

	if inst.drawable == nil {
		return r.showPlaceholder(inst)
	}
	r.dropPlaceholder(inst)
	return r.build(inst)
}

func (r *Renderer) resolved(inst *instance, n *scene.Node) {
	inst.cancelAwait = nil
	inst.drawable = n
	n.Add(inst.node)
	if !r.syncing {
		r.dirty.Store(true)
	}
	r.log.Debug("decal attached",
		zap.String("decal", inst.id),
		zap.String("mesh", n.Name),
		zap.String("mesh_id", n.ID))
}

func (r *Renderer) build(inst *instance) error {
	if err := r.content(inst); err != nil {
		return err
	}
	r.style(inst)
	if err := r.shape(inst); err != nil {
		return err
	}
	inst.node.Visible = inst.material.ColorMap != nil
	return nil
}

// content regenerates the colour map when the fields it depends on change.
func (r *Renderer) content(inst *instance) error {
	d := inst.decal
	if d.Kind == store.KindImage {
		if inst.textKey != "" {
			inst.textKey = ""
			inst.setColorMap(nil)
		}
		return r.imageContent(inst)
	}

	r.cancelImage(inst)
	spec := textraster.Spec{
		Text:    d.Content,
		Family:  d.FontFamily,
		Size:    d.FontSize,
		Color:   d.Color,
		Padding: r.opts.Padding,
	}
	if d.Stroke != nil {
		spec.Stroke = &textraster.Stroke{Width: d.Stroke.Width, Color: d.Stroke.Color}
	}
	key := spec.Key()
	if key == inst.textKey && inst.material.ColorMap != nil {
		return nil
	}
	img, err := r.text.Rasterize(spec)
	if err != nil {
		inst.textKey = ""
		inst.setColorMap(nil)
		return fmt.Errorf("%w: %w", ErrNoContent, err)
	}
	inst.setColorMap(img)
	inst.textKey = key
	return nil
}

func (r *Renderer) imageContent(inst *instance) error {
	url := inst.decal.ImageURL
	if url == inst.imageURL && (inst.pending != nil || inst.imageErr != nil || inst.material.ColorMap != nil) {
		return inst.imageErr
	}

	r.cancelImage(inst)
	inst.setColorMap(nil)
	inst.imageURL = url
	if url == "" {
		inst.imageErr = fmt.Errorf("%w: image decal without a source", ErrNoContent)
		return inst.imageErr
	}

	p := r.images.Load(url)
	if r.takeImage(inst, p) {
		return inst.imageErr
	}
	inst.pending = p
	inst.cancelPoll = r.sched.Every(r.opts.PollInterval, func() {
		if !r.takeImage(inst, p) {
			return
		}
		r.stopPoll(inst)
		r.dirty.Store(true)
	})
	return nil
}

// takeImage applies a finished load and reports whether it finished.
func (r *Renderer) takeImage(inst *instance, p *texture.Pending) bool {
	img, err, done := p.Poll()
	if !done {
		return false
	}
	if err != nil {
		inst.imageErr = fmt.Errorf("image %s: %w", p.URL(), err)
		return true
	}
	inst.imageErr = nil
	inst.setColorMap(img)
	return true
}

func (r *Renderer) stopPoll(inst *instance) {
	if inst.cancelPoll != nil {
		inst.cancelPoll()
		inst.cancelPoll = nil
	}
	inst.pending = nil
}

func (r *Renderer) cancelImage(inst *instance) {
	if inst.pending != nil {
		inst.pending.Cancel()
	}
	r.stopPoll(inst)
	if inst.imageURL != "" || inst.imageErr != nil {
		inst.imageURL = ""
		inst.imageErr = nil
		inst.setColorMap(nil)
	}
}

// style applies the fixed decal material and the edit highlight.
func (r *Renderer) style(inst *instance) {
	m := inst.material
	m.Color = mgl32.Vec3{1, 1, 1}
	m.Opacity = 1
	m.Roughness = r.opts.Roughness
	m.Metalness = r.opts.Metalness
	m.DoubleSided = true
	m.Transparent = true
	m.DepthWrite = false
	m.PolygonOffsetFactor = r.opts.PolygonOffset
	if inst.editing {
		m.Emissive = r.highlight
		m.EmissiveIntensity = r.opts.HighlightIntensity
	} else {
		m.Emissive = mgl32.Vec3{}
		m.EmissiveIntensity = 0
	}
}

// shape cuts the decal geometry out of the drawable. The result is cached
// until the box or the drawable geometry changes.
func (r *Renderer) shape(inst *instance) error {
	d := inst.decal
	rot := scene.QuatFromEuler(d.Rotation)
	box := scene.ComposeTRS(d.Position, rot, d.Scale)

	inst.node.Position = d.Position
	inst.node.Rotation = rot
	inst.node.Scale = d.Scale

	geo := inst.drawable.Geometry
	if geo == nil {
		inst.shaped = false
		return fmt.Errorf("decal on %q: %w", inst.drawable.Name, ErrNoGeometry)
	}
	key := shapeKey{geometry: geo, version: geo.Version, box: box}
	if inst.shaped && key == inst.shape {
		return nil
	}

	out, err := Project(geo, box)
	if err != nil {
		inst.shaped = false
		return fmt.Errorf("decal on %q: %w", inst.drawable.Name, err)
	}
	// Project works in box space; the node carries the box transform.
	inst.node.Geometry = out
	inst.shape = key
	inst.shaped = true
	return nil
}

func (r *Renderer) showPlaceholder(inst *instance) error {
	if !r.inGrace() {
		r.dropPlaceholder(inst)
		return nil
	}
	if err := r.content(inst); err != nil {
		return err
	}
	r.style(inst)
	if inst.placeholder == nil {
		p := scene.NewNode("placeholder:"+inst.id, scene.KindHelper)
		p.Geometry = unitQuad()
		p.Material = inst.material
		p.Billboard = true
		r.overlay.Add(p)
		inst.placeholder = p
	}
	d := inst.decal
	inst.placeholder.Position = d.Position.Add(mgl32.Vec3{0, 0, placeholderLift})
	inst.placeholder.Scale = d.Scale
	inst.placeholder.Visible = inst.material.ColorMap != nil
	return nil
}

func (r *Renderer) dropPlaceholder(inst *instance) {
	if inst.placeholder == nil {
		return
	}
	inst.placeholder.Detach()
	inst.placeholder = nil
}

// release detaches an instance from its drawable and stops waiting for one.
func (r *Renderer) release(inst *instance) {
	if inst.cancelAwait != nil {
		inst.cancelAwait()
		inst.cancelAwait = nil
	}
	if r.gadget != nil && r.gadget.Target() == inst.node {
		r.gadget.Detach()
		r.gadgetID = ""
	}
	inst.node.Detach()
	inst.node.Visible = false
	inst.drawable = nil
	inst.shaped = false
}

func (r *Renderer) teardown(inst *instance) {
	r.release(inst)
	r.cancelImage(inst)
	r.dropPlaceholder(inst)
	inst.node.Geometry = nil
	inst.textKey = ""
}

func (r *Renderer) syncGadget() {
	if r.gadget == nil {
		return
	}
	var inst *instance
	if edit, ok := r.store.EditTarget(); ok {
		inst = r.instances[edit.DecalID]
	}
	if inst == nil || inst.drawable == nil || inst.err != nil {
		if r.gadgetID != "" {
			r.gadget.Detach()
			r.gadgetID = ""
		}
		return
	}
	if err := r.gadget.SetMode(gizmo.Mode(r.store.TransformMode())); err != nil {
		r.log.Debug("unsupported transform mode", zap.Error(err))
	}
	r.gadget.Attach(inst.node)
	r.gadgetID = inst.id
}

// reseat snaps a decal back onto its drawable after a gadget drag step.
// The cast starts half a unit outside the decal and aims at the drawable
// origin; without a hit only the scale is kept.
func (r *Renderer) reseat(node *scene.Node) {
	inst := r.instances[r.gadgetID]
	if inst == nil || inst.node != node || inst.drawable == nil {
		return
	}
	drawable := inst.drawable
	scale := node.Scale
	patch := store.Patch{Scale: &scale}

	worldPos := node.WorldPosition()
	dir := drawable.WorldPosition().Sub(worldPos)
	if dir.Len() > 1e-6 {
		dir = dir.Normalize()
		ray := picking.NewRay(worldPos.Sub(dir.Mul(0.5)), dir)
		if hits := r.scene.IntersectNode(drawable, ray); len(hits) > 0 {
			surf, err := placement.ResolveFrame(drawable, hits[0])
			if err == nil {
				rot := keepTwist(scene.QuatFromEuler(surf.Rotation), node.Rotation)
				euler := scene.EulerFromQuat(rot)
				patch.Position = &surf.Point
				patch.Rotation = &euler
			} else {
				r.log.Warn("gadget re-seat failed", zap.String("decal", inst.id), zap.Error(err))
			}
		} else {
			r.log.Debug("gadget moved decal off the surface", zap.String("decal", inst.id))
		}
	}

	if err := r.store.UpdateDecal(inst.part, inst.id, patch); err != nil {
		r.log.Warn("gadget update rejected", zap.String("decal", inst.id), zap.Error(err))
	}
}

// keepTwist returns align with the spin of current about the local forward
// axis applied on top of it.
func keepTwist(align, current mgl32.Quat) mgl32.Quat {
	rel := align.Inverse().Mul(current)
	twist := mgl32.Quat{W: rel.W, V: mgl32.Vec3{0, 0, rel.V[2]}}
	if twist.Len() < 1e-6 {
		return align
	}
	return align.Mul(twist.Normalize())
}

// DecalAt returns the nearest visible decal hit by ray.
func (r *Renderer) DecalAt(ray picking.Ray) (id, part string, ok bool) {
	best := float32(-1)
	for _, inst := range r.instances {
		if inst.drawable == nil || !inst.node.Visible || inst.node.Geometry == nil {
			continue
		}
		hits := r.scene.IntersectNode(inst.node, ray)
		if len(hits) == 0 {
			continue
		}
		if best < 0 || hits[0].Distance < best {
			best = hits[0].Distance
			id, part, ok = inst.id, inst.part, true
		}
	}
	return id, part, ok
}

// Lookup describes the live instance of a decal.
func (r *Renderer) Lookup(id string) (View, bool) {
	inst, ok := r.instances[id]
	if !ok {
		return View{}, false
	}
	return inst.view(), true
}

// Len returns the number of live instances.
func (r *Renderer) Len() int {
	return len(r.instances)
}

// Close unsubscribes from the store and removes every decal visual.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	for id, inst := range r.instances {
		r.teardown(inst)
		delete(r.instances, id)
	}
	if r.gadget != nil {
		r.gadget.Detach()
		r.gadget.OnChange = nil
	}
	r.overlay.Detach()
	if r.cancelGrace != nil {
		r.cancelGrace()
		r.cancelGrace = nil
	}
	if r.ownsTracker {
		r.tracker.Close()
	}
}
