package projection

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/decalforge/internal/customizer/readiness"
	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/camera"
	"github.com/Faultbox/decalforge/internal/engine/gizmo"
	"github.com/Faultbox/decalforge/internal/engine/picking"
	"github.com/Faultbox/decalforge/internal/engine/scene"
	"github.com/Faultbox/decalforge/internal/engine/textraster"
	"github.com/Faultbox/decalforge/internal/engine/texture"
	"github.com/Faultbox/decalforge/internal/engine/timer"
)

const tick = 50 * time.Millisecond

// plane is a 2x2 quad facing +Z at height z.
func plane(z float32) *scene.Geometry {
	return &scene.Geometry{
		Positions: []mgl32.Vec3{{-1, -1, z}, {1, -1, z}, {1, 1, z}, {-1, 1, z}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

type fakeText struct {
	calls int
}

func (f *fakeText) Rasterize(spec textraster.Spec) (*image.RGBA, error) {
	f.calls++
	switch spec.Text {
	case "boom":
		panic("rasterizer exploded")
	case "":
		return nil, textraster.ErrInvalidSize
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 4)), nil
}

type fakeImages map[string]*texture.Pending

func (f fakeImages) Load(src string) *texture.Pending {
	if p, ok := f[src]; ok {
		return p
	}
	return texture.Resolved(src, nil, errors.New("not found"))
}

type fixture struct {
	store   *store.Store
	graph   *scene.Graph
	panel   *scene.Node
	sched   *timer.Scheduler
	now     time.Time
	text    *fakeText
	images  ImageLoader
	orbit   *camera.OrbitControl
	gadget  *gizmo.Gadget
	tracker *readiness.Tracker
	r       *Renderer
	logs    *observer.ObservedLogs
}

// newFixture builds product -> Panel_A, a drawable whose surface sits at
// local z=0.5 so the mesh origin is behind it.
func newFixture(t *testing.T, tweak ...func(*Config)) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	f := &fixture{
		store: store.New(store.Config{Parts: []string{"Panel_A"}, Logger: log}),
		now:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		text:  &fakeText{},
		orbit: camera.NewOrbitControl(),
		logs:  logs,
	}
	f.images = fakeImages{
		"logo.png": texture.Resolved("logo.png", image.NewRGBA(image.Rect(0, 0, 4, 4)), nil),
	}

	root := scene.NewNode("product", scene.KindGroup)
	f.panel = scene.NewNode("Panel_A", scene.KindDrawable)
	f.panel.Geometry = plane(0.5)
	root.Add(f.panel)
	f.graph = scene.NewGraph(root)

	f.sched = timer.NewScheduler(f.now)
	f.tracker = readiness.New(f.graph, f.sched, tick, log)
	f.gadget = gizmo.New(f.orbit)

	cfg := Config{
		Store:     f.store,
		Scene:     f.graph,
		Scheduler: f.sched,
		Text:      f.text,
		Images:    f.images,
		Gadget:    f.gadget,
		Tracker:   f.tracker,
		Options:   DefaultOptions(),
		Logger:    log,
	}
	for _, fn := range tweak {
		fn(&cfg)
	}
	f.r = New(cfg)
	t.Cleanup(f.r.Close)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
	f.sched.Advance(f.now)
}

func (f *fixture) addText(t *testing.T, id, content, mesh string) {
	t.Helper()
	_, err := f.store.CreateDecal("Panel_A", store.Decal{
		ID:         id,
		Kind:       store.KindText,
		Content:    content,
		FontFamily: "Inter",
		FontSize:   64,
		Color:      "#ffffff",
		Position:   mgl32.Vec3{0, 0, 0.5},
		Scale:      mgl32.Vec3{0.5, 0.5, 0.5},
		TargetMesh: mesh,
	})
	require.NoError(t, err)
}

func (f *fixture) view(t *testing.T, id string) View {
	t.Helper()
	v, ok := f.r.Lookup(id)
	require.True(t, ok, "no instance for %s", id)
	return v
}

func (f *fixture) warnings(msg string) int {
	return f.logs.FilterMessage(msg).FilterLevelExact(zapcore.WarnLevel).Len()
}

func TestProjectClipsToBox(t *testing.T) {
	out, err := Project(plane(0), mgl32.Ident4())
	require.NoError(t, err)
	require.NotEmpty(t, out.Indices)
	assert.NotZero(t, out.Version)
	require.Len(t, out.UVs, len(out.Positions))

	for i, p := range out.Positions {
		for axis := 0; axis < 3; axis++ {
			assert.LessOrEqual(t, math32.Abs(p[axis]), float32(0.5+1e-5))
		}
		uv := out.UVs[i]
		assert.InDelta(t, p[0]+0.5, uv[0], 1e-5)
		assert.InDelta(t, p[1]+0.5, uv[1], 1e-5)
		assert.InDelta(t, 1, out.Normals[i][2], 1e-5)
	}
}

func TestProjectScaledBoxInTargetSpace(t *testing.T) {
	box := scene.ComposeTRS(mgl32.Vec3{0.5, 0, 0}, mgl32.QuatIdent(), mgl32.Vec3{0.4, 0.2, 1})
	out, err := Project(plane(0), box)
	require.NoError(t, err)

	// Back in target space every vertex stays inside the box footprint.
	for _, p := range out.Positions {
		w := mgl32.TransformCoordinate(p, box)
		assert.InDelta(t, 0.5, w[0], 0.2+1e-5)
		assert.InDelta(t, 0, w[1], 0.1+1e-5)
	}
}

func TestProjectCullsFacesPointingAway(t *testing.T) {
	g := plane(0)
	g.Indices = []uint32{0, 2, 1, 0, 3, 2}
	_, err := Project(g, mgl32.Ident4())
	assert.ErrorIs(t, err, ErrEmptyProjection)
}

func TestProjectFailures(t *testing.T) {
	_, err := Project(plane(5), mgl32.Ident4())
	assert.ErrorIs(t, err, ErrEmptyProjection)

	_, err = Project(plane(0), mgl32.Scale3D(1, 0, 1))
	assert.ErrorIs(t, err, ErrDegenerateBox)

	_, err = Project(&scene.Geometry{}, mgl32.Ident4())
	assert.ErrorIs(t, err, ErrNoGeometry)

	_, err = Project(nil, mgl32.Ident4())
	assert.ErrorIs(t, err, ErrNoGeometry)

	broken := plane(0)
	broken.Indices = []uint32{0, 1, 9}
	_, err = Project(broken, mgl32.Ident4())
	assert.ErrorIs(t, err, ErrNoGeometry)
	assert.True(t, IsProjectionFailure(err))
}

func TestDecalAttachesToDrawable(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	assert.True(t, f.r.Dirty())

	f.r.Update()
	assert.False(t, f.r.Dirty())

	v := f.view(t, "txt-1")
	require.NoError(t, v.Err)
	assert.True(t, v.Visible)
	assert.Same(t, f.panel, v.Drawable)
	assert.Same(t, f.panel, v.Node.Parent())
	assert.Equal(t, scene.KindDecal, v.Node.Kind)
	assert.Equal(t, mgl32.Vec3{0, 0, 0.5}, v.Node.Position)
	require.NotNil(t, v.Node.Geometry)

	m := v.Node.Material
	assert.True(t, m.DoubleSided)
	assert.True(t, m.Transparent)
	assert.False(t, m.DepthWrite)
	assert.Equal(t, float32(-10), m.PolygonOffsetFactor)
	assert.Equal(t, float32(0.7), m.Roughness)
	assert.Zero(t, m.Metalness)
	assert.NotNil(t, m.ColorMap)
}

func TestEditTargetHighlight(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()

	c, err := colorful.Hex("#3b82f6")
	require.NoError(t, err)
	m := f.view(t, "txt-1").Node.Material
	assert.InDelta(t, c.B, m.Emissive[2], 1e-6)
	assert.Equal(t, float32(0.5), m.EmissiveIntensity)

	f.store.ClearEditTarget()
	f.r.Update()
	assert.Zero(t, m.EmissiveIntensity)
	assert.Equal(t, mgl32.Vec3{}, m.Emissive)
}

func TestTextRasterizedOnlyWhenContentChanges(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()
	require.Equal(t, 1, f.text.calls)

	pos := mgl32.Vec3{0.2, 0.1, 0.5}
	require.NoError(t, f.store.UpdateDecal("Panel_A", "txt-1", store.Patch{Position: &pos}))
	f.r.Update()
	assert.Equal(t, 1, f.text.calls)
	assert.Equal(t, pos, f.view(t, "txt-1").Node.Position)

	content := "WORLD"
	require.NoError(t, f.store.UpdateDecal("Panel_A", "txt-1", store.Patch{Content: &content}))
	f.r.Update()
	assert.Equal(t, 2, f.text.calls)

	f.store.ClearEditTarget()
	f.r.Update()
	assert.Equal(t, 2, f.text.calls)
}

func TestDecalWaitsForLateMesh(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_B")
	f.r.Update()

	v := f.view(t, "txt-1")
	assert.False(t, v.Visible)
	assert.Nil(t, v.Drawable)
	assert.Equal(t, 1, f.tracker.Pending())

	// The mesh appears without geometry first.
	late := scene.NewNode("Panel_B", scene.KindDrawable)
	f.graph.Root().Add(late)
	f.advance(tick)
	f.r.Update()
	assert.False(t, f.view(t, "txt-1").Visible)
	assert.Equal(t, 1, f.tracker.Pending())

	late.Geometry = plane(0.5)
	f.advance(tick)
	assert.True(t, f.r.Dirty())
	f.r.Update()

	v = f.view(t, "txt-1")
	assert.True(t, v.Visible)
	assert.Same(t, late, v.Node.Parent())
	assert.Zero(t, f.tracker.Pending())
}

// A mesh removed from the scene without a reload hides its decals until it
// comes back; the stale snapshot must not keep re-attaching them.
func TestDecalHiddenWhileMeshDetached(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()
	require.True(t, f.view(t, "txt-1").Visible)

	root := f.panel.Parent()
	f.panel.Detach()
	f.r.Sync()
	for i := 0; i < 5; i++ {
		f.advance(tick)
		f.r.Update()
	}

	v := f.view(t, "txt-1")
	assert.False(t, f.r.Dirty())
	assert.False(t, v.Visible)
	assert.Nil(t, v.Drawable)
	assert.Nil(t, v.Node.Parent())
	assert.Equal(t, 1, f.tracker.Pending())
	assert.Equal(t, 1, f.logs.FilterMessage("decal attached").Len())

	root.Add(f.panel)
	f.advance(tick)
	assert.True(t, f.r.Dirty())
	f.r.Update()

	v = f.view(t, "txt-1")
	assert.True(t, v.Visible)
	assert.Same(t, f.panel, v.Node.Parent())
	assert.False(t, f.r.Dirty())
	assert.Equal(t, 2, f.logs.FilterMessage("decal attached").Len())
}

func TestPlaceholderDuringGraceWindow(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Options.Placeholder = true })
	f.addText(t, "txt-1", "HELLO", "Panel_B")
	f.r.Update()

	v := f.view(t, "txt-1")
	assert.True(t, v.Placeholder)
	assert.False(t, v.Visible)

	f.advance(tick)
	f.r.Update()
	assert.False(t, f.view(t, "txt-1").Placeholder)
	for _, c := range f.graph.Root().Children() {
		if c.Name == "decal-manager" {
			assert.Empty(t, c.Children())
		}
	}
}

func TestPlaceholderDisabledByDefault(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_B")
	f.r.Update()
	assert.False(t, f.view(t, "txt-1").Placeholder)
}

func TestFailingDecalDoesNotAffectOthers(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "good", "HELLO", "Panel_A")
	f.addText(t, "bad", "boom", "Panel_A")
	f.addText(t, "flat", "FLAT", "Panel_A")
	flat := mgl32.Vec3{1, 0, 1}
	require.NoError(t, f.store.UpdateDecal("Panel_A", "flat", store.Patch{Scale: &flat}))

	f.r.Update()

	assert.True(t, f.view(t, "good").Visible)

	bad := f.view(t, "bad")
	assert.False(t, bad.Visible)
	assert.ErrorIs(t, bad.Err, ErrPanic)

	flatView := f.view(t, "flat")
	assert.False(t, flatView.Visible)
	assert.ErrorIs(t, flatView.Err, ErrDegenerateBox)

	assert.Equal(t, 2, f.warnings("decal projection failed"))

	// Repeated passes do not repeat the warning.
	f.store.ClearEditTarget()
	f.r.Update()
	assert.Equal(t, 2, f.warnings("decal projection failed"))

	// A fixed decal recovers.
	content := "FIXED"
	require.NoError(t, f.store.UpdateDecal("Panel_A", "bad", store.Patch{Content: &content}))
	f.r.Update()
	bad = f.view(t, "bad")
	assert.NoError(t, bad.Err)
	assert.True(t, bad.Visible)
}

func TestDeletedDecalIsTornDown(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.addText(t, "txt-2", "WAIT", "Panel_B")
	f.r.Update()
	node := f.view(t, "txt-1").Node
	require.Equal(t, 1, f.tracker.Pending())

	require.NoError(t, f.store.DeleteDecal("Panel_A", "txt-1"))
	require.NoError(t, f.store.DeleteDecal("Panel_A", "txt-2"))
	f.r.Update()

	assert.Nil(t, node.Parent())
	assert.Zero(t, f.r.Len())
	assert.Zero(t, f.tracker.Pending())
	assert.Nil(t, f.gadget.Target())
}

func TestImageDecal(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CreateDecal("Panel_A", store.Decal{
		ID:         "img-1",
		Kind:       store.KindImage,
		ImageURL:   "logo.png",
		Position:   mgl32.Vec3{0, 0, 0.5},
		Scale:      mgl32.Vec3{0.5, 0.5, 0.5},
		TargetMesh: "Panel_A",
	})
	require.NoError(t, err)
	f.r.Update()

	v := f.view(t, "img-1")
	assert.True(t, v.Visible)
	assert.Zero(t, f.text.calls)
}

func TestImageLoadFailureKeepsDecalHidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CreateDecal("Panel_A", store.Decal{
		ID:         "img-1",
		Kind:       store.KindImage,
		ImageURL:   "missing.png",
		TargetMesh: "Panel_A",
	})
	require.NoError(t, err)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()

	v := f.view(t, "img-1")
	assert.False(t, v.Visible)
	assert.Error(t, v.Err)
	assert.False(t, IsProjectionFailure(v.Err))
	assert.Equal(t, 1, f.warnings("decal image failed to load"))
	assert.True(t, f.view(t, "txt-1").Visible)

	f.r.Sync()
	assert.Equal(t, 1, f.warnings("decal image failed to load"))
}

func TestImageDecalLoadsInBackground(t *testing.T) {
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-gate
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		img.Set(0, 0, color.White)
		_ = png.Encode(w, img)
	}))
	defer srv.Close()
	defer func() {
		select {
		case <-gate:
		default:
			close(gate)
		}
	}()

	loader := texture.NewLoader(texture.LoaderConfig{})
	f := newFixture(t, func(c *Config) { c.Images = loader })
	_, err := f.store.CreateDecal("Panel_A", store.Decal{
		ID:         "img-1",
		Kind:       store.KindImage,
		ImageURL:   srv.URL + "/logo.png",
		Position:   mgl32.Vec3{0, 0, 0.5},
		Scale:      mgl32.Vec3{0.5, 0.5, 0.5},
		TargetMesh: "Panel_A",
	})
	require.NoError(t, err)

	f.r.Update()
	assert.False(t, f.view(t, "img-1").Visible)
	close(gate)

	deadline := time.Now().Add(5 * time.Second)
	for !f.view(t, "img-1").Visible {
		if time.Now().After(deadline) {
			t.Fatal("image decal never became visible")
		}
		time.Sleep(5 * time.Millisecond)
		f.advance(tick)
		f.r.Update()
	}
	assert.NoError(t, f.view(t, "img-1").Err)
}

func TestGadgetFollowsEditTarget(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()
	assert.Same(t, f.view(t, "txt-1").Node, f.gadget.Target())

	require.NoError(t, f.store.SetTransformMode(store.ModeScale))
	f.r.Update()
	assert.Equal(t, gizmo.Scale, f.gadget.Mode())

	f.store.ClearEditTarget()
	f.r.Update()
	assert.Nil(t, f.gadget.Target())
}

// downAt is a ray looking down -Z through (x, y).
func downAt(x, y float32) picking.Ray {
	return picking.NewRay(mgl32.Vec3{x, y, 5}, mgl32.Vec3{0, 0, -1})
}

func TestGadgetDragReseatsOnSurface(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()

	require.True(t, f.gadget.BeginDrag(gizmo.AxisX, downAt(0.1, 0)))
	assert.False(t, f.orbit.Enabled())
	require.True(t, f.gadget.DragTo(downAt(0.6, 0)))
	f.r.Update()
	assert.True(t, f.gadget.Dragging())

	pd, ok := f.store.FindDecal("txt-1")
	require.True(t, ok)
	assert.InDelta(t, 0.5, pd.Decal.Position[0], 1e-4)
	assert.InDelta(t, 0.5, pd.Decal.Position[2], 1e-4)
	assert.InDelta(t, 0, pd.Decal.Rotation.Len(), 1e-4)

	f.gadget.EndDrag()
	assert.True(t, f.orbit.Enabled())
}

func TestGadgetRotationKeepsTwist(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	require.NoError(t, f.store.SetTransformMode(store.ModeRotate))
	f.r.Update()

	require.True(t, f.gadget.BeginDrag(gizmo.AxisZ, downAt(0.3, 0)))
	require.True(t, f.gadget.DragTo(downAt(0, 0.3)))
	f.gadget.EndDrag()
	f.r.Update()

	pd, _ := f.store.FindDecal("txt-1")
	assert.InDelta(t, math32.Pi/2, pd.Decal.Rotation[2], 1e-3)
	assert.InDelta(t, 0.5, pd.Decal.Position[2], 1e-4)
	assert.True(t, f.orbit.Enabled())
}

func TestGadgetReleasedWhenTargetDeletedMidDrag(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()

	require.True(t, f.gadget.BeginDrag(gizmo.AxisX, downAt(0.1, 0)))
	require.NoError(t, f.store.DeleteDecal("Panel_A", "txt-1"))
	f.r.Update()

	assert.False(t, f.gadget.Dragging())
	assert.True(t, f.orbit.Enabled())
}

func TestSetSceneResolvesAgain(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()
	old := f.view(t, "txt-1").Node

	root := scene.NewNode("product", scene.KindGroup)
	panel := scene.NewNode("Panel_A", scene.KindDrawable)
	panel.Geometry = plane(0.5)
	root.Add(panel)
	reloaded := scene.NewGraph(root)

	f.r.SetScene(reloaded)
	assert.Nil(t, old.Parent())
	f.r.Update()

	v := f.view(t, "txt-1")
	assert.True(t, v.Visible)
	assert.Same(t, panel, v.Drawable)

	empty := scene.NewGraph(nil)
	f.r.SetScene(empty)
	f.r.Update()
	v = f.view(t, "txt-1")
	assert.False(t, v.Visible)
	assert.NoError(t, v.Err)
	assert.Nil(t, f.gadget.Target())
}

func TestDecalAt(t *testing.T) {
	f := newFixture(t)
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.r.Update()

	id, part, ok := f.r.DecalAt(downAt(0.1, 0.1))
	require.True(t, ok)
	assert.Equal(t, "txt-1", id)
	assert.Equal(t, "Panel_A", part)

	_, _, ok = f.r.DecalAt(downAt(0.9, 0.9))
	assert.False(t, ok)
}

func TestCloseReleasesEverything(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Tracker = nil })
	f.addText(t, "txt-1", "HELLO", "Panel_A")
	f.addText(t, "txt-2", "WAIT", "Panel_B")
	f.r.Update()
	node := f.view(t, "txt-1").Node

	f.r.Close()
	assert.Nil(t, node.Parent())
	assert.Zero(t, f.r.Len())
	assert.Zero(t, f.sched.Pending())
	assert.Nil(t, f.gadget.Target())

	f.addText(t, "txt-3", "LATE", "Panel_A")
	assert.False(t, f.r.Dirty())
}
