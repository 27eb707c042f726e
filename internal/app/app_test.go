package app

import (
	"context"
	"errors"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/decalforge/internal/api"
	"github.com/Faultbox/decalforge/internal/catalog"
	"github.com/Faultbox/decalforge/internal/config"
	"github.com/Faultbox/decalforge/internal/customizer/placement"
	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/scene"
	"github.com/Faultbox/decalforge/internal/engine/textraster"
	"github.com/Faultbox/decalforge/internal/engine/texture"
)

type fakeText struct{}

func (fakeText) Rasterize(textraster.Spec) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, 8, 4)), nil
}

type fakeImages struct{}

func (fakeImages) Load(src string) *texture.Pending {
	return texture.Resolved(src, image.NewRGBA(image.Rect(0, 0, 4, 4)), nil)
}

type fakePixels struct {
	err error
}

func (f fakePixels) ReadPixels() ([]byte, int, int, error) {
	if f.err != nil {
		return nil, 0, 0, f.err
	}
	return make([]byte, 2*2*4), 2, 2, nil
}

// panelGraph builds product -> P1 -> Panel_A, a 2x2 quad facing +Z, and
// product -> P2 -> Panel_B off to the side.
func panelGraph() *scene.Graph {
	quad := func(x float32) *scene.Geometry {
		return &scene.Geometry{
			Positions: []mgl32.Vec3{{x - 1, -1, 0}, {x + 1, -1, 0}, {x + 1, 1, 0}, {x - 1, 1, 0}},
			Indices:   []uint32{0, 1, 2, 0, 2, 3},
		}
	}
	root := scene.NewNode("product", scene.KindGroup)
	p1 := scene.NewNode("P1", scene.KindGroup)
	a := scene.NewNode("Panel_A", scene.KindDrawable)
	a.Geometry = quad(0)
	p1.Add(a)
	p2 := scene.NewNode("P2", scene.KindGroup)
	b := scene.NewNode("Panel_B", scene.KindDrawable)
	b.Geometry = quad(5)
	p2.Add(b)
	root.Add(p1)
	root.Add(p2)
	return scene.NewGraph(root)
}

type fixture struct {
	app  *App
	cfg  *config.Config
	now  time.Time
	logs *observer.ObservedLogs
}

func newFixture(t *testing.T, tweak ...func(*config.Config, *Options)) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)

	cfg := config.Default()
	cfg.Product.ID = "test-product"
	cfg.Product.RootNode = "product"
	cfg.Product.Parts = []string{"P1", "P2"}
	cfg.Product.DefaultPart = "P1"
	cfg.Server.Enabled = false
	cfg.Capture.OutputDir = t.TempDir()
	cfg.Viewer.Width = 800
	cfg.Viewer.Height = 600

	f := &fixture{cfg: cfg, now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), logs: logs}
	opts := Options{
		Graph:  panelGraph(),
		Text:   fakeText{},
		Images: fakeImages{},
		Now:    func() time.Time { return f.now },
		Logger: zap.New(core),
	}
	for _, fn := range tweak {
		fn(cfg, &opts)
	}

	a, err := New(cfg, opts)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	f.app = a
	f.frame()
	return f
}

// frame advances the clock past the readiness poll and renders one frame.
func (f *fixture) frame() {
	f.now = f.now.Add(100 * time.Millisecond)
	f.app.Frame(f.now)
}

// pump renders frames until ready reports true. Frames run on the test
// goroutine, which owns the app.
func (f *fixture) pump(t *testing.T, ready func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !ready() {
		require.True(t, time.Now().Before(deadline), "timed out waiting for the loop")
		f.frame()
		time.Sleep(time.Millisecond)
	}
}

func (f *fixture) clickCenter() {
	vp := f.app.Viewport()
	f.app.PointerDown(vp.Width/2, vp.Height/2)
	f.app.PointerUp()
}

func TestNewFramesTheProduct(t *testing.T) {
	f := newFixture(t)

	cam := f.app.Camera()
	assert.InDelta(t, 2.5, cam.Target.X(), 1e-4)
	assert.Equal(t, []string{"P1", "P2"}, f.app.Store().PartNames())
	assert.Equal(t, placement.Idle, f.app.PlacementState())
	assert.Empty(t, f.app.APIAddr())
	assert.Nil(t, f.app.Catalog())
}

func TestPlacementClickCreatesDecal(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, o *Options) {
		// Frame only Panel_A so the centre ray lands on it.
		g := panelGraph()
		g.FindByName("P2").Visible = false
		o.Graph = g
	})
	f.app.Camera().FitToBounds(f.app.Graph().FindByName("Panel_A").Geometry.Bounds())

	require.True(t, f.app.TogglePlacement())
	assert.Equal(t, placement.Placing, f.app.PlacementState())

	f.clickCenter()
	f.frame()

	decals := f.app.Store().Decals("P1")
	require.Len(t, decals, 1)
	d := decals[0]
	assert.Equal(t, store.KindText, d.Kind)
	assert.Equal(t, f.cfg.Decals.DefaultContent, d.Content)
	assert.Equal(t, "Panel_A", d.TargetMesh)
	assert.InDelta(t, 0, d.Position.Z(), 1e-4)

	assert.Equal(t, placement.Editing, f.app.PlacementState())
	assert.Equal(t, 1, f.app.Decals().Len())
	assert.NotNil(t, f.app.Gadget().Target())
}

func TestIdleClickSelectsDecal(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, o *Options) {
		g := panelGraph()
		g.FindByName("P2").Visible = false
		o.Graph = g
	})
	f.app.Camera().FitToBounds(f.app.Graph().FindByName("Panel_A").Geometry.Bounds())

	f.app.TogglePlacement()
	f.clickCenter()
	f.frame()
	id := f.app.Store().Decals("P1")[0].ID

	f.app.FinishEditing()
	f.frame()
	require.Equal(t, placement.Idle, f.app.PlacementState())
	require.Nil(t, f.app.Gadget().Target())

	f.clickCenter()
	session, ok := f.app.Store().EditTarget()
	require.True(t, ok)
	assert.Equal(t, store.EditingSession{Part: "P1", DecalID: id}, session)
}

func TestIdleClickOnBareSurfaceDoesNothing(t *testing.T) {
	f := newFixture(t)

	f.clickCenter()
	assert.Empty(t, f.app.Store().AllDecals())
	_, ok := f.app.Store().EditTarget()
	assert.False(t, ok)
}

func TestDragOrbitsCameraOnlyWhileDown(t *testing.T) {
	f := newFixture(t)
	cam := f.app.Camera()
	cam.Damping = false
	start := cam.Azimuth

	f.app.PointerMove(10, 10)
	f.app.PointerMove(50, 10)
	assert.Equal(t, start, cam.Azimuth)

	f.app.PointerDown(0, 0)
	f.app.PointerMove(40, 0)
	f.app.PointerUp()
	assert.NotEqual(t, start, cam.Azimuth)
}

func TestDeleteEditTarget(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.app.DeleteEditTarget(), ErrNoEditTarget)

	d, err := f.app.AddImageDecal("logo.png")
	require.NoError(t, err)
	f.frame()
	assert.Equal(t, 1, f.app.Decals().Len())

	require.NoError(t, f.app.DeleteEditTarget())
	f.frame()
	_, found := f.app.Store().FindDecal(d.ID)
	assert.False(t, found)
	assert.Equal(t, 0, f.app.Decals().Len())
}

func TestAddImageDecalTargetsPartMesh(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.Store().SelectPart("P2"))

	d, err := f.app.AddImageDecal("logo.png")
	require.NoError(t, err)

	assert.Equal(t, store.KindImage, d.Kind)
	assert.Equal(t, "Panel_B", d.TargetMesh)
	assert.Equal(t, f.app.Graph().FindByName("Panel_B").ID, d.TargetMeshID)
	assert.Equal(t, mgl32.Vec3{imageScale, imageScale, imageScale}, d.Scale)
	assert.True(t, strings.HasPrefix(d.ID, "img"))

	session, ok := f.app.Store().EditTarget()
	require.True(t, ok)
	assert.Equal(t, "P2", session.Part)
	assert.False(t, f.app.Store().PlacementMode())
}

func TestTransformModeFollowsStore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.SetTransformMode(store.ModeRotate))
	assert.Equal(t, store.ModeRotate, f.app.Store().TransformMode())
	assert.ErrorIs(t, f.app.SetTransformMode("shear"), store.ErrInvalidMode)
}

func TestLoopRunsPostedWorkOnFrame(t *testing.T) {
	f := newFixture(t)

	done := make(chan error, 1)
	ran := false
	go func() {
		done <- f.app.Loop().Do(context.Background(), func() error {
			ran = true
			return errors.New("handled")
		})
	}()

	var err error
	f.pump(t, func() bool {
		select {
		case err = <-done:
			return true
		default:
			return false
		}
	})
	assert.EqualError(t, err, "handled")
	assert.True(t, ran)
}

func TestLoopDoHonoursContext(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := l.Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoopCloseFailsQueuedWork(t *testing.T) {
	l := NewLoop(4)
	done := make(chan error, 1)
	go func() { done <- l.Do(context.Background(), func() error { return nil }) }()

	require.Eventually(t, func() bool { return len(l.queue) == 1 }, time.Second, time.Millisecond)
	l.Close()

	assert.ErrorIs(t, <-done, api.ErrLoopClosed)
	assert.ErrorIs(t, l.Post(func() {}), api.ErrLoopClosed)
	assert.Equal(t, 0, l.Drain())
}

func TestSetSceneKeepsDecals(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.AddImageDecal("logo.png")
	require.NoError(t, err)
	f.frame()
	require.Equal(t, 1, f.app.Decals().Len())

	g := panelGraph()
	f.app.SetScene(g)
	f.frame()

	assert.Same(t, g, f.app.Graph())
	assert.Len(t, f.app.Store().AllDecals(), 1)
	v, ok := f.app.Decals().Lookup(f.app.Store().AllDecals()[0].Decal.ID)
	require.True(t, ok)
	assert.Same(t, g.FindByName("Panel_A"), v.Drawable)
}

func TestCapture(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, o *Options) {
		o.Pixels = fakePixels{}
	})

	path, err := f.app.Capture()
	require.NoError(t, err)
	assert.Equal(t, f.cfg.Capture.OutputDir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "custom-product-"))
	assert.Equal(t, ".png", filepath.Ext(path))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestCaptureWithoutSurface(t *testing.T) {
	f := newFixture(t)
	_, err := f.app.Capture()
	assert.ErrorIs(t, err, ErrNoCapture)

	g := newFixture(t, func(_ *config.Config, o *Options) {
		o.Pixels = fakePixels{err: errors.New("no context")}
	})
	_, err = g.app.Capture()
	assert.ErrorContains(t, err, "no context")
}

func TestUnknownCaptureFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Capture.Format = "gif"
	_, err := New(cfg, Options{Graph: panelGraph(), Text: fakeText{}, Images: fakeImages{}})
	assert.Error(t, err)
}

func TestMissingCatalogIsNotFatal(t *testing.T) {
	f := newFixture(t, func(c *config.Config, _ *Options) {
		c.Catalog.Path = filepath.Join(t.TempDir(), "missing.json")
	})
	assert.Nil(t, f.app.Catalog())
	assert.Equal(t, 1, f.logs.FilterMessage("fabric catalog unavailable").Len())
}

func TestApplyFabric(t *testing.T) {
	f := newFixture(t, func(c *config.Config, _ *Options) {
		c.Catalog.Path = filepath.Join("..", "catalog", "testdata", "fabrics.json")
	})
	require.NotNil(t, f.app.Catalog())

	require.NoError(t, f.app.ApplyFabric("P1", "11"))
	p, _ := f.app.Store().Part("P1")
	assert.Equal(t, "11", p.FabricID)
	assert.Equal(t, "/uploads/ct.png", p.Maps["map"])
	assert.Equal(t, float32(15), p.TextureScale)

	assert.ErrorIs(t, f.app.ApplyFabric("P1", "999"), catalog.ErrNotFound)
	assert.ErrorIs(t, f.app.ApplyFabric("nope", "11"), store.ErrUnknownPart)

	require.NoError(t, f.app.ApplyFabric("P1", ""))
	p, _ = f.app.Store().Part("P1")
	assert.Empty(t, p.FabricID)
	assert.Nil(t, p.Maps)
}

func TestApplyFabricWithoutCatalog(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.app.ApplyFabric("P1", "11"), catalog.ErrNotFound)
}

func TestAPIServesThroughLoop(t *testing.T) {
	f := newFixture(t, func(c *config.Config, o *Options) {
		c.Server.Enabled = true
		c.Server.Addr = "127.0.0.1:0"
		c.Server.UploadDir = t.TempDir()
		o.Pixels = fakePixels{}
	})
	addr := f.app.APIAddr()
	require.NotEmpty(t, addr)

	type result struct {
		status int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		body := strings.NewReader(`{"type":"text","content":"HELLO"}`)
		resp, err := http.Post("http://"+addr+"/api/v1/parts/P1/decals", "application/json", body)
		if err != nil {
			done <- result{err: err}
			return
		}
		resp.Body.Close()
		done <- result{status: resp.StatusCode}
	}()

	var res result
	f.pump(t, func() bool {
		select {
		case res = <-done:
			return true
		default:
			return false
		}
	})

	require.NoError(t, res.err)
	assert.Equal(t, http.StatusCreated, res.status)
	decals := f.app.Store().Decals("P1")
	require.Len(t, decals, 1)
	assert.Equal(t, "HELLO", decals[0].Content)
}

func TestCloseRejectsLoopWork(t *testing.T) {
	f := newFixture(t)
	f.app.Close()

	err := f.app.Loop().Do(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, api.ErrLoopClosed)
}

func TestRunStopsWithContext(t *testing.T) {
	f := newFixture(t, func(_ *config.Config, o *Options) {
		o.Now = time.Now
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, f.app.Run(ctx, 120))
}
