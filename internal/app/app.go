// Package app assembles the customizer: state store, scene, decal renderer,
// part appearance, click placement and the command API, all driven from one
// owning goroutine.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/api"
	"github.com/Faultbox/decalforge/internal/assets"
	"github.com/Faultbox/decalforge/internal/catalog"
	"github.com/Faultbox/decalforge/internal/config"
	"github.com/Faultbox/decalforge/internal/customizer/appearance"
	"github.com/Faultbox/decalforge/internal/customizer/placement"
	"github.com/Faultbox/decalforge/internal/customizer/projection"
	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/camera"
	"github.com/Faultbox/decalforge/internal/engine/capture"
	"github.com/Faultbox/decalforge/internal/engine/gizmo"
	"github.com/Faultbox/decalforge/internal/engine/picking"
	"github.com/Faultbox/decalforge/internal/engine/scene"
	"github.com/Faultbox/decalforge/internal/engine/textraster"
	"github.com/Faultbox/decalforge/internal/engine/texture"
	"github.com/Faultbox/decalforge/internal/engine/timer"
	"github.com/Faultbox/decalforge/internal/logger"
)

// imageScale is the initial size of image decals added from the viewer.
const imageScale = 0.5

var (
	ErrNoEditTarget = errors.New("no decal is being edited")
	ErrNoCapture    = errors.New("capture needs a rendering surface")
)

// PixelSource reads back the last rendered frame as bottom-up RGBA rows.
type PixelSource interface {
	ReadPixels() (pixels []byte, width, height int, err error)
}

// ImageLoader starts background image loads; *texture.Loader implements it.
type ImageLoader interface {
	Load(src string) *texture.Pending
}

// Options override the parts of the app that tests and the viewer supply.
type Options struct {
	// Graph replaces loading Product.ModelURL; model watching is disabled.
	Graph  *scene.Graph
	Text   projection.TextRasterizer
	Images ImageLoader
	// Pixels enables still capture.
	Pixels PixelSource
	Now    func() time.Time
	Logger *zap.Logger
}

type pointerState struct {
	down bool
	x, y float32
}

// App owns the customization session.
type App struct {
	cfg *config.Config
	log *zap.Logger
	now func() time.Time

	loop  *Loop
	store *store.Store
	sched *timer.Scheduler
	graph *scene.Graph

	assets  *assets.Manager
	watcher *assets.Watcher
	images  ImageLoader
	catalog *catalog.Catalog

	camera     *camera.OrbitCamera
	gadget     *gizmo.Gadget
	decals     *projection.Renderer
	appearance *appearance.Applier
	placement  *placement.Controller

	capturer *capture.Capturer
	pixels   PixelSource

	feed   *api.Feed
	server *api.Server

	viewport picking.Viewport
	pointer  pointerState

	closeOnce sync.Once
}

// New builds the session from cfg.
func New(cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Named("app")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	a := &App{
		cfg:    cfg,
		log:    log,
		now:    now,
		loop:   NewLoop(0),
		pixels: opts.Pixels,
		assets: assets.NewManager("", cfg.Product.ModelScale, log.Named("assets")),
		viewport: picking.Viewport{
			Width:  float32(cfg.Viewer.Width),
			Height: float32(cfg.Viewer.Height),
		},
	}

	a.store = store.New(store.Config{
		ProductID:   cfg.Product.ID,
		ModelURL:    cfg.Product.ModelURL,
		Parts:       cfg.Product.Parts,
		DefaultPart: cfg.Product.DefaultPart,
		Logger:      log.Named("store"),
	})

	a.graph = opts.Graph
	if a.graph == nil {
		g, err := a.assets.Load(cfg.Product.ModelURL)
		if err != nil {
			return nil, err
		}
		a.graph = g
	}

	a.images = opts.Images
	if a.images == nil {
		a.images = texture.NewLoader(texture.LoaderConfig{
			MaxSize: cfg.Decals.MaxImageSize,
			Logger:  log.Named("texture"),
		})
	}
	text := opts.Text
	if text == nil {
		r, err := textraster.New()
		if err != nil {
			return nil, fmt.Errorf("loading fonts: %w", err)
		}
		text = r
	}

	format := capture.PNG
	if cfg.Capture.Format != "" {
		f, err := capture.ParseFormat(cfg.Capture.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	a.capturer = capture.New(cfg.Capture.OutputDir, cfg.Capture.Prefix, format)
	a.capturer.Now = now

	a.camera = camera.NewOrbitCamera()
	if cfg.Viewer.FOVDegrees > 0 {
		a.camera.FOVDegrees = cfg.Viewer.FOVDegrees
	}
	a.camera.FitToBounds(worldBounds(a.graph))
	a.gadget = gizmo.New(a.camera.Control)
	a.sched = timer.NewScheduler(now())

	a.decals = projection.New(projection.Config{
		Store:     a.store,
		Scene:     a.graph,
		Scheduler: a.sched,
		Text:      text,
		Images:    a.images,
		Gadget:    a.gadget,
		Options:   decalOptions(cfg),
		Logger:    log.Named("decals"),
	})
	a.appearance = appearance.New(a.store, a.graph, a.images, log.Named("appearance"))
	a.placement = placement.New(placement.Config{
		Store:    a.store,
		Scene:    a.graph,
		Camera:   a.camera,
		Orbit:    a.camera.Control,
		RootName: cfg.Product.RootNode,
		Defaults: placement.Defaults{
			Content:    cfg.Decals.DefaultContent,
			FontFamily: cfg.Decals.FontFamily,
			FontSize:   cfg.Decals.FontSize,
			Color:      cfg.Decals.Color,
			Scale:      cfg.Decals.Scale,
		},
		Logger: log.Named("placement"),
	})

	if cfg.Catalog.Path != "" {
		c, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			log.Warn("fabric catalog unavailable", zap.String("path", cfg.Catalog.Path), zap.Error(err))
		} else {
			a.catalog = c
			log.Info("fabric catalog loaded", zap.Int("fabrics", c.Len()))
		}
	}

	if cfg.Product.WatchModel && opts.Graph == nil {
		w, err := assets.Watch(a.assets.Resolve(cfg.Product.ModelURL), assets.DefaultDebounce, func(string) {
			a.Reload()
		}, log.Named("watcher"))
		if err != nil {
			log.Warn("model watching disabled", zap.Error(err))
		} else {
			a.watcher = w
		}
	}

	if cfg.Server.Enabled {
		if err := a.serve(); err != nil {
			a.Close()
			return nil, fmt.Errorf("starting api: %w", err)
		}
	}

	a.log.Info("customizer ready",
		zap.String("product", cfg.Product.ID),
		zap.Int("parts", len(a.store.PartNames())),
		zap.Int("drawables", len(a.graph.Drawables())))
	return a, nil
}

func decalOptions(cfg *config.Config) projection.Options {
	o := projection.DefaultOptions()
	if cfg.Decals.TextPadding > 0 {
		o.Padding = cfg.Decals.TextPadding
	}
	if cfg.Decals.HighlightColor != "" {
		o.HighlightColor = cfg.Decals.HighlightColor
	}
	o.HighlightIntensity = cfg.Decals.HighlightIntensity
	o.PolygonOffset = cfg.Decals.PolygonOffset
	if cfg.Tracker.PollInterval > 0 {
		o.PollInterval = cfg.Tracker.PollInterval
	}
	o.GraceWindow = cfg.Tracker.GraceWindow
	o.Placeholder = cfg.Tracker.Placeholder
	return o
}

func (a *App) serve() error {
	var capturer api.Capturer
	if a.pixels != nil {
		capturer = a
	}
	handler := api.NewHandler(api.Config{
		Store:    a.store,
		Loop:     a.loop,
		Catalog:  a.catalog,
		Capturer: capturer,
		Defaults: api.DecalDefaults{
			Content:    a.cfg.Decals.DefaultContent,
			FontFamily: a.cfg.Decals.FontFamily,
			FontSize:   a.cfg.Decals.FontSize,
			Color:      a.cfg.Decals.Color,
			Scale:      a.cfg.Decals.Scale,
			ImageScale: imageScale,
		},
		UploadDir:      a.cfg.Server.UploadDir,
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		MaxFabrics:     a.cfg.Catalog.MaxResults,
		Logger:         a.log.Named("api"),
	})
	a.feed = api.NewFeed(a.store, a.log.Named("feed"))

	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := api.Start(a.cfg.Server.Addr, api.NewRouter(a.log.Named("http"), handler, a.feed), a.log.Named("http"))
	if err != nil {
		return err
	}
	a.server = srv
	return nil
}

// worldBounds is the union of every drawable's world-space bounds.
func worldBounds(g *scene.Graph) picking.AABB {
	box := picking.EmptyAABB()
	for _, n := range g.Drawables() {
		if !n.Geometry.Ready() || !n.Geometry.Valid() {
			continue
		}
		b := n.Geometry.Bounds().Transform(n.World())
		box = box.Extend(b.Min).Extend(b.Max)
	}
	return box
}

// Loop is where other goroutines post work for the session.
func (a *App) Loop() *Loop { return a.loop }

// Store returns the customization state.
func (a *App) Store() *store.Store { return a.store }

// Graph returns the current scene.
func (a *App) Graph() *scene.Graph { return a.graph }

// Camera returns the orbit camera.
func (a *App) Camera() *camera.OrbitCamera { return a.camera }

// Gadget returns the transform gadget.
func (a *App) Gadget() *gizmo.Gadget { return a.gadget }

// Decals returns the decal renderer.
func (a *App) Decals() *projection.Renderer { return a.decals }

// Catalog returns the fabric catalog, or nil when none is configured.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// APIAddr returns the bound API address, or "" when the API is off.
func (a *App) APIAddr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr().String()
}

// PlacementState reports the click mode for display.
func (a *App) PlacementState() placement.State {
	s, _ := a.placement.State()
	return s
}

// Frame runs queued work, fires due timers and brings materials and decals
// up to date. Call once per rendered frame.
func (a *App) Frame(now time.Time) {
	a.loop.Drain()
	a.sched.Advance(now)
	a.camera.Update()
	a.appearance.Update()
	a.decals.Update()
}

// Run drives Frame at fps until ctx ends. The viewer runs its own loop;
// this is the headless variant.
func (a *App) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	a.log.Info("running headless", zap.Int("fps", fps), zap.String("api", a.APIAddr()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Frame(a.now())
		}
	}
}

// Resize updates the viewport used for pick rays.
func (a *App) Resize(width, height int) {
	a.viewport.Width = float32(width)
	a.viewport.Height = float32(height)
}

// Viewport returns the current viewport.
func (a *App) Viewport() picking.Viewport { return a.viewport }

// PointerDown dispatches a primary-button press: a gadget handle starts a
// drag; otherwise placement runs; an idle click on a decal opens it for
// editing.
func (a *App) PointerDown(x, y float32) {
	a.pointer = pointerState{down: true, x: x, y: y}
	ray := a.camera.Ray(a.viewport, x, y)

	if a.gadget.Target() != nil {
		if axis, ok := a.gadget.PickAxis(ray); ok && a.gadget.BeginDrag(axis, ray) {
			return
		}
	}

	state, _ := a.placement.State()
	if _, err := a.placement.PointerDown(placement.Pointer{X: x, Y: y, Viewport: a.viewport}); err != nil {
		return
	}
	if state != placement.Idle {
		return
	}
	if id, part, ok := a.decals.DecalAt(ray); ok {
		if err := a.store.SetEditTarget(&store.EditingSession{Part: part, DecalID: id}); err != nil {
			a.log.Debug("decal selection failed", zap.String("decal", id), zap.Error(err))
		}
	}
}

// PointerMove drags the gadget or orbits the camera.
func (a *App) PointerMove(x, y float32) {
	dx, dy := x-a.pointer.x, y-a.pointer.y
	a.pointer.x, a.pointer.y = x, y

	if a.gadget.Dragging() {
		a.gadget.DragTo(a.camera.Ray(a.viewport, x, y))
		return
	}
	if a.pointer.down {
		a.camera.HandleDrag(dx, dy)
	}
}

// PointerUp ends a drag.
func (a *App) PointerUp() {
	a.pointer.down = false
	if a.gadget.Dragging() {
		a.gadget.EndDrag()
	}
}

// Zoom moves the camera in or out.
func (a *App) Zoom(delta float32) {
	a.camera.HandleZoom(delta)
}

// TogglePlacement arms or disarms click-to-place.
func (a *App) TogglePlacement() bool {
	return a.placement.TogglePlacement()
}

// SetTransformMode selects what the gadget manipulates.
func (a *App) SetTransformMode(mode store.TransformMode) error {
	return a.store.SetTransformMode(mode)
}

// DeleteEditTarget removes the decal being edited.
func (a *App) DeleteEditTarget() error {
	session, ok := a.store.EditTarget()
	if !ok {
		return ErrNoEditTarget
	}
	return a.store.DeleteDecal(session.Part, session.DecalID)
}

// FinishEditing closes the edit session and disarms placement.
func (a *App) FinishEditing() {
	a.store.SetPlacementMode(false)
	a.store.ClearEditTarget()
}

// AddImageDecal adds the image at src to the selected part. The decal
// becomes the edit target so the next click seats it on the surface.
func (a *App) AddImageDecal(src string) (store.Decal, error) {
	part := a.store.SelectedPart()
	d := store.Decal{
		ID:         store.NewDecalID("img"),
		Kind:       store.KindImage,
		ImageURL:   src,
		Scale:      mgl32.Vec3{imageScale, imageScale, imageScale},
		TargetMesh: part,
	}
	if mesh := a.partMesh(part); mesh != nil {
		d.TargetMesh = mesh.Name
		d.TargetMeshID = mesh.ID
	}
	return a.store.CreateDecal(part, d)
}

// partMesh is the first drawable at or under the node named part.
func (a *App) partMesh(part string) *scene.Node {
	n := a.graph.FindByName(part)
	if n == nil {
		return nil
	}
	var mesh *scene.Node
	n.Walk(func(c *scene.Node) bool {
		if mesh != nil {
			return false
		}
		if c.Kind == scene.KindDrawable && c.Geometry != nil {
			mesh = c
			return false
		}
		return true
	})
	return mesh
}

// ApplyFabric dresses part in the catalog fabric id. An empty id removes
// the fabric.
func (a *App) ApplyFabric(part, id string) error {
	if id == "" {
		return a.store.SetPartFabric(part, "", nil, 0, 0)
	}
	if a.catalog == nil {
		return fmt.Errorf("%w: no catalog loaded", catalog.ErrNotFound)
	}
	fabric, err := a.catalog.Find(id)
	if err != nil {
		return err
	}
	return a.store.SetPartFabric(part, fabric.ID, store.FabricMaps(fabric.Maps), fabric.LockedScale, fabric.LockedNormalScale)
}

// Capture writes the last rendered frame to the capture directory. It must
// run on the owning goroutine, after a frame was drawn.
func (a *App) Capture() (string, error) {
	if a.pixels == nil {
		return "", ErrNoCapture
	}
	pixels, w, h, err := a.pixels.ReadPixels()
	if err != nil {
		return "", fmt.Errorf("reading frame: %w", err)
	}
	path, err := a.capturer.SavePixels(pixels, w, h)
	if err != nil {
		return "", err
	}
	a.log.Info("still captured", zap.String("path", path), zap.Int("width", w), zap.Int("height", h))
	return path, nil
}

// Reload re-reads the model in the background and swaps it in on the loop.
func (a *App) Reload() {
	path := a.cfg.Product.ModelURL
	go func() {
		res := <-a.assets.LoadAsync(path)
		if res.Err != nil {
			a.log.Warn("model reload failed", zap.String("path", res.Path), zap.Error(res.Err))
			return
		}
		if err := a.loop.Post(func() { a.SetScene(res.Graph) }); err != nil {
			a.log.Debug("reload dropped", zap.Error(err))
		}
	}()
}

// SetScene swaps in a new scene. Decals re-resolve their meshes against it;
// unresolved ones stay hidden and keep their state.
func (a *App) SetScene(g *scene.Graph) {
	a.gadget.EndDrag()
	a.graph = g
	a.decals.SetScene(g)
	a.appearance.SetScene(g)
	a.placement.SetScene(g)
	a.camera.FitToBounds(worldBounds(g))
	a.log.Info("scene swapped", zap.Int("drawables", len(g.Drawables())))
}

// Close stops the API, the watcher and every decal instance.
func (a *App) Close() {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("api shutdown", zap.Error(err))
		}
		cancel()
	}
	if a.feed != nil {
		a.feed.Close()
	}
	a.loop.Close()
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.decals != nil {
		a.decals.Close()
	}
	if a.appearance != nil {
		a.appearance.Close()
	}
	a.assets.Close()
}
