// Package viewer runs the customizer in an SDL2 window: it renders the
// product and decals, draws the HUD and feeds pointer and key input to the
// app.
package viewer

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/app"
	"github.com/Faultbox/decalforge/internal/config"
	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/audio"
	"github.com/Faultbox/decalforge/internal/engine/framebuffer"
	"github.com/Faultbox/decalforge/internal/engine/input"
	"github.com/Faultbox/decalforge/internal/engine/renderer"
	"github.com/Faultbox/decalforge/internal/engine/ui2d"
	"github.com/Faultbox/decalforge/internal/engine/window"
	"github.com/Faultbox/decalforge/internal/logger"
)

// statusTTL is how long a status message stays on the HUD.
const statusTTL = 4 * time.Second

// Viewer is the windowed front end.
type Viewer struct {
	cfg *config.Config
	log *zap.Logger

	app      *app.App
	window   *window.Window
	scene    *renderer.Renderer
	fb       *framebuffer.Framebuffer
	input    *input.Input
	canvas   *ui2d.Renderer
	hud      *ui2d.Context
	sounds   *audio.Manager
	running  bool
	hudPress bool

	unsubscribe func()

	// pickImage opens the file chooser; it runs off the main thread.
	pickImage func() (string, error)

	status      string
	statusUntil time.Time
}

// New opens the window and builds the app on top of it.
func New(cfg *config.Config, opts app.Options) (*Viewer, error) {
	log := logger.Named("viewer")
	v := &Viewer{cfg: cfg, log: log, pickImage: openImageDialog}

	log.Info("initializing viewer",
		zap.Int("width", cfg.Viewer.Width),
		zap.Int("height", cfg.Viewer.Height),
		zap.Bool("fullscreen", cfg.Viewer.Fullscreen))

	var err error
	v.window, err = window.New(window.Config{
		Title:      "decalforge: " + cfg.Product.ID,
		Width:      cfg.Viewer.Width,
		Height:     cfg.Viewer.Height,
		Fullscreen: cfg.Viewer.Fullscreen,
		VSync:      cfg.Viewer.VSync,
		Samples:    4,
		Logger:     log.Named("window"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// GL objects below need the context the window just made current.
	if v.scene, err = renderer.New(renderer.Config{Logger: log.Named("renderer")}); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	dw, dh := v.window.DrawableSize()
	if v.fb, err = framebuffer.New(int32(dw), int32(dh)); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create framebuffer: %w", err)
	}
	font, err := ui2d.NewFont(ui2d.DefaultFontSize, false)
	if err != nil {
		v.Close()
		return nil, err
	}
	w, h := v.window.Size()
	if v.canvas, err = ui2d.New(w, h, font); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create HUD: %w", err)
	}
	v.hud = ui2d.NewContext(v.canvas)
	v.input = input.New()

	opts.Pixels = v.fb
	if v.app, err = app.New(cfg, opts); err != nil {
		v.Close()
		return nil, err
	}
	v.resize()

	v.sounds = newSounds(cfg.Audio, log.Named("audio"))
	v.unsubscribe = v.app.Store().Subscribe(v.cue)

	log.Info("viewer initialized")
	return v, nil
}

// newSounds prepares the interface cues. A missing audio device leaves the
// viewer silent.
func newSounds(cfg config.AudioConfig, log *zap.Logger) *audio.Manager {
	m := audio.New(log)
	if !cfg.Enabled {
		return m
	}
	for name, path := range cfg.Cues {
		c, ok := audio.ParseCue(name)
		if !ok {
			log.Warn("unknown audio cue", zap.String("cue", name))
			continue
		}
		if err := m.Load(c, path); err != nil {
			log.Warn("audio cue not loaded", zap.Error(err))
		}
	}
	m.SetVolume(cfg.Volume)
	if err := m.Init(); err != nil {
		log.Warn("audio unavailable", zap.Error(err))
	}
	return m
}

// cue plays the sound for a store change.
func (v *Viewer) cue(e store.Event) {
	switch e.Kind {
	case store.EventDecalCreated:
		v.sounds.Play(audio.CuePlace)
	case store.EventDecalDeleted:
		v.sounds.Play(audio.CueDelete)
	}
}

// App returns the session the viewer drives.
func (v *Viewer) App() *app.App {
	return v.app
}

// Run drives frames until the window closes.
func (v *Viewer) Run() error {
	v.running = true
	frames := 0
	fpsTimer := time.Now()
	last := fpsTimer

	v.log.Info("starting render loop")
	for v.running {
		now := time.Now()
		dt := now.Sub(last)
		last = now

		if v.input.Update() {
			break
		}
		for _, ev := range v.input.Events() {
			v.handle(ev)
		}

		v.app.Frame(now)
		v.render(now)
		v.window.SwapBuffers()

		frames++
		if now.Sub(fpsTimer) >= time.Second {
			v.log.Debug("fps", zap.Int("count", frames), zap.Duration("dt", dt))
			frames = 0
			fpsTimer = now
		}
	}
	v.log.Info("render loop stopped")
	return nil
}

func (v *Viewer) resize() {
	w, h := v.window.Size()
	dw, dh := v.window.DrawableSize()
	v.fb.Resize(int32(dw), int32(dh))
	ratio := float32(1)
	if w > 0 {
		ratio = float32(dw) / float32(w)
	}
	v.canvas.Resize(w, h, ratio)
	v.app.Resize(w, h)
}

func (v *Viewer) handle(ev input.Event) {
	in := v.hud.Input()
	x, y := float32(ev.MouseX), float32(ev.MouseY)

	switch ev.Type {
	case input.EventWindowResize:
		v.resize()

	case input.EventKeyDown:
		v.perform(Bind(ev))

	case input.EventMouseMove:
		in.MouseX, in.MouseY = x, y
		if !v.hudPress {
			v.app.PointerMove(x, y)
		}

	case input.EventMouseDown:
		if ev.Button != input.ButtonLeft {
			return
		}
		in.MouseX, in.MouseY, in.MouseLeftDown = x, y, true
		if v.hud.Over(x, y) {
			v.hudPress = true
			return
		}
		v.app.PointerDown(x, y)

	case input.EventMouseUp:
		if ev.Button != input.ButtonLeft {
			return
		}
		in.MouseLeftDown = false
		if v.hudPress {
			v.hudPress = false
			return
		}
		v.app.PointerUp()

	case input.EventMouseWheel:
		if !v.hud.Over(in.MouseX, in.MouseY) {
			v.app.Zoom(ev.Wheel)
		}

	case input.EventDropFile:
		v.addImage(ev.Path)
	}
}

func (v *Viewer) perform(a Action) {
	if a == ActionNone {
		return
	}
	v.log.Debug("action", zap.Stringer("action", a))

	switch a {
	case ActionTogglePlacement:
		if v.app.TogglePlacement() {
			v.setStatus("Placement armed")
		}
	case ActionTranslate:
		v.setMode(store.ModeTranslate)
	case ActionRotate:
		v.setMode(store.ModeRotate)
	case ActionScale:
		v.setMode(store.ModeScale)
	case ActionDelete:
		if err := v.app.DeleteEditTarget(); err != nil {
			if !errors.Is(err, app.ErrNoEditTarget) {
				v.log.Warn("delete failed", zap.Error(err))
			}
			return
		}
		v.setStatus("Decal deleted")
	case ActionFinish:
		v.app.FinishEditing()
	case ActionAddImage:
		go v.chooseImage()
	case ActionCapture:
		path, err := v.app.Capture()
		if err != nil {
			v.log.Warn("capture failed", zap.Error(err))
			v.sounds.Play(audio.CueError)
			v.setStatus("Capture failed")
			return
		}
		v.sounds.Play(audio.CueCapture)
		v.setStatus("Saved " + filepath.Base(path))
	case ActionReload:
		v.app.Reload()
	case ActionQuit:
		v.running = false
	}
}

func (v *Viewer) setMode(mode store.TransformMode) {
	if err := v.app.SetTransformMode(mode); err != nil {
		v.log.Warn("transform mode", zap.Error(err))
	}
}

// chooseImage shows the file chooser and queues the result on the app loop.
func (v *Viewer) chooseImage() {
	path, err := v.pickImage()
	if err != nil {
		if !errors.Is(err, dialog.ErrCancelled) {
			v.log.Warn("file dialog failed", zap.Error(err))
		}
		return
	}
	if err := v.app.Loop().Post(func() { v.addImage(path) }); err != nil {
		v.log.Debug("image dropped", zap.Error(err))
	}
}

func (v *Viewer) addImage(path string) {
	d, err := v.app.AddImageDecal(path)
	if err != nil {
		v.log.Warn("image decal failed", zap.String("path", path), zap.Error(err))
		v.setStatus("Could not add image")
		return
	}
	v.log.Info("image decal added", zap.String("id", d.ID), zap.String("path", path))
	v.setStatus("Click the product to place the image")
}

func (v *Viewer) setStatus(msg string) {
	v.status = msg
	v.statusUntil = time.Now().Add(statusTTL)
}

func openImageDialog() (string, error) {
	return dialog.File().
		Filter("Images", "png", "jpg", "jpeg", "webp", "tga", "bmp").
		Filter("All Files", "*").
		Title("Add image decal").
		Load()
}

// snapshot gathers what the HUD shows.
func (v *Viewer) snapshot(now time.Time) hudState {
	st := v.app.Store()
	w, _ := v.canvas.Size()
	s := hudState{
		ScreenWidth: float32(w),
		Placement:   v.app.PlacementState(),
		Transform:   st.TransformMode(),
		Parts:       st.PartNames(),
		Selected:    st.SelectedPart(),
	}
	_, s.Editing = st.EditTarget()
	if p, ok := st.Part(s.Selected); ok {
		s.FabricID = p.FabricID
	}
	if c := v.app.Catalog(); c != nil {
		s.Fabrics = c.All()
	}
	if now.Before(v.statusUntil) {
		s.Status = v.status
	}
	return s
}

func (v *Viewer) render(now time.Time) {
	fw, fh := v.fb.Size()
	cam := v.app.Camera()

	v.fb.Bind()
	v.scene.Render(v.app.Graph(), cam, int(fw), int(fh))
	v.fb.Unbind()

	dw, dh := v.window.DrawableSize()
	v.fb.BlitToScreen(int32(dw), int32(dh))
	if _, editing := v.app.Store().EditTarget(); !editing {
		v.scene.DrawSelection(v.app.Graph().FindByName(v.app.Store().SelectedPart()), cam, dw, dh)
	}
	v.scene.DrawHandles(v.app.Gadget().Handles(), cam, dw, dh)

	v.canvas.Begin()
	v.hud.Begin()
	res := drawHUD(v.hud, v.snapshot(now))
	v.hud.End()
	v.canvas.End()

	v.apply(res)
}

func (v *Viewer) apply(res hudResult) {
	v.perform(res.Action)
	st := v.app.Store()
	if res.SelectPart != "" {
		if err := st.SelectPart(res.SelectPart); err != nil {
			v.log.Warn("select part", zap.Error(err))
		}
	}
	if res.SetFabric {
		if err := v.app.ApplyFabric(st.SelectedPart(), res.Fabric); err != nil {
			v.log.Warn("apply fabric", zap.Error(err))
		}
	}
}

// Close releases the app, GL resources and the window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
	if v.sounds != nil {
		v.sounds.Close()
	}
	if v.app != nil {
		v.app.Close()
	}
	if v.canvas != nil {
		v.canvas.Close()
	}
	if v.fb != nil {
		v.fb.Destroy()
	}
	if v.scene != nil {
		v.scene.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
