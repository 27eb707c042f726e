// Package placement turns pointer clicks on the product surface into decal
// creations and repositions.
package placement

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/picking"
	"github.com/Faultbox/decalforge/internal/engine/scene"
)

var (
	ErrNoHit           = errors.New("no surface hit")
	ErrNoDrawable      = errors.New("no drawable in hit chain")
	ErrNoPart          = errors.New("no part for drawable")
	ErrDegenerateFrame = errors.New("degenerate surface frame")
	ErrNoTarget        = errors.New("edit target no longer exists")
)

// IsResolutionFailure reports whether err means the click could not be
// resolved to a surface, drawable or part. Such failures leave state untouched.
func IsResolutionFailure(err error) bool {
	return errors.Is(err, ErrNoHit) ||
		errors.Is(err, ErrNoDrawable) ||
		errors.Is(err, ErrNoPart) ||
		errors.Is(err, ErrDegenerateFrame) ||
		errors.Is(err, ErrNoTarget)
}

// State is the controller mode derived from the store.
type State int

const (
	Idle State = iota
	Placing
	Editing
)

func (s State) String() string {
	switch s {
	case Placing:
		return "placing"
	case Editing:
		return "editing"
	default:
		return "idle"
	}
}

// Action describes what a pointer-down did.
type Action int

const (
	ActionNone Action = iota
	ActionCreated
	ActionRepositioned
)

// Store is the state the controller reads and mutates.
type Store interface {
	PlacementMode() bool
	SetPlacementMode(on bool)
	EditTarget() (store.EditingSession, bool)
	SelectedPart() string
	HasPart(name string) bool
	FindDecal(id string) (store.PartDecal, bool)
	CreateDecal(part string, d store.Decal) (store.Decal, error)
	UpdateDecal(part, id string, p store.Patch) error
	MoveDecal(from, to, id string) error
}

// Scene is the ray-intersection surface of the scene graph.
type Scene interface {
	FindByName(name string) *scene.Node
	Intersect(subtree *scene.Node, ray picking.Ray) []scene.Hit
}

// Camera produces pick rays.
type Camera interface {
	Ray(vp picking.Viewport, clientX, clientY float32) picking.Ray
}

// OrbitLock suspends camera orbiting; *camera.OrbitControl implements it.
type OrbitLock interface {
	Suspend() (release func())
}

type noLock struct{}

func (noLock) Suspend() func() { return func() {} }

// Defaults seeds newly placed text decals.
type Defaults struct {
	Content    string
	FontFamily string
	FontSize   float64
	Color      string
	Scale      float32
}

// Pointer is a pointer-down event in client pixels.
type Pointer struct {
	X, Y     float32
	Viewport picking.Viewport
}

// Outcome reports a successful dispatch.
type Outcome struct {
	Action  Action
	Part    string
	DecalID string
	Surface Surface
}

// Config wires a Controller.
type Config struct {
	Store    Store
	Scene    Scene
	Camera   Camera
	Orbit    OrbitLock
	RootName string // product subtree; the whole graph when empty or missing
	Defaults Defaults
	Logger   *zap.Logger
}

// Controller owns pointer-driven placement and reposition.
type Controller struct {
	store    Store
	scene    Scene
	camera   Camera
	orbit    OrbitLock
	rootName string
	defaults Defaults
	log      *zap.Logger
}

// New creates a controller.
func New(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Orbit == nil {
		cfg.Orbit = noLock{}
	}
	return &Controller{
		store:    cfg.Store,
		scene:    cfg.Scene,
		camera:   cfg.Camera,
		orbit:    cfg.Orbit,
		rootName: cfg.RootName,
		defaults: cfg.Defaults,
		log:      log,
	}
}

// SetScene swaps the scene after a model reload.
func (c *Controller) SetScene(s Scene) {
	c.scene = s
}

// State returns the current mode and, when editing, the target decal id.
// An armed placement takes precedence over an open edit session.
func (c *Controller) State() (State, string) {
	if c.store.PlacementMode() {
		return Placing, ""
	}
	if e, ok := c.store.EditTarget(); ok {
		return Editing, e.DecalID
	}
	return Idle, ""
}

// TogglePlacement flips placement mode and returns the new value.
func (c *Controller) TogglePlacement() bool {
	on := !c.store.PlacementMode()
	c.store.SetPlacementMode(on)
	return on
}

// PointerDown runs the placement contract for one click. Orbiting is
// suspended for the whole dispatch and restored on every exit path.
// Resolution failures are logged and returned; they never mutate state.
func (c *Controller) PointerDown(p Pointer) (out Outcome, err error) {
	release := c.orbit.Suspend()
	defer release()

	state, editID := c.State()
	if state == Idle {
		return Outcome{}, nil
	}

	defer func() {
		if err != nil {
			c.logFailure(err, p)
		}
	}()

	hit, drawable, err := c.pick(p)
	if err != nil {
		return Outcome{}, err
	}

	part, err := c.resolvePart(drawable)
	if err != nil {
		return Outcome{}, err
	}

	surf, err := ResolveFrame(drawable, hit)
	if err != nil {
		return Outcome{}, fmt.Errorf("drawable %q: %w", drawable.Name, err)
	}

	if state == Placing {
		return c.create(part, surf)
	}
	return c.reposition(editID, part, surf)
}

func (c *Controller) pick(p Pointer) (scene.Hit, *scene.Node, error) {
	ray := c.camera.Ray(p.Viewport, p.X, p.Y)

	var root *scene.Node
	if c.rootName != "" {
		root = c.scene.FindByName(c.rootName)
	}
	hits := c.scene.Intersect(root, ray)
	if len(hits) == 0 {
		return scene.Hit{}, nil, ErrNoHit
	}

	hit := hits[0]
	drawable := DrawableAncestor(hit.Node)
	if drawable == nil {
		return scene.Hit{}, nil, fmt.Errorf("hit %s %q: %w", hit.Node.Kind, hit.Node.Name, ErrNoDrawable)
	}
	return hit, drawable, nil
}

// resolvePart walks from the drawable upward for a node named after a known
// part, then falls back to the drawable's name, then to the selected part.
func (c *Controller) resolvePart(drawable *scene.Node) (string, error) {
	chain := append([]*scene.Node{drawable}, drawable.Ancestors()...)
	for _, n := range chain {
		if n.Name != "" && c.store.HasPart(n.Name) {
			return n.Name, nil
		}
	}
	if drawable.Name != "" {
		return drawable.Name, nil
	}
	if sel := c.store.SelectedPart(); sel != "" {
		return sel, nil
	}
	return "", fmt.Errorf("drawable %s: %w", drawable.ID, ErrNoPart)
}

// targetName is the display reference stored on a decal: the drawable name,
// or its stable id when unnamed.
func targetName(n *scene.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

func (c *Controller) create(part string, surf Surface) (Outcome, error) {
	s := c.defaults.Scale
	d, err := c.store.CreateDecal(part, store.Decal{
		ID:           store.NewDecalID("txt"),
		Kind:         store.KindText,
		Content:      c.defaults.Content,
		FontFamily:   c.defaults.FontFamily,
		FontSize:     c.defaults.FontSize,
		Color:        c.defaults.Color,
		Position:     surf.Point,
		Rotation:     surf.Rotation,
		Scale:        mgl32.Vec3{s, s, s},
		TargetMesh:   targetName(surf.Drawable),
		TargetMeshID: surf.Drawable.ID,
	})
	if err != nil {
		return Outcome{}, err
	}

	c.log.Debug("decal created",
		zap.String("decal", d.ID),
		zap.String("part", part),
		zap.String("mesh", d.TargetMesh))
	return Outcome{Action: ActionCreated, Part: part, DecalID: d.ID, Surface: surf}, nil
}

// reposition re-seats the edit target on the clicked surface. When the click
// lands on another part the decal moves to that part.
func (c *Controller) reposition(id, part string, surf Surface) (Outcome, error) {
	current, ok := c.store.FindDecal(id)
	if !ok {
		return Outcome{}, fmt.Errorf("decal %s: %w", id, ErrNoTarget)
	}

	owner := current.Part
	if owner != part {
		if err := c.store.MoveDecal(owner, part, id); err != nil {
			return Outcome{}, err
		}
		c.log.Debug("decal migrated to another part",
			zap.String("decal", id),
			zap.String("from", owner),
			zap.String("to", part))
		owner = part
	}

	name := targetName(surf.Drawable)
	meshID := surf.Drawable.ID
	err := c.store.UpdateDecal(owner, id, store.Patch{
		Position:     &surf.Point,
		Rotation:     &surf.Rotation,
		TargetMesh:   &name,
		TargetMeshID: &meshID,
	})
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Action: ActionRepositioned, Part: owner, DecalID: id, Surface: surf}, nil
}

func (c *Controller) logFailure(err error, p Pointer) {
	fields := []zap.Field{zap.Error(err), zap.Float32("x", p.X), zap.Float32("y", p.Y)}
	switch {
	case errors.Is(err, ErrNoHit):
		c.log.Debug("pointer missed the product", fields...)
	case IsResolutionFailure(err):
		c.log.Warn("placement aborted", fields...)
	default:
		c.log.Error("placement failed", fields...)
	}
}
