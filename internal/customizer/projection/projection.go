// Package projection keeps the scene's decal visuals in step with the store:
// each decal becomes a child of its resolved drawable carrying geometry cut
// from the drawable's surface, and the edit target carries the transform
// gadget.
package projection

import (
	"errors"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/decalforge/internal/customizer/readiness"
	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/gizmo"
	"github.com/Faultbox/decalforge/internal/engine/picking"
	"github.com/Faultbox/decalforge/internal/engine/scene"
	"github.com/Faultbox/decalforge/internal/engine/textraster"
	"github.com/Faultbox/decalforge/internal/engine/texture"
)

var (
	ErrNoGeometry      = errors.New("target has no usable geometry")
	ErrDegenerateBox   = errors.New("degenerate decal box")
	ErrEmptyProjection = errors.New("decal box does not touch the surface")
	ErrNoContent       = errors.New("decal has no visual content")
	ErrPanic           = errors.New("panic while projecting decal")
)

// IsProjectionFailure reports whether err came from building one decal's
// visual. Such failures hide that decal only.
func IsProjectionFailure(err error) bool {
	return errors.Is(err, ErrNoGeometry) ||
		errors.Is(err, ErrDegenerateBox) ||
		errors.Is(err, ErrEmptyProjection) ||
		errors.Is(err, ErrNoContent) ||
		errors.Is(err, ErrPanic)
}

// Store is the decal state the renderer mirrors.
type Store interface {
	AllDecals() []store.PartDecal
	EditTarget() (store.EditingSession, bool)
	TransformMode() store.TransformMode
	UpdateDecal(part, id string, p store.Patch) error
	Subscribe(fn func(store.Event)) (unsubscribe func())
}

// Scene is the live scene graph; *scene.Graph implements it.
type Scene interface {
	readiness.Source
	Root() *scene.Node
	Snapshot(root *scene.Node) scene.Snapshot
	IntersectNode(n *scene.Node, ray picking.Ray) []scene.Hit
}

// Scheduler runs timers on the render loop; *timer.Scheduler implements it.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) (cancel func())
	Every(interval time.Duration, fn func()) (cancel func())
}

// TextRasterizer turns text specs into colour maps.
type TextRasterizer interface {
	Rasterize(spec textraster.Spec) (*image.RGBA, error)
}

// ImageLoader starts background image loads.
type ImageLoader interface {
	Load(src string) *texture.Pending
}

// Options tune the decal look and timing.
type Options struct {
	Padding            int
	HighlightColor     string
	HighlightIntensity float32
	PolygonOffset      float32
	Roughness          float32
	Metalness          float32
	PollInterval       time.Duration
	GraceWindow        time.Duration
	// Placeholder shows unresolved decals as camera-facing planes during
	// the grace window.
	Placeholder bool
}

// DefaultOptions returns the stock decal look.
func DefaultOptions() Options {
	return Options{
		Padding:            textraster.DefaultPadding,
		HighlightColor:     "#3b82f6",
		HighlightIntensity: 0.5,
		PolygonOffset:      -10,
		Roughness:          0.7,
		Metalness:          0,
		PollInterval:       readiness.DefaultPollInterval,
		GraceWindow:        50 * time.Millisecond,
	}
}

// Config wires a Renderer.
type Config struct {
	Store     Store
	Scene     Scene
	Scheduler Scheduler
	Text      TextRasterizer
	Images    ImageLoader
	// Gadget is attached to the edit target; nil disables it.
	Gadget *gizmo.Gadget
	// Tracker defaults to one built over Scene and Scheduler.
	Tracker *readiness.Tracker
	Options Options
	Logger  *zap.Logger
}

// View is a read-only summary of one decal instance.
type View struct {
	ID          string
	Part        string
	Drawable    *scene.Node
	Node        *scene.Node
	Visible     bool
	Placeholder bool
	Err         error
}
