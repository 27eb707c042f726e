// Package gizmo implements a three-axis transform gadget that drags a scene
// node along, around or by its parent-frame axes.
package gizmo

import (
	"errors"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/decalforge/internal/engine/picking"
	"github.com/Faultbox/decalforge/internal/engine/scene"
)

// Mode selects the manipulation.
type Mode string

const (
	Translate Mode = "translate"
	Rotate    Mode = "rotate"
	Scale     Mode = "scale"
)

var ErrInvalidMode = errors.New("invalid gadget mode")

// Axis is a handle index.
type Axis int

const (
	AxisNone Axis = iota - 1
	AxisX
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "none"
	}
}

func (a Axis) unit() mgl32.Vec3 {
	var v mgl32.Vec3
	v[a] = 1
	return v
}

const (
	// DefaultSize is the handle length in world units.
	DefaultSize = 0.6
	// MinScale keeps a scaled axis from collapsing.
	MinScale = 0.01
	// pickTolerance is the grab distance as a fraction of Size.
	pickTolerance = 0.12
	epsilon       = 1e-6
)

// Lock suspends camera orbiting; *camera.OrbitControl implements it.
type Lock interface {
	Suspend() (release func())
}

// Handle describes one axis handle in world space for drawing.
type Handle struct {
	Axis      Axis
	Origin    mgl32.Vec3
	Direction mgl32.Vec3 // unit; ring normal in Rotate mode
	Length    float32    // segment length or ring radius
	Ring      bool
	Active    bool
}

type dragState struct {
	axis       Axis
	release    func()
	toParent   mgl32.Mat4 // world -> parent space at drag start
	startPos   mgl32.Vec3
	startRot   mgl32.Quat
	startScale mgl32.Vec3
	startParam float32
	startVec   mgl32.Vec3
}

// Gadget manipulates one attached node at a time.
type Gadget struct {
	Size float32
	// OnChange runs after every drag update that modified the node.
	OnChange func(n *scene.Node)

	mode   Mode
	lock   Lock
	target *scene.Node
	drag   *dragState
}

// New creates a translate gadget. lock may be nil.
func New(lock Lock) *Gadget {
	return &Gadget{Size: DefaultSize, mode: Translate, lock: lock}
}

// Mode returns the current mode.
func (g *Gadget) Mode() Mode {
	return g.mode
}

// SetMode switches the manipulation, ending any drag in progress.
func (g *Gadget) SetMode(m Mode) error {
	switch m {
	case Translate, Rotate, Scale:
	default:
		return ErrInvalidMode
	}
	if m != g.mode {
		g.EndDrag()
		g.mode = m
	}
	return nil
}

// Attach targets n. Attaching another node ends any drag in progress.
func (g *Gadget) Attach(n *scene.Node) {
	if n != g.target {
		g.EndDrag()
	}
	g.target = n
}

// Detach drops the target and releases any held orbit suspension.
func (g *Gadget) Detach() {
	g.EndDrag()
	g.target = nil
}

// Target returns the attached node or nil.
func (g *Gadget) Target() *scene.Node {
	return g.target
}

// Dragging reports whether a drag is active.
func (g *Gadget) Dragging() bool {
	return g.drag != nil
}

func (g *Gadget) parentWorld() mgl32.Mat4 {
	if p := g.target.Parent(); p != nil {
		return p.World()
	}
	return mgl32.Ident4()
}

// axisIn returns the manipulation axis in parent space. Scale follows the
// node's own rotated axes; translate and rotate use the parent frame.
func (g *Gadget) axisIn(axis Axis, rot mgl32.Quat) mgl32.Vec3 {
	if g.mode == Scale {
		return rot.Rotate(axis.unit()).Normalize()
	}
	return axis.unit()
}

// Handles returns the world-space handles of the attached node.
func (g *Gadget) Handles() []Handle {
	if g.target == nil {
		return nil
	}
	parent := g.parentWorld()
	origin := g.target.WorldPosition()
	handles := make([]Handle, 0, 3)
	for _, axis := range []Axis{AxisX, AxisY, AxisZ} {
		local := g.axisIn(axis, g.target.Rotation)
		var dir mgl32.Vec3
		if g.mode == Rotate {
			dir = scene.NormalMatrix(parent).Mul3x1(local)
		} else {
			dir = parent.Mat3().Mul3x1(local)
		}
		if dir.Len() < epsilon {
			continue
		}
		handles = append(handles, Handle{
			Axis:      axis,
			Origin:    origin,
			Direction: dir.Normalize(),
			Length:    g.Size,
			Ring:      g.mode == Rotate,
			Active:    g.drag != nil && g.drag.axis == axis,
		})
	}
	return handles
}

// PickAxis returns the handle nearest the ray within grab tolerance.
func (g *Gadget) PickAxis(ray picking.Ray) (Axis, bool) {
	best, bestDist := AxisNone, g.Size*pickTolerance
	for _, h := range g.Handles() {
		var d float32
		var ok bool
		if h.Ring {
			d, ok = ringDistance(ray, h)
		} else {
			d, ok = segmentDistance(ray, h)
		}
		if ok && d <= bestDist {
			best, bestDist = h.Axis, d
		}
	}
	return best, best != AxisNone
}

// BeginDrag starts dragging axis. Orbiting stays suspended until EndDrag.
func (g *Gadget) BeginDrag(axis Axis, ray picking.Ray) bool {
	if g.target == nil || axis < AxisX || axis > AxisZ {
		return false
	}
	g.EndDrag()

	parent := g.parentWorld()
	if parent.Det() == 0 {
		return false
	}
	d := &dragState{
		axis:       axis,
		toParent:   parent.Inv(),
		startPos:   g.target.Position,
		startRot:   g.target.Rotation,
		startScale: g.target.Scale,
	}
	local := ray.Transform(d.toParent)

	switch g.mode {
	case Rotate:
		v, ok := planeVector(local, d.startPos, g.axisIn(axis, d.startRot))
		if !ok {
			return false
		}
		d.startVec = v
	default:
		s, ok := lineParam(local, d.startPos, g.axisIn(axis, d.startRot))
		if !ok || (g.mode == Scale && math32.Abs(s) < epsilon) {
			return false
		}
		d.startParam = s
	}

	if g.lock != nil {
		d.release = g.lock.Suspend()
	}
	g.drag = d
	return true
}

// DragTo applies the drag for the current pointer ray and reports whether the
// node changed.
func (g *Gadget) DragTo(ray picking.Ray) bool {
	d := g.drag
	if d == nil || g.target == nil {
		return false
	}
	local := ray.Transform(d.toParent)
	axis := g.axisIn(d.axis, d.startRot)

	switch g.mode {
	case Translate:
		s, ok := lineParam(local, d.startPos, axis)
		if !ok {
			return false
		}
		g.target.Position = d.startPos.Add(axis.Mul(s - d.startParam))
	case Scale:
		s, ok := lineParam(local, d.startPos, axis)
		if !ok {
			return false
		}
		scale := d.startScale
		scale[d.axis] = max(d.startScale[d.axis]*s/d.startParam, MinScale)
		g.target.Scale = scale
	case Rotate:
		v, ok := planeVector(local, d.startPos, axis)
		if !ok {
			return false
		}
		angle := math32.Atan2(axis.Dot(d.startVec.Cross(v)), d.startVec.Dot(v))
		g.target.Rotation = mgl32.QuatRotate(angle, axis).Mul(d.startRot).Normalize()
	}

	if g.OnChange != nil {
		g.OnChange(g.target)
	}
	return true
}

// EndDrag finishes a drag and restores orbiting. It is safe to call when idle.
func (g *Gadget) EndDrag() {
	if g.drag == nil {
		return
	}
	if g.drag.release != nil {
		g.drag.release()
	}
	g.drag = nil
}

// lineParam returns s such that origin + s*axis is the point on the axis line
// closest to the ray.
func lineParam(ray picking.Ray, origin, axis mgl32.Vec3) (float32, bool) {
	d := ray.Direction
	w := origin.Sub(ray.Origin)
	a := axis.Dot(axis)
	b := axis.Dot(d)
	c := d.Dot(d)
	denom := a*c - b*b
	if math32.Abs(denom) < epsilon*c {
		return 0, false
	}
	return (b*d.Dot(w) - c*axis.Dot(w)) / denom, true
}

// planeVector intersects the ray with the plane through origin normal to
// axis and returns the unit direction from origin to the hit.
func planeVector(ray picking.Ray, origin, axis mgl32.Vec3) (mgl32.Vec3, bool) {
	t, ok := ray.IntersectPlane(origin, axis)
	if !ok {
		return mgl32.Vec3{}, false
	}
	v := ray.At(t).Sub(origin)
	if v.Len() < epsilon {
		return mgl32.Vec3{}, false
	}
	return v.Normalize(), true
}

func segmentDistance(ray picking.Ray, h Handle) (float32, bool) {
	s, ok := lineParam(ray, h.Origin, h.Direction)
	if !ok {
		return 0, false
	}
	s = mgl32.Clamp(s, 0, h.Length)
	p := h.Origin.Add(h.Direction.Mul(s))
	return pointRayDistance(ray, p), true
}

func ringDistance(ray picking.Ray, h Handle) (float32, bool) {
	t, ok := ray.IntersectPlane(h.Origin, h.Direction)
	if !ok {
		return 0, false
	}
	r := ray.At(t).Sub(h.Origin).Len()
	return math32.Abs(r - h.Length), true
}

func pointRayDistance(ray picking.Ray, p mgl32.Vec3) float32 {
	c := ray.Direction.Dot(ray.Direction)
	if c == 0 {
		return p.Sub(ray.Origin).Len()
	}
	t := max(p.Sub(ray.Origin).Dot(ray.Direction)/c, 0)
	return p.Sub(ray.At(t)).Len()
}
