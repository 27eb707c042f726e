package store

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"
)

// DefaultPartColor is the colour of a part before the user changes it.
const DefaultPartColor = "#ffffff"

// Config seeds a new store.
type Config struct {
	ProductID   string
	ModelURL    string
	Parts       []string
	DefaultPart string
	Logger      *zap.Logger
}

// Store is the single source of truth for customization state.
// It is safe for concurrent use. Subscribers are notified after the lock is
// released, in subscription order.
type Store struct {
	mu sync.RWMutex

	productID string
	modelURL  string
	parts     map[string]*Part
	order     []string
	selected  string
	editing   *EditingSession
	placing   bool
	mode      TransformMode

	subs    map[int]func(Event)
	nextSub int

	log *zap.Logger
}

// New creates a store with one empty part per configured name.
func New(cfg Config) *Store {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		productID: cfg.ProductID,
		modelURL:  cfg.ModelURL,
		parts:     make(map[string]*Part),
		mode:      ModeTranslate,
		subs:      make(map[int]func(Event)),
		log:       log,
	}
	for _, name := range cfg.Parts {
		s.addPartLocked(name)
	}
	switch {
	case cfg.DefaultPart != "":
		s.selected = cfg.DefaultPart
	case len(s.order) > 0:
		s.selected = s.order[0]
	}
	return s
}

func (s *Store) addPartLocked(name string) *Part {
	if p, ok := s.parts[name]; ok {
		return p
	}
	p := &Part{Name: name, Color: DefaultPartColor, Decals: []Decal{}}
	s.parts[name] = p
	s.order = append(s.order, name)
	return p
}

// Subscribe registers fn for change events and returns its unsubscribe func.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// notify must be called without holding the lock.
func (s *Store) notify(events ...Event) {
	s.mu.RLock()
	ids := slices.Sorted(maps.Keys(s.subs))
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.mu.RUnlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// NewDecalID returns a product-unique id with the given prefix.
func NewDecalID(prefix string) string {
	if prefix == "" {
		prefix = "decal"
	}
	return prefix + "-" + uuid.NewString()
}

func (s *Store) findLocked(id string) (part string, index int) {
	for _, name := range s.order {
		for i, d := range s.parts[name].Decals {
			if d.ID == id {
				return name, i
			}
		}
	}
	return "", -1
}

// CreateDecal appends d to part, makes it the edit target and leaves
// placement mode. A missing id is generated; a blank TargetMesh falls back to
// the part name. Unknown parts are registered on first use.
func (s *Store) CreateDecal(part string, d Decal) (Decal, error) {
	if strings.TrimSpace(part) == "" {
		return Decal{}, fmt.Errorf("create decal: %w: empty name", ErrUnknownPart)
	}

	s.mu.Lock()
	if d.ID == "" {
		d.ID = NewDecalID("decal")
	}
	if owner, _ := s.findLocked(d.ID); owner != "" {
		s.mu.Unlock()
		return Decal{}, fmt.Errorf("create decal %s: %w", d.ID, ErrDuplicateID)
	}
	if strings.TrimSpace(d.TargetMesh) == "" {
		d.TargetMesh = part
	}
	if d.Scale == (mgl32.Vec3{}) {
		d.Scale = mgl32.Vec3{1, 1, 1}
	}
	if _, ok := s.parts[part]; !ok {
		s.log.Debug("registering part on first decal", zap.String("part", part))
	}
	p := s.addPartLocked(part)
	p.Decals = append(p.Decals, s.cloneDecal(d))
	s.editing = &EditingSession{Part: part, DecalID: d.ID}
	s.placing = false
	s.mu.Unlock()

	s.notify(
		Event{Kind: EventDecalCreated, Part: part, DecalID: d.ID},
		Event{Kind: EventEditTarget, Part: part, DecalID: d.ID},
		Event{Kind: EventPlacementMode},
	)
	return d, nil
}

// UpdateDecal merges patch into the decal. A blank TargetMesh in the patch is
// rejected on its own; the remaining fields still apply.
func (s *Store) UpdateDecal(part, id string, patch Patch) error {
	if patch.TargetMesh != nil && strings.TrimSpace(*patch.TargetMesh) == "" {
		s.log.Debug("ignoring blank targetMesh in decal update",
			zap.String("part", part), zap.String("decal", id))
		patch.TargetMesh = nil
	}

	s.mu.Lock()
	p, ok := s.parts[part]
	if !ok {
		s.mu.Unlock()
		s.log.Debug("update for unknown part", zap.String("part", part), zap.String("decal", id))
		return fmt.Errorf("update decal %s: %w %q", id, ErrUnknownPart, part)
	}
	i := slices.IndexFunc(p.Decals, func(d Decal) bool { return d.ID == id })
	if i < 0 {
		s.mu.Unlock()
		s.log.Debug("update for unknown decal", zap.String("part", part), zap.String("decal", id))
		return fmt.Errorf("update decal %s: %w", id, ErrUnknownDecal)
	}
	applyPatch(&p.Decals[i], patch)
	s.mu.Unlock()

	s.notify(Event{Kind: EventDecalUpdated, Part: part, DecalID: id})
	return nil
}

func applyPatch(d *Decal, p Patch) {
	if p.Content != nil {
		d.Content = *p.Content
	}
	if p.FontFamily != nil {
		d.FontFamily = *p.FontFamily
	}
	if p.FontSize != nil {
		d.FontSize = *p.FontSize
	}
	if p.Color != nil {
		d.Color = *p.Color
	}
	if p.ClearStroke {
		d.Stroke = nil
	}
	if p.Stroke != nil {
		st := *p.Stroke
		d.Stroke = &st
	}
	if p.ImageURL != nil {
		d.ImageURL = *p.ImageURL
	}
	if p.Position != nil {
		d.Position = *p.Position
	}
	if p.Rotation != nil {
		d.Rotation = *p.Rotation
	}
	if p.Scale != nil {
		d.Scale = *p.Scale
	}
	if p.TargetMesh != nil {
		d.TargetMesh = *p.TargetMesh
	}
	if p.TargetMeshID != nil {
		d.TargetMeshID = *p.TargetMeshID
	}
}

// MoveDecal transfers a decal between parts, keeping its id and carrying the
// edit target along.
func (s *Store) MoveDecal(from, to, id string) error {
	if from == to {
		return nil
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("move decal %s: %w: empty name", id, ErrUnknownPart)
	}

	s.mu.Lock()
	src, ok := s.parts[from]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("move decal %s: %w %q", id, ErrUnknownPart, from)
	}
	i := slices.IndexFunc(src.Decals, func(d Decal) bool { return d.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("move decal %s: %w", id, ErrUnknownDecal)
	}
	d := src.Decals[i]
	src.Decals = slices.Delete(src.Decals, i, i+1)
	dst := s.addPartLocked(to)
	dst.Decals = append(dst.Decals, d)
	if s.editing != nil && s.editing.DecalID == id {
		s.editing = &EditingSession{Part: to, DecalID: id}
	}
	s.mu.Unlock()

	s.notify(Event{Kind: EventDecalMoved, Part: to, DecalID: id})
	return nil
}

// DeleteDecal removes a decal. The edit target is cleared only when it
// referred to this decal.
func (s *Store) DeleteDecal(part, id string) error {
	s.mu.Lock()
	p, ok := s.parts[part]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("delete decal %s: %w %q", id, ErrUnknownPart, part)
	}
	i := slices.IndexFunc(p.Decals, func(d Decal) bool { return d.ID == id })
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("delete decal %s: %w", id, ErrUnknownDecal)
	}
	p.Decals = slices.Delete(p.Decals, i, i+1)
	cleared := false
	if s.editing != nil && s.editing.DecalID == id {
		s.editing = nil
		cleared = true
	}
	s.mu.Unlock()

	events := []Event{{Kind: EventDecalDeleted, Part: part, DecalID: id}}
	if cleared {
		events = append(events, Event{Kind: EventEditTarget})
	}
	s.notify(events...)
	return nil
}

// SetEditTarget selects the decal being edited; nil finishes editing.
func (s *Store) SetEditTarget(session *EditingSession) error {
	s.mu.Lock()
	if session == nil {
		s.editing = nil
		s.mu.Unlock()
		s.notify(Event{Kind: EventEditTarget})
		return nil
	}
	p, ok := s.parts[session.Part]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("edit target: %w %q", ErrUnknownPart, session.Part)
	}
	if !slices.ContainsFunc(p.Decals, func(d Decal) bool { return d.ID == session.DecalID }) {
		s.mu.Unlock()
		return fmt.Errorf("edit target %s: %w", session.DecalID, ErrUnknownDecal)
	}
	s.editing = &EditingSession{Part: session.Part, DecalID: session.DecalID}
	s.mu.Unlock()

	s.notify(Event{Kind: EventEditTarget, Part: session.Part, DecalID: session.DecalID})
	return nil
}

// ClearEditTarget finishes editing.
func (s *Store) ClearEditTarget() {
	_ = s.SetEditTarget(nil)
}

// SetPlacementMode arms or disarms click-to-place.
func (s *Store) SetPlacementMode(on bool) {
	s.mu.Lock()
	changed := s.placing != on
	s.placing = on
	s.mu.Unlock()

	if changed {
		s.notify(Event{Kind: EventPlacementMode})
	}
}

// SetTransformMode selects the gadget mode.
func (s *Store) SetTransformMode(mode TransformMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.notify(Event{Kind: EventTransformMode})
	return nil
}

// SelectPart changes the part the UI is customizing.
func (s *Store) SelectPart(name string) error {
	s.mu.Lock()
	if _, ok := s.parts[name]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("select: %w %q", ErrUnknownPart, name)
	}
	s.selected = name
	s.mu.Unlock()

	s.notify(Event{Kind: EventPartSelected, Part: name})
	return nil
}

// NormalizeColor parses a #rgb or #rrggbb colour into lowercase #rrggbb.
func NormalizeColor(hex string) (string, error) {
	hex = strings.TrimSpace(hex)
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	c, err := colorful.Hex(strings.ToLower(hex))
	if err != nil {
		return "", fmt.Errorf("%w %q", ErrInvalidColor, hex)
	}
	return c.Hex(), nil
}

// SetPartColor sets the base colour of a part.
func (s *Store) SetPartColor(part, hex string) error {
	color, err := NormalizeColor(hex)
	if err != nil {
		return err
	}
	s.mu.Lock()
	p, ok := s.parts[part]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("set colour: %w %q", ErrUnknownPart, part)
	}
	p.Color = color
	s.mu.Unlock()

	s.notify(Event{Kind: EventPartAppearance, Part: part})
	return nil
}

// SetPartFabric assigns a fabric and its texture maps to a part. An empty
// fabricID removes the fabric.
func (s *Store) SetPartFabric(part, fabricID string, fabricMaps FabricMaps, textureScale, normalScale float32) error {
	s.mu.Lock()
	p, ok := s.parts[part]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("set fabric: %w %q", ErrUnknownPart, part)
	}
	p.FabricID = fabricID
	p.Maps = maps.Clone(fabricMaps)
	p.TextureScale = textureScale
	p.NormalScale = normalScale
	if fabricID == "" {
		p.Maps = nil
		p.TextureScale, p.NormalScale = 0, 0
	}
	s.mu.Unlock()

	s.notify(Event{Kind: EventPartAppearance, Part: part})
	return nil
}
