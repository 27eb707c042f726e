package store

import (
	"slices"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

var copyWith = copier.CopyWithOption

func (s *Store) deepCopy(to, from any, what string) {
	if err := copyWith(to, from, copier.Option{DeepCopy: true}); err != nil {
		s.log.Debug("deep copy failed", zap.String("what", what), zap.Error(err))
	}
}

func (s *Store) cloneDecal(d Decal) Decal {
	var out Decal
	s.deepCopy(&out, &d, "decal "+d.ID)
	return out
}

// clonePart copies p; a part without a fabric keeps nil Maps.
func (s *Store) clonePart(p *Part) Part {
	var out Part
	s.deepCopy(&out, p, "part "+p.Name)
	if p.Maps == nil {
		out.Maps = nil
	}
	if out.Decals == nil {
		out.Decals = []Decal{}
	}
	return out
}

// ProductID returns the configured product id.
func (s *Store) ProductID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productID
}

// ModelURL returns the configured product model location.
func (s *Store) ModelURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelURL
}

// PartNames returns the part names in registration order.
func (s *Store) PartNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// HasPart reports whether name is a registered part.
func (s *Store) HasPart(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.parts[name]
	return ok
}

// Part returns a copy of the named part.
func (s *Store) Part(name string) (Part, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[name]
	if !ok {
		return Part{}, false
	}
	return s.clonePart(p), true
}

// Parts returns copies of every part in registration order.
func (s *Store) Parts() []Part {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Part, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.clonePart(s.parts[name]))
	}
	return out
}

// Decals returns copies of the decals on a part.
func (s *Store) Decals(part string) []Decal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[part]
	if !ok {
		return nil
	}
	out := make([]Decal, 0, len(p.Decals))
	for _, d := range p.Decals {
		out = append(out, s.cloneDecal(d))
	}
	return out
}

// AllDecals returns every decal paired with its part, in part then insertion order.
func (s *Store) AllDecals() []PartDecal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PartDecal
	for _, name := range s.order {
		for _, d := range s.parts[name].Decals {
			out = append(out, PartDecal{Part: name, Decal: s.cloneDecal(d)})
		}
	}
	return out
}

// FindDecal locates a decal by id anywhere in the product.
func (s *Store) FindDecal(id string) (PartDecal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part, i := s.findLocked(id)
	if i < 0 {
		return PartDecal{}, false
	}
	return PartDecal{Part: part, Decal: s.cloneDecal(s.parts[part].Decals[i])}, true
}

// EditTarget returns the current editing session, if any.
func (s *Store) EditTarget() (EditingSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.editing == nil {
		return EditingSession{}, false
	}
	return *s.editing, true
}

// PlacementMode reports whether the next surface click places a decal.
func (s *Store) PlacementMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placing
}

// SelectedPart returns the part the UI is customizing.
func (s *Store) SelectedPart() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// TransformMode returns the gadget mode.
func (s *Store) TransformMode() TransformMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// State returns a detached copy of the whole store.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		ProductID:     s.productID,
		ModelURL:      s.modelURL,
		Parts:         make([]Part, 0, len(s.order)),
		SelectedPart:  s.selected,
		PlacementMode: s.placing,
		TransformMode: s.mode,
	}
	for _, name := range s.order {
		st.Parts = append(st.Parts, s.clonePart(s.parts[name]))
	}
	if s.editing != nil {
		e := *s.editing
		st.Editing = &e
	}
	return st
}
