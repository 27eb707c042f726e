// Package store holds the product customization state: parts, their
// appearance, the decals placed on them and the editing session.
package store

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrUnknownPart  = errors.New("unknown part")
	ErrUnknownDecal = errors.New("unknown decal")
	ErrDuplicateID  = errors.New("duplicate decal id")
	ErrInvalidColor = errors.New("invalid colour")
	ErrInvalidMode  = errors.New("invalid transform mode")
)

// DecalKind distinguishes text decals from image decals.
type DecalKind string

const (
	KindText  DecalKind = "text"
	KindImage DecalKind = "image"
)

// Stroke is an optional outline drawn around text glyphs.
type Stroke struct {
	Width float64 `json:"width"`
	Color string  `json:"color"`
}

// Decal is a piece of text or an image projected onto a part.
// Position, Rotation (Euler XYZ, radians) and Scale are expressed in the
// local frame of the target drawable.
type Decal struct {
	ID         string    `json:"id"`
	Kind       DecalKind `json:"type"`
	Content    string    `json:"content,omitempty"`
	FontFamily string    `json:"fontFamily,omitempty"`
	FontSize   float64   `json:"fontSize,omitempty"`
	Color      string    `json:"color,omitempty"`
	Stroke     *Stroke   `json:"stroke,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`

	Position mgl32.Vec3 `json:"position"`
	Rotation mgl32.Vec3 `json:"rotation"`
	Scale    mgl32.Vec3 `json:"scale"`

	TargetMesh   string `json:"targetMesh"`
	TargetMeshID string `json:"targetMeshId,omitempty"`
}

// Patch is a partial decal update. Nil fields are left untouched.
type Patch struct {
	Content     *string     `json:"content,omitempty"`
	FontFamily  *string     `json:"fontFamily,omitempty"`
	FontSize    *float64    `json:"fontSize,omitempty" binding:"omitempty,gt=0"`
	Color       *string     `json:"color,omitempty"`
	Stroke      *Stroke     `json:"stroke,omitempty"`
	ClearStroke bool        `json:"clearStroke,omitempty"`
	ImageURL    *string     `json:"imageUrl,omitempty"`
	Position    *mgl32.Vec3 `json:"position,omitempty"`
	Rotation    *mgl32.Vec3 `json:"rotation,omitempty"`
	Scale       *mgl32.Vec3 `json:"scale,omitempty"`

	TargetMesh   *string `json:"targetMesh,omitempty"`
	TargetMeshID *string `json:"targetMeshId,omitempty"`
}

// FabricMaps maps a PBR slot (map, normalMap, roughnessMap, ...) to a texture URL.
type FabricMaps map[string]string

// Part is one customizable region of the product.
type Part struct {
	Name     string     `json:"name"`
	Color    string     `json:"color"`
	FabricID string     `json:"fabricId,omitempty"`
	Maps     FabricMaps `json:"maps,omitempty"`
	// NormalScale and TextureScale are the tiling parameters of the fabric.
	TextureScale float32 `json:"textureScale,omitempty"`
	NormalScale  float32 `json:"normalScale,omitempty"`
	Decals       []Decal `json:"decals"`
}

// EditingSession names the decal currently being edited.
type EditingSession struct {
	Part    string `json:"part"`
	DecalID string `json:"decalId"`
}

// TransformMode selects what the transform gadget manipulates.
type TransformMode string

const (
	ModeTranslate TransformMode = "translate"
	ModeRotate    TransformMode = "rotate"
	ModeScale     TransformMode = "scale"
)

// Valid reports whether m is one of the known modes.
func (m TransformMode) Valid() bool {
	switch m {
	case ModeTranslate, ModeRotate, ModeScale:
		return true
	}
	return false
}

// PartDecal pairs a decal with the part that owns it.
type PartDecal struct {
	Part  string `json:"part"`
	Decal Decal  `json:"decal"`
}

// State is a detached copy of the whole store.
type State struct {
	ProductID     string          `json:"productId"`
	ModelURL      string          `json:"modelUrl"`
	Parts         []Part          `json:"parts"`
	SelectedPart  string          `json:"selectedPart"`
	Editing       *EditingSession `json:"editing"`
	PlacementMode bool            `json:"placementMode"`
	TransformMode TransformMode   `json:"transformMode"`
}

// EventKind classifies change notifications.
type EventKind int

const (
	EventDecalCreated EventKind = iota
	EventDecalUpdated
	EventDecalMoved
	EventDecalDeleted
	EventEditTarget
	EventPlacementMode
	EventTransformMode
	EventPartSelected
	EventPartAppearance
)

func (k EventKind) String() string {
	switch k {
	case EventDecalCreated:
		return "decal_created"
	case EventDecalUpdated:
		return "decal_updated"
	case EventDecalMoved:
		return "decal_moved"
	case EventDecalDeleted:
		return "decal_deleted"
	case EventEditTarget:
		return "edit_target"
	case EventPlacementMode:
		return "placement_mode"
	case EventTransformMode:
		return "transform_mode"
	case EventPartSelected:
		return "part_selected"
	case EventPartAppearance:
		return "part_appearance"
	default:
		return "unknown"
	}
}

// Event describes a state change.
type Event struct {
	Kind    EventKind
	Part    string
	DecalID string
}
