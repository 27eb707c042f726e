package viewer

import (
	"github.com/Faultbox/decalforge/internal/catalog"
	"github.com/Faultbox/decalforge/internal/customizer/placement"
	"github.com/Faultbox/decalforge/internal/customizer/store"
	"github.com/Faultbox/decalforge/internal/engine/ui2d"
)

const (
	panelWidth  = 228
	panelMargin = 16
	swatchSize  = 26
	maxSwatches = 24
)

// hudState is the session snapshot the HUD draws.
type hudState struct {
	ScreenWidth float32
	Placement   placement.State
	Transform   store.TransformMode
	Editing     bool
	Parts       []string
	Selected    string
	FabricID    string
	Fabrics     []catalog.Fabric
	Status      string
}

// hudResult is what the user asked for this frame.
type hudResult struct {
	Action     Action
	SelectPart string
	// Fabric is set when a swatch or "None" was clicked; "" removes it.
	Fabric    string
	SetFabric bool
}

func placementLabel(s placement.State) string {
	switch s {
	case placement.Placing:
		return "Click the product to place text"
	case placement.Editing:
		return "Click to move, drag handles to adjust"
	default:
		return "Click a decal to edit it"
	}
}

// drawHUD lays out the tool and part panels.
func drawHUD(ctx *ui2d.Context, s hudState) hudResult {
	var res hudResult
	act := func(a Action) {
		if res.Action == ActionNone {
			res.Action = a
		}
	}

	ctx.BeginWindow("decals", panelMargin, panelMargin, panelWidth, 0, "Decals")
	ctx.LabelColored(placementLabel(s.Placement), ui2d.ColorTextDim)
	ctx.Row()
	if ctx.Toggle("place", 0, "Place text (P)", s.Placement == placement.Placing) {
		act(ActionTogglePlacement)
	}
	ctx.Row()
	if ctx.Button("image", 0, "Add image (I)") {
		act(ActionAddImage)
	}
	if s.Editing {
		ctx.Separator()
		third := float32(panelWidth-16-8) / 3
		if ctx.Toggle("move", third, "Move", s.Transform == store.ModeTranslate) {
			act(ActionTranslate)
		}
		if ctx.Toggle("rotate", third, "Rotate", s.Transform == store.ModeRotate) {
			act(ActionRotate)
		}
		if ctx.Toggle("scale", third, "Scale", s.Transform == store.ModeScale) {
			act(ActionScale)
		}
		ctx.Row()
		half := float32(panelWidth-16-4) / 2
		if ctx.Button("delete", half, "Delete") {
			act(ActionDelete)
		}
		if ctx.Button("done", half, "Done (Esc)") {
			act(ActionFinish)
		}
	}
	ctx.Separator()
	if ctx.Button("capture", 0, "Save image (F12)") {
		act(ActionCapture)
	}
	if s.Status != "" {
		ctx.Row()
		ctx.LabelColored(s.Status, ui2d.ColorTextDim)
	}
	ctx.EndWindow()

	ctx.BeginWindow("parts", s.ScreenWidth-panelWidth-panelMargin, panelMargin, panelWidth, 0, "Parts")
	for _, name := range s.Parts {
		if ctx.Selectable(name, name, name == s.Selected) {
			res.SelectPart = name
		}
	}
	if len(s.Fabrics) > 0 {
		ctx.Separator()
		ctx.Label("Fabric")
		ctx.Row()
		for i, f := range s.Fabrics {
			if i == maxSwatches {
				break
			}
			if ctx.Swatch(f.ID, swatchSize, ui2d.FromHex(f.Hex, ui2d.ColorButtonNormal), f.ID == s.FabricID) {
				res.Fabric, res.SetFabric = f.ID, true
			}
		}
		ctx.Row()
		if s.FabricID != "" && ctx.Button("nofabric", 0, "No fabric") {
			res.Fabric, res.SetFabric = "", true
		}
	}
	ctx.EndWindow()
	return res
}
