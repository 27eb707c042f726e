package viewer

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/Faultbox/decalforge/internal/engine/input"
)

// Action is a viewer command triggered from the keyboard or the HUD.
type Action int

const (
	ActionNone Action = iota
	ActionTogglePlacement
	ActionTranslate
	ActionRotate
	ActionScale
	ActionDelete
	ActionFinish
	ActionAddImage
	ActionCapture
	ActionReload
	ActionQuit
)

var actionNames = [...]string{
	ActionNone:            "none",
	ActionTogglePlacement: "toggle-placement",
	ActionTranslate:       "translate",
	ActionRotate:          "rotate",
	ActionScale:           "scale",
	ActionDelete:          "delete",
	ActionFinish:          "finish",
	ActionAddImage:        "add-image",
	ActionCapture:         "capture",
	ActionReload:          "reload",
	ActionQuit:            "quit",
}

func (a Action) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

var keyActions = map[sdl.Scancode]Action{
	sdl.SCANCODE_P:         ActionTogglePlacement,
	sdl.SCANCODE_T:         ActionTranslate,
	sdl.SCANCODE_R:         ActionRotate,
	sdl.SCANCODE_S:         ActionScale,
	sdl.SCANCODE_DELETE:    ActionDelete,
	sdl.SCANCODE_BACKSPACE: ActionDelete,
	sdl.SCANCODE_ESCAPE:    ActionFinish,
	sdl.SCANCODE_I:         ActionAddImage,
	sdl.SCANCODE_F12:       ActionCapture,
	sdl.SCANCODE_F5:        ActionReload,
}

// Bind maps a key press to its action. Auto-repeat presses and modified
// keys other than Ctrl+Q are ignored.
func Bind(ev input.Event) Action {
	if ev.Type != input.EventKeyDown || ev.Repeat {
		return ActionNone
	}
	if ev.Ctrl() {
		if ev.Key == sdl.SCANCODE_Q {
			return ActionQuit
		}
		return ActionNone
	}
	return keyActions[ev.Key]
}
