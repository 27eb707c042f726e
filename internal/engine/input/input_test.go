package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veandco/go-sdl2/sdl"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name  string
		in    sdl.Event
		want  Event
		found bool
	}{
		{
			name:  "quit",
			in:    &sdl.QuitEvent{Type: sdl.QUIT},
			want:  Event{Type: EventQuit},
			found: true,
		},
		{
			name:  "resize",
			in:    &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_RESIZED, Data1: 640, Data2: 480},
			want:  Event{Type: EventWindowResize, Width: 640, Height: 480},
			found: true,
		},
		{
			name: "ignored window event",
			in:   &sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_FOCUS_GAINED},
		},
		{
			name:  "key down with ctrl",
			in:    &sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_Z, Mod: sdl.KMOD_LCTRL}},
			want:  Event{Type: EventKeyDown, Key: sdl.SCANCODE_Z, Mod: sdl.KMOD_LCTRL},
			found: true,
		},
		{
			name:  "key repeat",
			in:    &sdl.KeyboardEvent{Type: sdl.KEYDOWN, Repeat: 1, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_P}},
			want:  Event{Type: EventKeyDown, Key: sdl.SCANCODE_P, Repeat: true},
			found: true,
		},
		{
			name:  "motion",
			in:    &sdl.MouseMotionEvent{Type: sdl.MOUSEMOTION, X: 10, Y: 20, XRel: 3, YRel: -2},
			want:  Event{Type: EventMouseMove, MouseX: 10, MouseY: 20, DeltaX: 3, DeltaY: -2},
			found: true,
		},
		{
			name:  "button up",
			in:    &sdl.MouseButtonEvent{Type: sdl.MOUSEBUTTONUP, Button: sdl.BUTTON_LEFT, X: 5, Y: 6},
			want:  Event{Type: EventMouseUp, Button: ButtonLeft, MouseX: 5, MouseY: 6},
			found: true,
		},
		{
			name:  "flipped wheel",
			in:    &sdl.MouseWheelEvent{Type: sdl.MOUSEWHEEL, Y: 2, Direction: sdl.MOUSEWHEEL_FLIPPED},
			want:  Event{Type: EventMouseWheel, Wheel: -2},
			found: true,
		},
		{
			name: "horizontal wheel only",
			in:   &sdl.MouseWheelEvent{Type: sdl.MOUSEWHEEL, X: 1},
		},
		{
			name:  "dropped file",
			in:    &sdl.DropEvent{Type: sdl.DROPFILE, File: "/tmp/logo.png"},
			want:  Event{Type: EventDropFile, Path: "/tmp/logo.png"},
			found: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tt.in)
			require.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateCollectsFrameEvents(t *testing.T) {
	queue := []sdl.Event{
		&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_T}},
		&sdl.WindowEvent{Type: sdl.WINDOWEVENT, Event: sdl.WINDOWEVENT_MOVED},
		&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Repeat: 1, Keysym: sdl.Keysym{Scancode: sdl.SCANCODE_R}},
	}
	in := New()
	in.poll = func() sdl.Event {
		if len(queue) == 0 {
			return nil
		}
		e := queue[0]
		queue = queue[1:]
		return e
	}

	assert.False(t, in.Update())
	assert.Len(t, in.Events(), 2)
	assert.True(t, in.IsKeyPressed(sdl.SCANCODE_T))
	assert.False(t, in.IsKeyPressed(sdl.SCANCODE_R), "repeats are not presses")

	queue = []sdl.Event{&sdl.QuitEvent{Type: sdl.QUIT}}
	assert.True(t, in.Update())
	assert.Len(t, in.Events(), 1)
}

func TestCtrl(t *testing.T) {
	assert.True(t, Event{Mod: sdl.KMOD_RCTRL}.Ctrl())
	assert.True(t, Event{Mod: sdl.KMOD_LGUI}.Ctrl())
	assert.False(t, Event{Mod: sdl.KMOD_SHIFT}.Ctrl())
}
