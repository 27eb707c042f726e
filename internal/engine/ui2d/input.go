package ui2d

// InputState holds the pointer state the HUD reacts to.
type InputState struct {
	MouseX      float32
	MouseY      float32
	MouseDeltaX float32
	MouseDeltaY float32

	MouseLeftDown     bool
	MouseLeftPressed  bool
	MouseLeftReleased bool

	// consumed is set once a widget takes this frame's press.
	consumed bool

	prevMouseLeft bool
	prevMouseX    float32
	prevMouseY    float32
}

// Update derives deltas and press/release edges. Call once per frame after
// setting the raw values.
func (i *InputState) Update() {
	i.MouseDeltaX = i.MouseX - i.prevMouseX
	i.MouseDeltaY = i.MouseY - i.prevMouseY

	i.MouseLeftPressed = i.MouseLeftDown && !i.prevMouseLeft
	i.MouseLeftReleased = !i.MouseLeftDown && i.prevMouseLeft
	i.consumed = false

	i.prevMouseLeft = i.MouseLeftDown
	i.prevMouseX = i.MouseX
	i.prevMouseY = i.MouseY
}

// takePress reports whether this frame's press is still available and
// claims it.
func (i *InputState) takePress() bool {
	if !i.MouseLeftPressed || i.consumed {
		return false
	}
	i.consumed = true
	return true
}
