package ui2d

const (
	titleBarH   = 24
	padding     = 8
	spacing     = 4
	buttonH     = 26
	selectableH = 22
)

// Context lays out immediate-mode widgets on a Canvas and routes pointer
// input to them.
type Context struct {
	canvas Canvas
	input  *InputState

	activeWidget string
	windows      map[string]*WindowState
	order        []*WindowState

	current *WindowState
	cursorX float32
	cursorY float32
	rowH    float32

	wantsMouse bool
}

// WindowState holds state for a HUD panel.
type WindowState struct {
	ID     string
	X, Y   float32
	W, H   float32
	Moving bool

	// contentH is the height measured on the previous frame.
	contentH float32
}

// Rect is an axis-aligned screen rectangle.
type Rect struct {
	X, Y, W, H float32
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y float32) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// NewContext creates a context drawing on canvas.
func NewContext(canvas Canvas) *Context {
	return &Context{
		canvas:  canvas,
		input:   &InputState{},
		windows: make(map[string]*WindowState),
	}
}

// Input returns the input state for modification.
func (c *Context) Input() *InputState {
	return c.input
}

// WantsMouse reports whether a panel was under the pointer or being dragged
// at the end of the last frame.
func (c *Context) WantsMouse() bool {
	return c.wantsMouse
}

// Over reports whether (x, y) lies on a panel drawn last frame.
func (c *Context) Over(x, y float32) bool {
	for _, ws := range c.order {
		if ws.Moving || ws.rect().Contains(x, y) {
			return true
		}
	}
	return false
}

// Begin starts a new frame.
func (c *Context) Begin() {
	c.input.Update()
	c.order = c.order[:0]
}

// End finishes the frame.
func (c *Context) End() {
	c.wantsMouse = c.Over(c.input.MouseX, c.input.MouseY)
	if c.input.MouseLeftReleased {
		c.activeWidget = ""
	}
}

func (ws *WindowState) rect() Rect {
	return Rect{ws.X, ws.Y, ws.W, ws.H}
}

// BeginWindow starts a panel at x, y. A zero h sizes the panel to the
// content drawn on the previous frame. Panels can be dragged by the title.
func (c *Context) BeginWindow(id string, x, y, w, h float32, title string) {
	ws, ok := c.windows[id]
	if !ok {
		ws = &WindowState{ID: id, X: x, Y: y}
		c.windows[id] = ws
	}
	ws.W = w
	ws.H = h
	if h == 0 {
		ws.H = max(ws.contentH, titleBarH+padding)
	}
	c.order = append(c.order, ws)
	c.current = ws

	bar := Rect{ws.X, ws.Y, ws.W, titleBarH}
	if bar.Contains(c.input.MouseX, c.input.MouseY) && c.input.takePress() {
		ws.Moving = true
	}
	if ws.Moving {
		if c.input.MouseLeftDown {
			ws.X += c.input.MouseDeltaX
			ws.Y += c.input.MouseDeltaY
		} else {
			ws.Moving = false
		}
	}
	c.canvas.DrawRect(ws.X, ws.Y, ws.W, ws.H, ColorPanelBg)
	c.canvas.DrawRectOutline(ws.X, ws.Y, ws.W, ws.H, 1, ColorPanelBorder)
	c.canvas.DrawRect(ws.X+1, ws.Y+1, ws.W-2, titleBarH-1, ColorTitleBg)
	_, th := c.canvas.MeasureText(title)
	c.canvas.DrawText(ws.X+padding, ws.Y+(titleBarH-th)/2, title, ColorText)

	c.cursorX = ws.X + padding
	c.cursorY = ws.Y + titleBarH + padding
	c.rowH = 0
}

// EndWindow ends the current panel and records its content height. A press
// on the panel body that no widget took is swallowed.
func (c *Context) EndWindow() {
	if c.current == nil {
		return
	}
	if c.current.rect().Contains(c.input.MouseX, c.input.MouseY) {
		c.input.takePress()
	}
	c.current.contentH = c.cursorY + c.rowH + padding - c.current.Y
	c.current = nil
}

// Row moves the cursor to a new line.
func (c *Context) Row() {
	if c.current == nil {
		return
	}
	c.cursorX = c.current.X + padding
	if c.rowH > 0 {
		c.cursorY += c.rowH + spacing
	}
	c.rowH = 0
}

// place reserves a w x h cell at the cursor.
func (c *Context) place(w, h float32) Rect {
	r := Rect{c.cursorX, c.cursorY, w, h}
	c.cursorX += w + spacing
	c.rowH = max(c.rowH, h)
	return r
}

// fullWidth is the width left on the current row.
func (c *Context) fullWidth() float32 {
	return c.current.X + c.current.W - padding - c.cursorX
}

// clicked handles press tracking for a widget rectangle.
func (c *Context) clicked(id string, r Rect) (hovered, clicked bool) {
	hovered = r.Contains(c.input.MouseX, c.input.MouseY)
	if hovered && c.input.takePress() {
		c.activeWidget = id
		clicked = true
	}
	return hovered, clicked
}

// Label draws text.
func (c *Context) Label(text string) {
	c.LabelColored(text, ColorText)
}

// LabelColored draws text in a given color.
func (c *Context) LabelColored(text string, color Color) {
	if c.current == nil {
		return
	}
	w, h := c.canvas.MeasureText(text)
	r := c.place(w, h)
	c.canvas.DrawText(r.X, r.Y, text, color)
}

// Button draws a button and reports a click. A zero width fills the row.
func (c *Context) Button(id string, width float32, label string) bool {
	return c.button(id, width, label, false)
}

// Toggle is a button drawn in the accent color while on.
func (c *Context) Toggle(id string, width float32, label string, on bool) bool {
	return c.button(id, width, label, on)
}

func (c *Context) button(id string, width float32, label string, on bool) bool {
	if c.current == nil {
		return false
	}
	if width == 0 {
		width = c.fullWidth()
	}
	fullID := c.current.ID + "/" + id
	r := c.place(width, buttonH)
	hovered, clicked := c.clicked(fullID, r)

	bg, fg := ColorButtonNormal, ColorText
	switch {
	case on || c.activeWidget == fullID:
		bg, fg = ColorButtonActive, ColorTextOnAccent
	case hovered:
		bg = ColorButtonHover
	}
	c.canvas.DrawRect(r.X, r.Y, r.W, r.H, bg)
	c.canvas.DrawRectOutline(r.X, r.Y, r.W, r.H, 1, ColorPanelBorder)
	tw, th := c.canvas.MeasureText(label)
	c.canvas.DrawText(r.X+(r.W-tw)/2, r.Y+(r.H-th)/2, label, fg)
	return clicked
}

// Selectable draws a full-width list row and reports a click.
func (c *Context) Selectable(id, label string, selected bool) bool {
	if c.current == nil {
		return false
	}
	c.Row()
	r := c.place(c.fullWidth(), selectableH)
	hovered, clicked := c.clicked(c.current.ID+"/"+id, r)

	fg := ColorText
	switch {
	case selected:
		c.canvas.DrawRect(r.X, r.Y, r.W, r.H, ColorHighlight)
		fg = ColorTextOnAccent
	case hovered:
		c.canvas.DrawRect(r.X, r.Y, r.W, r.H, ColorButtonHover)
	}
	_, th := c.canvas.MeasureText(label)
	c.canvas.DrawText(r.X+spacing, r.Y+(r.H-th)/2, label, fg)
	return clicked
}

// Swatch draws a square color chip and reports a click.
func (c *Context) Swatch(id string, size float32, color Color, selected bool) bool {
	if c.current == nil {
		return false
	}
	if c.cursorX+size > c.current.X+c.current.W-padding {
		c.Row()
	}
	r := c.place(size, size)
	_, clicked := c.clicked(c.current.ID+"/"+id, r)

	c.canvas.DrawRect(r.X, r.Y, r.W, r.H, color)
	border := ColorPanelBorder
	thickness := float32(1)
	if selected {
		border, thickness = ColorHighlight, 2
	}
	c.canvas.DrawRectOutline(r.X, r.Y, r.W, r.H, thickness, border)
	return clicked
}

// Spacer adds vertical space.
func (c *Context) Spacer(height float32) {
	if c.current == nil {
		return
	}
	c.Row()
	c.cursorY += height
}

// Separator draws a horizontal rule across the panel.
func (c *Context) Separator() {
	if c.current == nil {
		return
	}
	c.Row()
	c.canvas.DrawRect(c.current.X+padding, c.cursorY, c.current.W-2*padding, 1, ColorPanelBorder)
	c.cursorY += 1 + spacing
}
