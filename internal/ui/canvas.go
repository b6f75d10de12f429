package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"EmojiArt/internal/document"
	"EmojiArt/internal/geometry"
)

const wheelZoomStep = 1.1

// dragMode is what an in-progress drag is doing.
type dragMode int

const (
	dragNone dragMode = iota
	dragPan
	dragMove
)

// CompositionCanvas draws one document and turns pointer input into engine
// intents. It holds no document state of its own beyond the drag in
// progress.
type CompositionCanvas struct {
	widget.BaseWidget
	engine    *document.Engine
	emojiSize float32
	readOnly  bool

	drag      dragMode
	dragTotal fyne.Delta

	unsubscribe func()
}

var _ fyne.Widget = (*CompositionCanvas)(nil)
var _ fyne.Draggable = (*CompositionCanvas)(nil)
var _ fyne.Tappable = (*CompositionCanvas)(nil)
var _ fyne.DoubleTappable = (*CompositionCanvas)(nil)
var _ fyne.Scrollable = (*CompositionCanvas)(nil)
var _ fyne.Focusable = (*CompositionCanvas)(nil)
var _ desktop.Mouseable = (*CompositionCanvas)(nil)

// NewCompositionCanvas binds a canvas to e. readOnly canvases pan and zoom
// but never edit, as used by share viewers.
func NewCompositionCanvas(e *document.Engine, emojiSize float32, readOnly bool) *CompositionCanvas {
	c := &CompositionCanvas{engine: e, emojiSize: emojiSize, readOnly: readOnly}
	c.ExtendBaseWidget(c)
	c.unsubscribe = e.Subscribe(func(document.Event) {
		fyne.Do(c.Refresh)
	})
	return c
}

// Detach stops following the engine. The canvas must not be used after.
func (c *CompositionCanvas) Detach() {
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// Engine returns the document being shown.
func (c *CompositionCanvas) Engine() *document.Engine { return c.engine }

// DropAt adds text where a palette drag ended. abs is in window
// coordinates; drops outside the canvas are ignored.
func (c *CompositionCanvas) DropAt(text string, abs fyne.Position) bool {
	if c.readOnly {
		return false
	}
	origin := fyne.CurrentApp().Driver().AbsolutePositionForObject(c)
	rel := abs.Subtract(origin)
	size := c.Size()
	if rel.X < 0 || rel.Y < 0 || rel.X > size.Width || rel.Y > size.Height {
		return false
	}
	_, ok := c.engine.DropEmoji(text, rel, size, c.emojiSize)
	return ok
}

// AddAtCenter adds text in the middle of the visible area.
func (c *CompositionCanvas) AddAtCenter(text string) bool {
	if c.readOnly {
		return false
	}
	center := geometry.ViewportCenter(c.Size())
	_, ok := c.engine.DropEmoji(text, center, c.Size(), c.emojiSize)
	return ok
}

// ZoomToFit fits the background into the canvas.
func (c *CompositionCanvas) ZoomToFit() bool {
	return c.engine.ZoomToFit(c.Size())
}

func (c *CompositionCanvas) Tapped(ev *fyne.PointEvent) {
	if c.readOnly {
		return
	}
	if win := fyne.CurrentApp().Driver().CanvasForObject(c); win != nil {
		win.Focus(c)
	}
	if id, ok := hitTest(c.engine.Snapshot(), c.Size(), ev.Position); ok {
		c.engine.ToggleSelection(id)
		return
	}
	c.engine.ClearSelection()
}

func (c *CompositionCanvas) DoubleTapped(*fyne.PointEvent) {
	c.ZoomToFit()
}

func (c *CompositionCanvas) Dragged(ev *fyne.DragEvent) {
	if c.drag == dragNone {
		c.drag = dragPan
		snap := c.engine.Snapshot()
		start := ev.Position.Subtract(ev.Dragged)
		if id, ok := hitTest(snap, c.Size(), start); ok && snap.Selected(id) && !c.readOnly {
			c.drag = dragMove
		}
	}
	c.dragTotal = geometry.Compose(c.dragTotal, ev.Dragged)
	if c.drag == dragMove {
		c.engine.UpdateMove(c.dragTotal)
		return
	}
	c.engine.UpdatePan(c.dragTotal)
}

func (c *CompositionCanvas) DragEnd() {
	total := c.dragTotal
	switch c.drag {
	case dragMove:
		c.engine.EndMove(total)
	case dragPan:
		c.engine.EndPan(total)
	}
	c.drag = dragNone
	c.dragTotal = fyne.Delta{}
}

// Scrolled zooms the canvas, or resizes the selection when one exists.
func (c *CompositionCanvas) Scrolled(ev *fyne.ScrollEvent) {
	factor := wheelFactor(ev.Scrolled.DY)
	if factor == 1 {
		return
	}
	if !c.readOnly && len(c.engine.Selection()) > 0 {
		c.engine.EndResize(factor)
		return
	}
	c.engine.ZoomBy(factor)
}

func (c *CompositionCanvas) FocusGained()   {}
func (c *CompositionCanvas) FocusLost()     {}
func (c *CompositionCanvas) TypedRune(rune) {}

// TypedKey deletes the selection on Delete or Backspace.
func (c *CompositionCanvas) TypedKey(ev *fyne.KeyEvent) {
	if c.readOnly {
		return
	}
	switch ev.Name {
	case fyne.KeyDelete, fyne.KeyBackspace:
		for _, id := range c.engine.Selection() {
			c.engine.RemoveEmoji(id)
		}
	case fyne.KeyEscape:
		c.engine.ClearSelection()
	}
}

func (c *CompositionCanvas) MouseDown(*desktop.MouseEvent) {}
func (c *CompositionCanvas) MouseUp(*desktop.MouseEvent)   {}

func (c *CompositionCanvas) CreateRenderer() fyne.WidgetRenderer {
	return newCanvasRenderer(c)
}

// wheelFactor maps a vertical scroll delta to a zoom factor: one notch up
// zooms in by wheelZoomStep.
func wheelFactor(dy float32) float32 {
	switch {
	case dy > 0:
		return wheelZoomStep
	case dy < 0:
		return 1 / wheelZoomStep
	default:
		return 1
	}
}

// hitTest returns the topmost emoji under screen position p.
func hitTest(snap document.Snapshot, viewport fyne.Size, p fyne.Position) (int, bool) {
	center := geometry.ViewportCenter(viewport)
	for i := len(snap.Emojis) - 1; i >= 0; i-- {
		e := snap.Emojis[i]
		at := geometry.CompositionToScreen(fyne.NewPos(float32(e.X), float32(e.Y)), center, snap.PanOffset, snap.ZoomScale)
		half := float32(e.Size) * snap.ZoomScale / 2
		if p.X >= at.X-half && p.X <= at.X+half && p.Y >= at.Y-half && p.Y <= at.Y+half {
			return e.ID, true
		}
	}
	return 0, false
}
