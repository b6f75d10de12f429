package ui

import (
	"io"
	"log/slog"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmojiArt/internal/document"
	"EmojiArt/internal/state"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestCanvas(t *testing.T, readOnly bool) (*CompositionCanvas, *document.Engine) {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	e := document.New("doc", nil, document.Options{Logger: quiet})
	c := NewCompositionCanvas(e, 40, readOnly)
	c.Resize(fyne.NewSize(400, 300))
	t.Cleanup(c.Detach)
	return c, e
}

func TestHitTest(t *testing.T) {
	snap := document.Snapshot{
		Emojis: []state.Emoji{
			{ID: 1, Text: "🦁", X: 0, Y: 0, Size: 40},
			{ID: 2, Text: "🐸", X: 10, Y: 0, Size: 40},
		},
		ZoomScale: 2,
		PanOffset: fyne.Delta{DX: 100},
	}
	viewport := fyne.NewSize(400, 300)

	// Emoji 2 sits at screen (200+100+20, 150) and spans 80 points.
	id, ok := hitTest(snap, viewport, fyne.NewPos(320, 150))
	require.True(t, ok)
	assert.Equal(t, 2, id, "topmost wins")

	id, ok = hitTest(snap, viewport, fyne.NewPos(262, 150))
	require.True(t, ok)
	assert.Equal(t, 1, id)

	_, ok = hitTest(snap, viewport, fyne.NewPos(10, 10))
	assert.False(t, ok)
}

func TestWheelFactor(t *testing.T) {
	assert.Equal(t, float32(wheelZoomStep), wheelFactor(3))
	assert.Equal(t, float32(1/wheelZoomStep), wheelFactor(-3))
	assert.Equal(t, float32(1), wheelFactor(0))
}

func TestTapTogglesSelection(t *testing.T) {
	c, e := newTestCanvas(t, false)
	id, _ := e.AddEmoji("🦁", fyne.Position{}, 40)

	c.Tapped(&fyne.PointEvent{Position: fyne.NewPos(200, 150)})
	assert.Equal(t, []int{id}, e.Selection())

	c.Tapped(&fyne.PointEvent{Position: fyne.NewPos(5, 5)})
	assert.Empty(t, e.Selection(), "tapping empty space deselects")
}

func TestDragSelectedEmojiMovesIt(t *testing.T) {
	c, e := newTestCanvas(t, false)
	id, _ := e.AddEmoji("🦁", fyne.Position{}, 40)
	e.Select(id)

	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(210, 150)}, Dragged: fyne.Delta{DX: 10}})
	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(230, 160)}, Dragged: fyne.Delta{DX: 20, DY: 10}})
	assert.Equal(t, fyne.Delta{DX: 30, DY: 10}, e.Snapshot().MoveOffset)
	c.DragEnd()

	em, _ := e.Composition().Emoji(id)
	assert.Equal(t, 30, em.X)
	assert.Equal(t, 10, em.Y)
	assert.Empty(t, e.Selection())
	assert.Equal(t, fyne.Delta{}, e.SteadyPan())
}

func TestDragEmptySpacePans(t *testing.T) {
	c, e := newTestCanvas(t, false)
	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(20, 20)}, Dragged: fyne.Delta{DX: 10, DY: 10}})
	c.DragEnd()
	assert.Equal(t, fyne.Delta{DX: 10, DY: 10}, e.SteadyPan())
}

func TestScrollZoomsOrResizes(t *testing.T) {
	c, e := newTestCanvas(t, false)
	c.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.Delta{DY: 5}})
	assert.InDelta(t, wheelZoomStep, e.SteadyZoom(), 1e-6)

	id, _ := e.AddEmoji("🦁", fyne.Position{}, 40)
	e.Select(id)
	c.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.Delta{DY: 5}})
	em, _ := e.Composition().Emoji(id)
	assert.Equal(t, 44, em.Size)
}

func TestDeleteKeyRemovesSelection(t *testing.T) {
	c, e := newTestCanvas(t, false)
	a, _ := e.AddEmoji("🦁", fyne.Position{}, 40)
	e.AddEmoji("🐸", fyne.NewPos(50, 50), 40)
	e.Select(a)
	c.TypedKey(&fyne.KeyEvent{Name: fyne.KeyDelete})
	assert.Equal(t, 1, e.Composition().Len())
	assert.False(t, e.Composition().Contains(a))
}

func TestReadOnlyCanvasDoesNotEdit(t *testing.T) {
	c, e := newTestCanvas(t, true)
	id, _ := e.AddEmoji("🦁", fyne.Position{}, 40)

	c.Tapped(&fyne.PointEvent{Position: fyne.NewPos(200, 150)})
	assert.Empty(t, e.Selection())
	assert.False(t, c.AddAtCenter("🐸"))

	e.Select(id)
	c.TypedKey(&fyne.KeyEvent{Name: fyne.KeyDelete})
	assert.Equal(t, 1, e.Composition().Len())

	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(210, 150)}, Dragged: fyne.Delta{DX: 10}})
	c.DragEnd()
	assert.Equal(t, fyne.Delta{DX: 10}, e.SteadyPan(), "viewers still pan")
}

func TestAddAtCenter(t *testing.T) {
	c, e := newTestCanvas(t, false)
	e.SetSteadyPan(fyne.Delta{DX: 20, DY: -10})
	require.True(t, c.AddAtCenter("🍎"))
	em := e.Composition().Emojis()[0]
	assert.Equal(t, -20, em.X)
	assert.Equal(t, 10, em.Y)
	assert.Equal(t, 40, em.Size)
}
