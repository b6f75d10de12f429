package ui

import (
	"bytes"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"EmojiArt/internal/document"
	"EmojiArt/internal/geometry"
)

var (
	paperColor     = color.NRGBA{R: 245, G: 246, B: 248, A: 255}
	selectionColor = color.NRGBA{R: 30, G: 120, B: 255, A: 255}
	statusColor    = color.NRGBA{R: 120, G: 120, B: 120, A: 255}
)

type canvasRenderer struct {
	c       *CompositionCanvas
	paper   *canvas.Rectangle
	bg      *canvas.Image
	bgKey   string
	status  *canvas.Text
	objects []fyne.CanvasObject
}

func newCanvasRenderer(c *CompositionCanvas) *canvasRenderer {
	r := &canvasRenderer{
		c:      c,
		paper:  canvas.NewRectangle(paperColor),
		status: canvas.NewText("", statusColor),
	}
	r.status.TextSize = 12
	r.Refresh()
	return r
}

func (r *canvasRenderer) Objects() []fyne.CanvasObject { return r.objects }

func (r *canvasRenderer) Destroy() {}

func (r *canvasRenderer) MinSize() fyne.Size { return fyne.NewSize(300, 300) }

func (r *canvasRenderer) Layout(size fyne.Size) {
	r.paper.Resize(size)
	r.rebuild(size)
}

func (r *canvasRenderer) Refresh() {
	r.rebuild(r.c.Size())
	canvas.Refresh(r.c)
}

// rebuild lays out every object for the current snapshot. Live move and
// resize values are applied to selected emojis only.
func (r *canvasRenderer) rebuild(size fyne.Size) {
	snap := r.c.engine.Snapshot()
	center := geometry.ViewportCenter(size)
	objects := []fyne.CanvasObject{r.paper}

	switch snap.Background.Status {
	case document.Loaded:
		if img := r.background(snap.Background); img != nil {
			w := snap.Background.Size.Width * snap.ZoomScale
			h := snap.Background.Size.Height * snap.ZoomScale
			at := geometry.CompositionToScreen(fyne.NewPos(-snap.Background.Size.Width/2, -snap.Background.Size.Height/2),
				center, snap.PanOffset, snap.ZoomScale)
			img.Move(at)
			img.Resize(fyne.NewSize(w, h))
			objects = append(objects, img)
		}
	case document.Fetching:
		r.setStatus("Loading background…")
		objects = append(objects, r.status)
	case document.Failed:
		r.setStatus("Background unavailable")
		objects = append(objects, r.status)
	}

	for _, e := range snap.Emojis {
		selected := snap.Selected(e.ID)
		pos := fyne.NewPos(float32(e.X), float32(e.Y))
		at := geometry.CompositionToScreen(pos, center, snap.PanOffset, snap.ZoomScale)
		side := float32(e.Size) * snap.ZoomScale
		if selected {
			at = at.Add(snap.MoveOffset)
			side *= snap.ResizeScale
		}

		t := canvas.NewText(e.Text, color.Black)
		t.TextSize = side
		t.Alignment = fyne.TextAlignCenter
		box := fyne.NewSize(side, side)
		topLeft := at.Subtract(fyne.NewPos(side/2, side/2))
		t.Move(topLeft)
		t.Resize(box)
		objects = append(objects, t)

		if selected {
			outline := canvas.NewRectangle(color.Transparent)
			outline.StrokeColor = selectionColor
			outline.StrokeWidth = 2
			outline.Move(topLeft)
			outline.Resize(box)
			objects = append(objects, outline)
		}
	}
	r.objects = objects
}

// background returns the image object for bg, decoding only when the
// image changed.
func (r *canvasRenderer) background(bg document.Background) *canvas.Image {
	if r.bg != nil && r.bgKey == bg.Locator {
		return r.bg
	}
	img := canvas.NewImageFromReader(bytes.NewReader(bg.Data), bg.Locator)
	if img == nil {
		return nil
	}
	img.FillMode = canvas.ImageFillStretch
	r.bg, r.bgKey = img, bg.Locator
	return img
}

func (r *canvasRenderer) setStatus(text string) {
	r.status.Text = text
	r.status.Move(fyne.NewPos(8, 8))
}
