// Package geometry holds the transform arithmetic shared by the document
// engine and the canvas: composing steady and live gesture values, and
// converting between screen space and composition space.
//
// Composition space has its origin at the center of the viewport. The
// forward transform used by the canvas is
//
//	screen = composition*zoom + center + pan
//
// where pan is the screen-space pan offset.
package geometry

import "fyne.io/fyne/v2"

// Compose adds a live gesture delta to a steady value.
func Compose(steady, live fyne.Delta) fyne.Delta {
	return fyne.Delta{DX: steady.DX + live.DX, DY: steady.DY + live.DY}
}

// ScaleOffset multiplies both components of o by factor.
func ScaleOffset(o fyne.Delta, factor float32) fyne.Delta {
	return fyne.Delta{DX: o.DX * factor, DY: o.DY * factor}
}

// ZoomToFit returns the largest scale at which image fits inside viewport.
// ok is false when any dimension is not positive; the caller must then leave
// its zoom unchanged.
func ZoomToFit(image, viewport fyne.Size) (scale float32, ok bool) {
	if image.Width <= 0 || image.Height <= 0 || viewport.Width <= 0 || viewport.Height <= 0 {
		return 0, false
	}
	h := viewport.Width / image.Width
	v := viewport.Height / image.Height
	return min(h, v), true
}

// ViewportCenter returns the screen position of the composition origin
// before panning.
func ViewportCenter(viewport fyne.Size) fyne.Position {
	return fyne.NewPos(viewport.Width/2, viewport.Height/2)
}

// ScreenToComposition maps a screen point to composition coordinates. It is
// the inverse of CompositionToScreen for any zoom > 0.
func ScreenToComposition(p, center fyne.Position, pan fyne.Delta, zoom float32) fyne.Position {
	x := p.X - center.X - pan.DX
	y := p.Y - center.Y - pan.DY
	return fyne.NewPos(x/zoom, y/zoom)
}

// CompositionToScreen maps a composition point to screen coordinates.
func CompositionToScreen(p, center fyne.Position, pan fyne.Delta, zoom float32) fyne.Position {
	return fyne.NewPos(p.X*zoom+center.X+pan.DX, p.Y*zoom+center.Y+pan.DY)
}
