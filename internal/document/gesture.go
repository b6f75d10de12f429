package document

import (
	"math"

	"fyne.io/fyne/v2"

	"EmojiArt/internal/geometry"
)

// liveGestures holds in-progress gesture values. They are shown on screen
// but never saved; each End* call folds the final value into steady state
// and resets its live value.
type liveGestures struct {
	pan    fyne.Delta // composition space
	zoom   float32
	move   fyne.Delta // screen space
	resize float32
}

func idleGestures() liveGestures {
	return liveGestures{zoom: 1, resize: 1}
}

func validScale(s float32) bool {
	f := float64(s)
	return f > 0 && !math.IsInf(f, 0)
}

// validZoom reports whether z can be a zoom: positive, finite and with a
// finite inverse, since drags are divided by it.
func validZoom(z float32) bool {
	return validScale(z) && validScale(1/z)
}

// truncate converts a composition-space offset to whole units, toward zero,
// saturating at the int32 range.
func truncate(f float32) int {
	switch {
	case math.IsNaN(float64(f)):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func (e *Engine) zoomScaleLocked() float32 {
	return e.steadyZoom * e.live.zoom
}

// panOffsetLocked is the screen-space pan offset: the steady offset plus
// the live drag, both kept in composition space, times the current zoom.
func (e *Engine) panOffsetLocked() fyne.Delta {
	return geometry.ScaleOffset(geometry.Compose(e.steadyPan, e.live.pan), e.zoomScaleLocked())
}

// ZoomScale returns the effective zoom including any live pinch.
func (e *Engine) ZoomScale() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.zoomScaleLocked()
}

// PanOffset returns the effective screen-space pan offset.
func (e *Engine) PanOffset() fyne.Delta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.panOffsetLocked()
}

// SteadyPan returns the committed pan offset in composition space.
func (e *Engine) SteadyPan() fyne.Delta {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steadyPan
}

// SteadyZoom returns the committed zoom.
func (e *Engine) SteadyZoom() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steadyZoom
}

// SetSteadyPan replaces the committed pan offset.
func (e *Engine) SetSteadyPan(pan fyne.Delta) {
	e.commit(func() ([]Event, bool) {
		e.steadyPan = pan
		return []Event{e.event(ViewChanged)}, false
	})
}

// SetSteadyZoom replaces the committed zoom. Values that are not positive
// or whose inverse overflows are ignored.
func (e *Engine) SetSteadyZoom(zoom float32) {
	if !validZoom(zoom) {
		return
	}
	e.commit(func() ([]Event, bool) {
		e.steadyZoom = zoom
		return []Event{e.event(ViewChanged)}, false
	})
}

// UpdatePan records the translation of a drag in progress.
func (e *Engine) UpdatePan(translation fyne.Delta) {
	e.commit(func() ([]Event, bool) {
		e.live.pan = geometry.ScaleOffset(translation, 1/e.zoomScaleLocked())
		return []Event{e.event(ViewChanged)}, false
	})
}

// EndPan commits a finished drag of the whole canvas.
func (e *Engine) EndPan(translation fyne.Delta) {
	e.commit(func() ([]Event, bool) {
		e.live.pan = fyne.Delta{}
		e.steadyPan = geometry.Compose(e.steadyPan, geometry.ScaleOffset(translation, 1/e.zoomScaleLocked()))
		return []Event{e.event(ViewChanged)}, false
	})
}

// PanBy is EndPan without a preceding live phase, e.g. for scroll wheels.
func (e *Engine) PanBy(translation fyne.Delta) {
	e.EndPan(translation)
}

// UpdateZoom records the scale of a pinch in progress.
func (e *Engine) UpdateZoom(scale float32) {
	if !validScale(scale) {
		return
	}
	e.commit(func() ([]Event, bool) {
		if !validZoom(e.steadyZoom * scale) {
			return nil, false
		}
		e.live.zoom = scale
		return []Event{e.event(ViewChanged)}, false
	})
}

// EndZoom commits a finished pinch. A scale that would underflow or
// overflow the zoom leaves it unchanged.
func (e *Engine) EndZoom(scale float32) {
	e.commit(func() ([]Event, bool) {
		e.live.zoom = 1
		if z := e.steadyZoom * scale; validScale(scale) && validZoom(z) {
			e.steadyZoom = z
		}
		return []Event{e.event(ViewChanged)}, false
	})
}

// ZoomBy is EndZoom without a preceding live phase.
func (e *Engine) ZoomBy(scale float32) {
	e.EndZoom(scale)
}

// ZoomToFit resets the pan and zooms so the background fills viewport. It
// does nothing and returns false when no background is loaded or a size
// is degenerate.
func (e *Engine) ZoomToFit(viewport fyne.Size) bool {
	var ok bool
	e.commit(func() ([]Event, bool) {
		if e.bg.Status != Loaded {
			return nil, false
		}
		var scale float32
		scale, ok = geometry.ZoomToFit(e.bg.Size, viewport)
		if ok && !validZoom(scale) {
			ok = false
		}
		if !ok {
			return nil, false
		}
		e.steadyPan = fyne.Delta{}
		e.steadyZoom = scale
		return []Event{e.event(ViewChanged)}, false
	})
	return ok
}

// UpdateMove records the screen translation of a drag on the selection.
func (e *Engine) UpdateMove(translation fyne.Delta) {
	e.commit(func() ([]Event, bool) {
		e.live.move = translation
		return []Event{e.event(ViewChanged)}, false
	})
}

// EndMove moves every selected emoji by the drag translation converted to
// composition space, then clears the selection unless KeepSelection is set.
func (e *Engine) EndMove(translation fyne.Delta) {
	e.commit(func() ([]Event, bool) {
		e.live.move = fyne.Delta{}
		by := geometry.ScaleOffset(translation, 1/e.zoomScaleLocked())
		events, dirty := e.moveLocked(e.selectionLocked(), truncate(by.DX), truncate(by.DY))
		events = append(events, e.event(ViewChanged))
		return e.endSelectionGestureLocked(events), dirty
	})
}

// UpdateResize records the scale of a pinch on the selection.
func (e *Engine) UpdateResize(scale float32) {
	if !validScale(scale) {
		return
	}
	e.commit(func() ([]Event, bool) {
		e.live.resize = scale
		return []Event{e.event(ViewChanged)}, false
	})
}

// EndResize scales every selected emoji, then clears the selection unless
// KeepSelection is set.
func (e *Engine) EndResize(scale float32) {
	e.commit(func() ([]Event, bool) {
		e.live.resize = 1
		events, dirty := e.scaleLocked(e.selectionLocked(), float64(scale))
		events = append(events, e.event(ViewChanged))
		return e.endSelectionGestureLocked(events), dirty
	})
}

func (e *Engine) endSelectionGestureLocked(events []Event) []Event {
	if e.opts.KeepSelection || len(e.selection) == 0 {
		return events
	}
	clear(e.selection)
	return append(events, e.event(SelectionChanged))
}
