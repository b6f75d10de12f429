package document

import (
	"slices"

	"fyne.io/fyne/v2"

	"EmojiArt/internal/geometry"
	"EmojiArt/internal/state"
)

// AddEmoji places text at a composition-space location. It reports false
// and changes nothing when text is blank.
func (e *Engine) AddEmoji(text string, at fyne.Position, size float32) (id int, ok bool) {
	if !validText(text) {
		return 0, false
	}
	e.commit(func() ([]Event, bool) {
		id, ok = e.comp.AddEmoji(text, int(at.X), int(at.Y), int(size))
		if !ok {
			return nil, false
		}
		return []Event{e.compEvent(state.OpAddEmoji, id)}, true
	})
	return id, ok
}

// DropEmoji places text where it was dropped on screen, given the size of
// the viewport the canvas occupies.
func (e *Engine) DropEmoji(text string, screen fyne.Position, viewport fyne.Size, size float32) (int, bool) {
	e.mu.Lock()
	at := geometry.ScreenToComposition(screen, geometry.ViewportCenter(viewport), e.panOffsetLocked(), e.zoomScaleLocked())
	e.mu.Unlock()
	return e.AddEmoji(text, at, size)
}

// MoveEmojis shifts every listed emoji by a composition-space offset.
// Fractions are truncated toward zero. Unknown ids are skipped.
func (e *Engine) MoveEmojis(ids []int, by fyne.Delta) {
	dx, dy := truncate(by.DX), truncate(by.DY)
	e.commit(func() ([]Event, bool) {
		return e.moveLocked(ids, dx, dy)
	})
}

func (e *Engine) moveLocked(ids []int, dx, dy int) ([]Event, bool) {
	var moved []int
	for _, id := range ids {
		if e.comp.MoveEmoji(id, dx, dy) {
			moved = append(moved, id)
		}
	}
	if len(moved) == 0 || (dx == 0 && dy == 0) {
		return nil, false
	}
	return []Event{e.compEvent(state.OpMoveEmoji, moved...)}, true
}

// ScaleEmojis resizes every listed emoji by factor. Unknown ids are
// skipped.
func (e *Engine) ScaleEmojis(ids []int, factor float64) {
	e.commit(func() ([]Event, bool) {
		return e.scaleLocked(ids, factor)
	})
}

func (e *Engine) scaleLocked(ids []int, factor float64) ([]Event, bool) {
	var scaled []int
	for _, id := range ids {
		if e.comp.ScaleEmoji(id, factor) {
			scaled = append(scaled, id)
		}
	}
	if len(scaled) == 0 {
		return nil, false
	}
	return []Event{e.compEvent(state.OpScaleEmoji, scaled...)}, true
}

// RemoveEmoji deletes the emoji and drops it from the selection.
func (e *Engine) RemoveEmoji(id int) {
	e.commit(func() ([]Event, bool) {
		if !e.comp.RemoveEmoji(id) {
			return nil, false
		}
		events := []Event{e.compEvent(state.OpRemoveEmoji, id)}
		if _, ok := e.selection[id]; ok {
			delete(e.selection, id)
			events = append(events, e.event(SelectionChanged))
		}
		return events, true
	})
}

// ReplaceComposition swaps in a whole new composition, e.g. one received
// from a shared document. Selected ids that no longer exist are dropped
// and the background is refetched if its locator changed.
func (e *Engine) ReplaceComposition(comp *state.Composition) {
	if comp == nil {
		return
	}
	comp = comp.Clone()
	e.commit(func() ([]Event, bool) {
		prev := e.comp.Background
		e.comp = comp
		events := []Event{e.compEvent(state.OpReplace)}
		if e.pruneSelectionLocked() {
			events = append(events, e.event(SelectionChanged))
		}
		if comp.Background != prev {
			e.startFetchLocked(comp.Background)
			events = append(events, e.event(BackgroundChanged))
		}
		return events, true
	})
}

// Select adds id to the selection if such an emoji exists.
func (e *Engine) Select(id int) bool {
	var ok bool
	e.commit(func() ([]Event, bool) {
		if !e.comp.Contains(id) {
			return nil, false
		}
		ok = true
		if _, already := e.selection[id]; already {
			return nil, false
		}
		e.selection[id] = struct{}{}
		return []Event{e.event(SelectionChanged)}, false
	})
	return ok
}

// Deselect removes id from the selection.
func (e *Engine) Deselect(id int) {
	e.commit(func() ([]Event, bool) {
		if _, ok := e.selection[id]; !ok {
			return nil, false
		}
		delete(e.selection, id)
		return []Event{e.event(SelectionChanged)}, false
	})
}

// ToggleSelection selects id if it is not selected and deselects it
// otherwise, the way a tap on an emoji behaves.
func (e *Engine) ToggleSelection(id int) {
	e.commit(func() ([]Event, bool) {
		if _, ok := e.selection[id]; ok {
			delete(e.selection, id)
			return []Event{e.event(SelectionChanged)}, false
		}
		if !e.comp.Contains(id) {
			return nil, false
		}
		e.selection[id] = struct{}{}
		return []Event{e.event(SelectionChanged)}, false
	})
}

// ClearSelection empties the selection.
func (e *Engine) ClearSelection() {
	e.commit(func() ([]Event, bool) {
		if len(e.selection) == 0 {
			return nil, false
		}
		clear(e.selection)
		return []Event{e.event(SelectionChanged)}, false
	})
}

// Selection returns the selected ids in ascending order.
func (e *Engine) Selection() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectionLocked()
}

// IsSelected reports whether id is selected.
func (e *Engine) IsSelected(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.selection[id]
	return ok
}

func (e *Engine) selectionLocked() []int {
	ids := make([]int, 0, len(e.selection))
	for id := range e.selection {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (e *Engine) pruneSelectionLocked() bool {
	changed := false
	for id := range e.selection {
		if !e.comp.Contains(id) {
			delete(e.selection, id)
			changed = true
		}
	}
	return changed
}

func validText(text string) bool {
	for _, g := range state.Glyphs(text) {
		if state.IsSingleGlyph(g) {
			return true
		}
	}
	return false
}
