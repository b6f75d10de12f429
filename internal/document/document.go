// Package document implements the editing engine for one emoji-art
// document: the composition plus transient view state (pan, zoom, live
// gesture values, selection, background image) and the intents that change
// them.
//
// Every intent runs synchronously under the engine's lock. Background image
// fetches and autosave writes run on their own goroutines and re-enter
// through the same lock. Subscribers are notified after the lock is
// released.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"fyne.io/fyne/v2"

	"EmojiArt/internal/persist"
	"EmojiArt/internal/state"
)

// DefaultAutosaveDelay is the debounce applied when Options leaves it unset.
const DefaultAutosaveDelay = 500 * time.Millisecond

// Key returns the substrate key a document's composition is saved under.
func Key(id string) string {
	return "EmojiArtDocument." + id
}

// Fetcher retrieves background image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Options configures an Engine.
type Options struct {
	// Substrate receives autosaved compositions. Nil disables saving.
	Substrate persist.Writer
	// Fetcher loads background images. Nil leaves every background Failed.
	Fetcher Fetcher
	Logger  *slog.Logger
	// AutosaveDelay debounces writes. Zero means DefaultAutosaveDelay.
	AutosaveDelay time.Duration
	// KeepSelection leaves the selection in place after a move or resize
	// gesture ends. By default the selection is cleared.
	KeepSelection bool
}

// Engine is one open document.
type Engine struct {
	id      string
	opts    Options
	logger  *slog.Logger
	saver   *autosaver
	subs    subscribers
	fetcher Fetcher

	mu         sync.Mutex
	comp       *state.Composition
	steadyPan  fyne.Delta
	steadyZoom float32
	live       liveGestures
	selection  map[int]struct{}
	bg         Background
	fetch      fetchState
	closed     bool
}

// New returns an engine editing comp. The engine owns comp afterwards.
func New(id string, comp *state.Composition, opts Options) *Engine {
	if comp == nil {
		comp = state.NewCompositionWithID(id)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("document", id)
	delay := opts.AutosaveDelay
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}

	e := &Engine{
		id:         id,
		opts:       opts,
		logger:     logger,
		fetcher:    opts.Fetcher,
		comp:       comp,
		steadyZoom: 1,
		live:       idleGestures(),
		selection:  make(map[int]struct{}),
		bg:         Background{Status: NoBackground},
	}
	e.saver = &autosaver{
		w:      opts.Substrate,
		key:    Key(id),
		delay:  delay,
		encode: e.Encode,
		logger: logger,
	}

	if comp.Background != "" {
		e.mu.Lock()
		e.startFetchLocked(comp.Background)
		e.mu.Unlock()
	}
	return e
}

// Load opens document id from src. A missing entry opens a blank document
// and corrupt data opens an empty one; only substrate failures are
// returned as errors.
func Load(ctx context.Context, id string, src persist.Reader, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	data, err := src.Get(ctx, Key(id))
	switch {
	case errors.Is(err, persist.ErrNotFound):
		return New(id, state.NewCompositionWithID(id), opts), nil
	case err != nil:
		return nil, fmt.Errorf("document: load %s: %w", id, err)
	}

	comp, err := state.Decode(data)
	if err != nil {
		logger.Warn("discarding unreadable document", "document", id, "error", err)
		comp = state.NewCompositionWithID(id)
	}
	return New(id, comp, opts), nil
}

// ID returns the document identifier.
func (e *Engine) ID() string { return e.id }

// Subscribe registers fn for change notifications and returns a function
// that cancels the subscription. fn runs on the goroutine that made the
// change, without the engine lock held.
func (e *Engine) Subscribe(fn func(Event)) (cancel func()) {
	return e.subs.add(fn)
}

// Encode serializes the current composition.
func (e *Engine) Encode() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.Encode()
}

// Composition returns a copy of the current composition.
func (e *Engine) Composition() *state.Composition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.Clone()
}

// Snapshot is a read-only copy of everything the canvas draws.
type Snapshot struct {
	ID         string
	Emojis     []state.Emoji
	Locator    string
	Background Background
	SteadyPan  fyne.Delta
	SteadyZoom float32
	// ZoomScale and PanOffset include any live gesture; PanOffset is in
	// screen space.
	ZoomScale float32
	PanOffset fyne.Delta
	// MoveOffset and ResizeScale apply to selected emojis only while a
	// gesture is in progress.
	MoveOffset  fyne.Delta
	ResizeScale float32
	Selection   []int
}

// Selected reports whether id is in the snapshot's selection.
func (s Snapshot) Selected(id int) bool {
	return slices.Contains(s.Selection, id)
}

// Snapshot returns the current view state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	bg := e.bg
	bg.Data = slices.Clone(bg.Data)
	return Snapshot{
		ID:          e.id,
		Emojis:      e.comp.Emojis(),
		Locator:     e.comp.Background,
		Background:  bg,
		SteadyPan:   e.steadyPan,
		SteadyZoom:  e.steadyZoom,
		ZoomScale:   e.zoomScaleLocked(),
		PanOffset:   e.panOffsetLocked(),
		MoveOffset:  e.live.move,
		ResizeScale: e.live.resize,
		Selection:   e.selectionLocked(),
	}
}

// Flush writes any pending autosave immediately.
func (e *Engine) Flush(ctx context.Context) error {
	return e.saver.flush(ctx)
}

// Orphan stops all further persistence. The engine stays usable in memory;
// the store calls this when it deletes a document that is still open.
func (e *Engine) Orphan() {
	e.saver.stop()
	e.logger.Debug("document orphaned")
}

// HoldSaves blocks autosave writes until release is called, so a caller
// can change the saved copy without racing the engine. release(true) then
// orphans the engine; release(false) lets pending saves continue.
func (e *Engine) HoldSaves() (release func(orphan bool)) {
	return e.saver.hold()
}

// Close cancels any background fetch, waits for it to settle, flushes the
// pending save and stops autosaving.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cancelFetchLocked()
	e.mu.Unlock()

	waitErr := e.WaitBackground(ctx)
	err := e.saver.flush(ctx)
	e.saver.stop()
	return errors.Join(err, waitErr)
}

// commit runs fn under the lock and emits the events it returns. When
// dirty is true the composition is scheduled for saving.
func (e *Engine) commit(fn func() (events []Event, dirty bool)) {
	e.mu.Lock()
	events, dirty := fn()
	e.mu.Unlock()
	if dirty {
		e.saver.markDirty()
	}
	e.subs.emit(events)
}

func (e *Engine) event(kind Kind) Event {
	return Event{Document: e.id, Kind: kind}
}

func (e *Engine) compEvent(op state.OpType, ids ...int) Event {
	return Event{Document: e.id, Kind: CompositionChanged, Op: state.Op{Type: op, IDs: ids}}
}
