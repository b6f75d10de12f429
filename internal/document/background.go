package document

import (
	"context"
	"errors"

	"fyne.io/fyne/v2"

	"EmojiArt/internal/fetch"
	"EmojiArt/internal/state"
)

// Status is the state of the background image.
type Status int

const (
	NoBackground Status = iota
	Fetching
	Loaded
	Failed
)

func (s Status) String() string {
	switch s {
	case NoBackground:
		return "none"
	case Fetching:
		return "fetching"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Background is the displayed background. Data and Size are set only when
// Status is Loaded.
type Background struct {
	Status  Status
	Locator string
	Data    []byte
	Size    fyne.Size
	Format  string
}

var errNoFetcher = errors.New("document: no image fetcher configured")

// fetchState tracks the active fetch. gen is bumped for every new request;
// a completion carrying an older gen is stale and dropped.
type fetchState struct {
	gen      uint64
	cancel   context.CancelFunc
	inflight int
	idle     chan struct{}
}

// SetBackground changes the background locator. The displayed image is
// cleared at once and the new image fetched in the background; an earlier
// fetch still running is cancelled and its result ignored. "" removes the
// background.
func (e *Engine) SetBackground(locator string) {
	locator = fetch.ImageURL(locator)
	e.commit(func() ([]Event, bool) {
		e.comp.SetBackground(locator)
		e.startFetchLocked(locator)
		return []Event{
			e.compEvent(state.OpSetBackground),
			e.event(BackgroundChanged),
		}, true
	})
}

// Background returns the current background state.
func (e *Engine) Background() Background {
	e.mu.Lock()
	defer e.mu.Unlock()
	bg := e.bg
	bg.Data = append([]byte(nil), bg.Data...)
	return bg
}

// WaitBackground blocks until no background fetch is in flight or ctx is
// done.
func (e *Engine) WaitBackground(ctx context.Context) error {
	e.mu.Lock()
	idle := e.fetch.idle
	e.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) cancelFetchLocked() {
	e.fetch.gen++
	if e.fetch.cancel != nil {
		e.fetch.cancel()
		e.fetch.cancel = nil
	}
}

func (e *Engine) startFetchLocked(locator string) {
	e.cancelFetchLocked()
	if locator == "" {
		e.bg = Background{Status: NoBackground}
		return
	}
	e.bg = Background{Status: Fetching, Locator: locator}
	if e.fetcher == nil || e.closed {
		e.bg.Status = Failed
		e.logger.Warn("background unavailable", "locator", locator, "error", errNoFetcher)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.fetch.cancel = cancel
	if e.fetch.inflight == 0 {
		e.fetch.idle = make(chan struct{})
	}
	e.fetch.inflight++
	gen := e.fetch.gen
	e.logger.Debug("fetching background", "locator", locator)

	go func() {
		data, err := e.fetcher.Fetch(ctx, locator)
		e.finishFetch(gen, locator, data, err)
	}()
}

func (e *Engine) finishFetch(gen uint64, locator string, data []byte, err error) {
	e.commit(func() ([]Event, bool) {
		defer e.settleLocked()
		if gen != e.fetch.gen {
			e.logger.Debug("dropping stale background", "locator", locator)
			return nil, false
		}
		if e.fetch.cancel != nil {
			e.fetch.cancel()
			e.fetch.cancel = nil
		}

		if err == nil {
			var info fetch.ImageInfo
			if info, err = fetch.Inspect(data); err == nil {
				e.bg = Background{
					Status:  Loaded,
					Locator: locator,
					Data:    data,
					Size:    info.Size,
					Format:  info.Format,
				}
				return []Event{e.event(BackgroundChanged)}, false
			}
		}
		e.logger.Warn("background fetch failed", "locator", locator, "error", err)
		e.bg = Background{Status: Failed, Locator: locator}
		return []Event{e.event(BackgroundChanged)}, false
	})
}

func (e *Engine) settleLocked() {
	e.fetch.inflight--
	if e.fetch.inflight == 0 && e.fetch.idle != nil {
		close(e.fetch.idle)
		e.fetch.idle = nil
	}
}
