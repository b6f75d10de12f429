package document

import (
	"sync"

	"EmojiArt/internal/state"
)

// Kind classifies a change notification.
type Kind int

const (
	// CompositionChanged: the durable composition was edited.
	CompositionChanged Kind = iota + 1
	// ViewChanged: pan, zoom or a live gesture value moved.
	ViewChanged
	// SelectionChanged: the selected emoji set changed.
	SelectionChanged
	// BackgroundChanged: the background fetch status or image changed.
	BackgroundChanged
)

func (k Kind) String() string {
	switch k {
	case CompositionChanged:
		return "composition"
	case ViewChanged:
		return "view"
	case SelectionChanged:
		return "selection"
	case BackgroundChanged:
		return "background"
	default:
		return "unknown"
	}
}

// Event tells subscribers that part of the engine's state changed. Op is
// set for CompositionChanged only.
type Event struct {
	Document string
	Kind     Kind
	Op       state.Op
}

type subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Event)
}

func (s *subscribers) add(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
