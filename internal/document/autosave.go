package document

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"EmojiArt/internal/persist"
)

// autosaver debounces composition writes. Writes happen on a timer
// goroutine and never block the editing caller; a failed write is logged
// and the next one simply overwrites.
type autosaver struct {
	w       persist.Writer
	key     string
	delay   time.Duration
	encode  func() ([]byte, error)
	logger  *slog.Logger
	writeMu sync.Mutex // serializes writes against stop
	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
}

func (s *autosaver) markDirty() {
	if s.w == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.fire)
		return
	}
	s.timer.Reset(s.delay)
}

func (s *autosaver) fire() {
	if err := s.write(context.Background()); err != nil {
		s.logger.Warn("autosave failed", "key", s.key, "error", err)
	}
}

func (s *autosaver) write(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.stopped || !s.pending {
		s.mu.Unlock()
		return nil
	}
	s.pending = false
	s.mu.Unlock()

	data, err := s.encode()
	if err != nil {
		return err
	}
	if err := s.w.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("document: save %s: %w", s.key, err)
	}
	s.logger.Debug("autosaved", "key", s.key, "bytes", len(data))
	return nil
}

// flush writes any pending change now.
func (s *autosaver) flush(ctx context.Context) error {
	if s.w == nil {
		return nil
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.write(ctx)
}

// stop drops pending work and refuses every later write. It waits for a
// write already in progress, so nothing reaches the substrate after it
// returns.
func (s *autosaver) stop() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.stopLocked()
}

func (s *autosaver) stopLocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.pending = false
	if s.timer != nil {
		s.timer.Stop()
	}
}

// hold blocks writes until release is called. Changes made meanwhile stay
// pending; release(true) drops them and stops the saver.
func (s *autosaver) hold() (release func(stop bool)) {
	s.writeMu.Lock()
	return func(stop bool) {
		if stop {
			s.stopLocked()
		}
		s.writeMu.Unlock()
	}
}
