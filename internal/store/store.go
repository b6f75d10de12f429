// Package store keeps the registry of emoji-art documents: their order,
// their names, and which engines are open for editing.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"EmojiArt/internal/document"
	"EmojiArt/internal/persist"
	"EmojiArt/internal/state"
)

// DefaultName is the store name used when none is configured.
const DefaultName = "Emoji Art"

// UntitledName is returned for documents whose name was never set.
const UntitledName = "Untitled"

// ErrUnknownDocument is returned when an id is not in the index.
var ErrUnknownDocument = errors.New("store: unknown document")

var untitledRe = regexp.MustCompile(`^Untitled (\d+)$`)

// IndexKey is the substrate key holding the ordered name index.
func IndexKey(name string) string {
	return "EmojiArtDocumentStore." + name
}

// PalettesKey is the substrate key holding the palette book.
func PalettesKey(name string) string {
	return "EmojiArtPaletteStore." + name
}

// Entry is one document in the index.
type Entry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type indexJSON struct {
	Documents []Entry `json:"documents"`
}

// Options configures a Store.
type Options struct {
	// Document is the template for opened engines. Its Substrate is always
	// replaced by the store's substrate.
	Document document.Options
	Logger   *slog.Logger
	// NewID allocates document ids. Defaults to random UUIDs.
	NewID func() string
}

// Store is the document registry. It is safe for concurrent use; add,
// remove and rename are mutually exclusive.
type Store struct {
	name   string
	sub    persist.Substrate
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	entries []Entry
	open    map[string]*document.Engine
}

// Open loads the index of the store called name from sub. A missing index
// is an empty store; an unreadable one is logged and treated as empty.
func Open(ctx context.Context, name string, sub persist.Substrate, opts Options) (*Store, error) {
	if name == "" {
		name = DefaultName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	s := &Store{
		name:   name,
		sub:    sub,
		opts:   opts,
		logger: logger.With("store", name),
		open:   make(map[string]*document.Engine),
	}

	data, err := sub.Get(ctx, IndexKey(name))
	switch {
	case errors.Is(err, persist.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("store: open %q: %w", name, err)
	}

	var idx indexJSON
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Warn("discarding unreadable document index", "error", err)
		return s, nil
	}
	seen := make(map[string]bool, len(idx.Documents))
	for _, e := range idx.Documents {
		if e.ID == "" || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		s.entries = append(s.entries, e)
	}
	s.logger.Debug("store opened", "documents", len(s.entries))
	return s, nil
}

// StoreName returns the name the store was opened with.
func (s *Store) StoreName() string { return s.name }

// Documents returns the index in display order.
func (s *Store) Documents() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Contains reports whether id is in the index.
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// Name returns the name of document id, or UntitledName when it has none.
func (s *Store) Name(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 && s.entries[i].Name != "" {
		return s.entries[i].Name
	}
	return UntitledName
}

// AddDocument creates a blank document at the end of the index and returns
// its id. The index and the blank composition are saved together.
func (s *Store) AddDocument(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.opts.NewID()
	blank, err := state.NewCompositionWithID(id).Encode()
	if err != nil {
		return "", err
	}
	entries := append(slices.Clone(s.entries), Entry{ID: id, Name: s.nextUntitledLocked()})
	idx, err := encodeIndex(entries)
	if err != nil {
		return "", err
	}
	err = persist.Apply(ctx, s.sub,
		persist.Mutation{Key: document.Key(id), Value: blank},
		persist.Mutation{Key: IndexKey(s.name), Value: idx},
	)
	if err != nil {
		return "", fmt.Errorf("store: add document: %w", err)
	}
	s.entries = entries
	s.logger.Info("document added", "document", id)
	return id, nil
}

// RemoveDocument deletes document id and its saved composition. If the
// document is open its engine stays usable but nothing it does is saved
// any more. When the delete fails the document and its engine are left as
// they were. Unknown ids are ignored.
func (s *Store) RemoveDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	removed := false
	if e, ok := s.open[id]; ok {
		release := e.HoldSaves()
		defer func() { release(removed) }()
	}
	entries := slices.Delete(slices.Clone(s.entries), i, i+1)
	idx, err := encodeIndex(entries)
	if err != nil {
		return err
	}
	err = persist.Apply(ctx, s.sub,
		persist.Mutation{Key: IndexKey(s.name), Value: idx},
		persist.Mutation{Key: document.Key(id), Delete: true},
	)
	if err != nil {
		return fmt.Errorf("store: remove document %s: %w", id, err)
	}
	removed = true
	delete(s.open, id)
	s.entries = entries
	s.logger.Info("document removed", "document", id)
	return nil
}

// SetName renames document id. Names need not be unique. Unknown ids are
// ignored.
func (s *Store) SetName(ctx context.Context, name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 || s.entries[i].Name == name {
		return nil
	}
	entries := slices.Clone(s.entries)
	entries[i].Name = name
	if err := s.saveIndexLocked(ctx, entries); err != nil {
		return err
	}
	s.entries = entries
	return nil
}

// MoveDocument moves the entry at index from so it ends up at index to.
func (s *Store) MoveDocument(ctx context.Context, from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return nil
	}
	entries := slices.Clone(s.entries)
	e := entries[from]
	entries = slices.Delete(entries, from, from+1)
	entries = slices.Insert(entries, to, e)
	if err := s.saveIndexLocked(ctx, entries); err != nil {
		return err
	}
	s.entries = entries
	return nil
}

// OpenDocument returns the engine for document id, loading it on first
// use. The same engine is returned until Release or RemoveDocument.
func (s *Store) OpenDocument(ctx context.Context, id string) (*document.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.open[id]; ok {
		return e, nil
	}
	if s.indexLocked(id) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, id)
	}
	opts := s.opts.Document
	opts.Substrate = s.sub
	if opts.Logger == nil {
		opts.Logger = s.logger
	}
	e, err := document.Load(ctx, id, s.sub, opts)
	if err != nil {
		return nil, err
	}
	s.open[id] = e
	s.logger.Debug("document opened", "document", id)
	return e, nil
}

// Release ends the editing session for id: pending changes are flushed and
// the store forgets the engine. The flush runs under the store lock, so a
// concurrent RemoveDocument cannot be overwritten by it.
func (s *Store) Release(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.open[id]
	if !ok {
		return nil
	}
	delete(s.open, id)
	return e.Close(ctx)
}

// Close releases every open engine.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, e := range s.open {
		errs = append(errs, e.Close(ctx))
		delete(s.open, id)
	}
	return errors.Join(errs...)
}

// Palettes loads the palette book, falling back to the defaults.
func (s *Store) Palettes(ctx context.Context) (*state.PaletteBook, error) {
	data, err := s.sub.Get(ctx, PalettesKey(s.name))
	switch {
	case errors.Is(err, persist.ErrNotFound):
		return state.NewPaletteBook(nil), nil
	case err != nil:
		return nil, fmt.Errorf("store: load palettes: %w", err)
	}
	book, err := state.DecodePaletteBook(data)
	if err != nil {
		s.logger.Warn("discarding unreadable palettes", "error", err)
	}
	return book, nil
}

// SavePalettes persists book.
func (s *Store) SavePalettes(ctx context.Context, book *state.PaletteBook) error {
	data, err := book.Encode()
	if err != nil {
		return err
	}
	if err := s.sub.Set(ctx, PalettesKey(s.name), data); err != nil {
		return fmt.Errorf("store: save palettes: %w", err)
	}
	return nil
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.ID == id })
}

// nextUntitledLocked picks one more than the highest "Untitled N" in use,
// so a rename or removal never produces a duplicate default.
func (s *Store) nextUntitledLocked() string {
	n := 0
	for _, e := range s.entries {
		if m := untitledRe.FindStringSubmatch(e.Name); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v > n {
				n = v
			}
		}
	}
	return UntitledName + " " + strconv.Itoa(n+1)
}

func (s *Store) saveIndexLocked(ctx context.Context, entries []Entry) error {
	idx, err := encodeIndex(entries)
	if err != nil {
		return err
	}
	if err := s.sub.Set(ctx, IndexKey(s.name), idx); err != nil {
		return fmt.Errorf("store: save index: %w", err)
	}
	return nil
}

func encodeIndex(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(indexJSON{Documents: entries})
	if err != nil {
		return nil, fmt.Errorf("store: encode index: %w", err)
	}
	return data, nil
}
