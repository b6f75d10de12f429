package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmojiArt/internal/document"
	"EmojiArt/internal/persist"
	"EmojiArt/internal/state"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("doc-%d", n)
	}
}

func openStore(t *testing.T, sub persist.Substrate) *Store {
	t.Helper()
	s, err := Open(context.Background(), "", sub, Options{
		Logger:   quiet,
		NewID:    sequentialIDs(),
		Document: document.Options{AutosaveDelay: time.Hour},
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestAddDocumentNames(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, persist.NewMemory())
	assert.Equal(t, DefaultName, s.StoreName())
	assert.Empty(t, s.Documents())

	a, err := s.AddDocument(ctx)
	require.NoError(t, err)
	b, err := s.AddDocument(ctx)
	require.NoError(t, err)

	assert.NotEmpty(t, s.Name(a))
	assert.NotEqual(t, s.Name(a), s.Name(b))
	assert.Equal(t, []Entry{{ID: a, Name: "Untitled 1"}, {ID: b, Name: "Untitled 2"}}, s.Documents())
}

func TestUntitledNumberFollowsHighest(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, persist.NewMemory())
	a, _ := s.AddDocument(ctx)
	s.AddDocument(ctx)
	s.AddDocument(ctx)
	require.NoError(t, s.RemoveDocument(ctx, a))

	id, err := s.AddDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Untitled 4", s.Name(id))
}

func TestAddDocumentPersistsBlankComposition(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()
	s := openStore(t, mem)
	id, err := s.AddDocument(ctx)
	require.NoError(t, err)

	data, err := mem.Get(ctx, document.Key(id))
	require.NoError(t, err)
	comp, err := state.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, id, comp.ID)
	assert.Zero(t, comp.Len())
}

func TestIndexSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()
	s := openStore(t, mem)
	a, _ := s.AddDocument(ctx)
	b, _ := s.AddDocument(ctx)
	require.NoError(t, s.SetName(ctx, "Beach", b))
	require.NoError(t, s.MoveDocument(ctx, 1, 0))

	reopened := openStore(t, mem)
	assert.Equal(t, []Entry{{ID: b, Name: "Beach"}, {ID: a, Name: "Untitled 1"}}, reopened.Documents())
}

func TestNameDefaults(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, persist.NewMemory())
	id, _ := s.AddDocument(ctx)
	require.NoError(t, s.SetName(ctx, "", id))
	assert.Equal(t, UntitledName, s.Name(id))
	assert.Equal(t, UntitledName, s.Name("missing"))

	require.NoError(t, s.SetName(ctx, "x", "missing"), "unknown ids are ignored")
}

func TestNamesNeedNotBeUnique(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, persist.NewMemory())
	a, _ := s.AddDocument(ctx)
	b, _ := s.AddDocument(ctx)
	require.NoError(t, s.SetName(ctx, "Same", a))
	require.NoError(t, s.SetName(ctx, "Same", b))
	assert.Equal(t, s.Name(a), s.Name(b))
	assert.Len(t, s.Documents(), 2)
}

func TestCorruptIndexOpensEmpty(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()
	require.NoError(t, mem.Set(ctx, IndexKey(DefaultName), []byte("[[[")))
	s := openStore(t, mem)
	assert.Empty(t, s.Documents())
}

func TestIndexDropsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()
	raw := `{"documents":[{"id":"a","name":"one"},{"id":"","name":"blank"},{"id":"a","name":"again"},{"id":"b","name":"two"}]}`
	require.NoError(t, mem.Set(ctx, IndexKey(DefaultName), []byte(raw)))
	s := openStore(t, mem)
	assert.Equal(t, []Entry{{ID: "a", Name: "one"}, {ID: "b", Name: "two"}}, s.Documents())
}

type brokenSubstrate struct{ persist.Memory }

func (*brokenSubstrate) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("io error")
}

func TestOpenReportsSubstrateFailure(t *testing.T) {
	_, err := Open(context.Background(), "x", &brokenSubstrate{}, Options{Logger: quiet})
	assert.Error(t, err)
}

func TestRemoveLeavesNothingBehind(t *testing.T) {
	ctx := context.Background()
	db, err := persist.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := openStore(t, db)
	a, _ := s.AddDocument(ctx)
	b, _ := s.AddDocument(ctx)
	require.NoError(t, s.RemoveDocument(ctx, a))

	assert.Equal(t, []Entry{{ID: b, Name: "Untitled 2"}}, s.Documents())
	_, err = db.Get(ctx, document.Key(a))
	assert.ErrorIs(t, err, persist.ErrNotFound)

	reopened := openStore(t, db)
	assert.False(t, reopened.Contains(a))
	assert.True(t, reopened.Contains(b))

	assert.NoError(t, s.RemoveDocument(ctx, "missing"))
}

func TestRemoveOpenDocumentOrphansEngine(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()
	s := openStore(t, mem)
	id, _ := s.AddDocument(ctx)

	e, err := s.OpenDocument(ctx, id)
	require.NoError(t, err)
	e.AddEmoji("🦁", fyne.Position{}, 40)
	require.NoError(t, s.RemoveDocument(ctx, id))

	e.AddEmoji("🐸", fyne.Position{}, 40)
	require.NoError(t, e.Flush(ctx))
	assert.Equal(t, 2, e.Composition().Len(), "engine keeps working")

	_, err = mem.Get(ctx, document.Key(id))
	assert.ErrorIs(t, err, persist.ErrNotFound, "orphaned writes are dropped")
	assert.NotContains(t, mem.Keys(), document.Key(id))
}

// flakyApply is a memory substrate whose atomic writes can be made to fail.
type flakyApply struct {
	*persist.Memory
	fail atomic.Bool
}

func (f *flakyApply) Apply(ctx context.Context, muts ...persist.Mutation) error {
	if f.fail.Load() {
		return errors.New("disk full")
	}
	return f.Memory.Apply(ctx, muts...)
}

func TestFailedRemoveKeepsOpenDocument(t *testing.T) {
	ctx := context.Background()
	sub := &flakyApply{Memory: persist.NewMemory()}
	s := openStore(t, sub)
	id, err := s.AddDocument(ctx)
	require.NoError(t, err)
	e1, err := s.OpenDocument(ctx, id)
	require.NoError(t, err)

	sub.fail.Store(true)
	require.Error(t, s.RemoveDocument(ctx, id))
	assert.True(t, s.Contains(id))

	e1.AddEmoji("🦁", fyne.Position{}, 40)
	require.NoError(t, e1.Flush(ctx))
	data, err := sub.Get(ctx, document.Key(id))
	require.NoError(t, err)
	saved, err := state.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Len(), "engine still saves after a failed remove")

	e2, err := s.OpenDocument(ctx, id)
	require.NoError(t, err)
	assert.Same(t, e1, e2)

	sub.fail.Store(false)
	require.NoError(t, s.RemoveDocument(ctx, id))
	assert.False(t, s.Contains(id))
	assert.NotContains(t, sub.Keys(), document.Key(id))
}

func TestReleaseRacingRemoveLeavesNoStrayBytes(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()
	s := openStore(t, mem)

	for range 50 {
		id, err := s.AddDocument(ctx)
		require.NoError(t, err)
		e, err := s.OpenDocument(ctx, id)
		require.NoError(t, err)
		e.AddEmoji("🦁", fyne.Position{}, 40)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Release(ctx, id))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.RemoveDocument(ctx, id))
		}()
		wg.Wait()

		assert.False(t, s.Contains(id))
		assert.NotContains(t, mem.Keys(), document.Key(id))
	}
}

func TestOpenDocumentIsLazyAndCached(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()
	s := openStore(t, mem)
	id, _ := s.AddDocument(ctx)

	e1, err := s.OpenDocument(ctx, id)
	require.NoError(t, err)
	e2, err := s.OpenDocument(ctx, id)
	require.NoError(t, err)
	assert.Same(t, e1, e2)

	e1.AddEmoji("🦁", fyne.NewPos(5, 5), 40)
	require.NoError(t, s.Release(ctx, id))

	e3, err := s.OpenDocument(ctx, id)
	require.NoError(t, err)
	assert.NotSame(t, e1, e3)
	assert.Equal(t, 1, e3.Composition().Len(), "release flushed the edit")

	_, err = s.OpenDocument(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownDocument)
	assert.NoError(t, s.Release(ctx, "nope"))
}

func TestPalettes(t *testing.T) {
	ctx := context.Background()
	mem := persist.NewMemory()
	s := openStore(t, mem)

	book, err := s.Palettes(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.DefaultPalettes(), book.Palettes())

	require.True(t, book.Rename(0, "Mine"))
	require.NoError(t, s.SavePalettes(ctx, book))

	again, err := s.Palettes(ctx)
	require.NoError(t, err)
	p, _ := again.Palette(0)
	assert.Equal(t, "Mine", p.Name)

	require.NoError(t, mem.Set(ctx, PalettesKey(DefaultName), []byte("nope")))
	book, err = s.Palettes(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.DefaultPalettes(), book.Palettes())
}
