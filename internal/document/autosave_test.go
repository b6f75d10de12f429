package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmojiArt/internal/persist"
	"EmojiArt/internal/state"
)

type countingWriter struct {
	mu     sync.Mutex
	writes int
	last   []byte
	err    error
}

func (w *countingWriter) Set(_ context.Context, _ string, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.writes++
	w.last = value
	return nil
}

func (w *countingWriter) Delete(context.Context, string) error { return nil }

func (w *countingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}

func saved(t *testing.T, mem *persist.Memory, id string) *state.Composition {
	t.Helper()
	data, err := mem.Get(context.Background(), Key(id))
	require.NoError(t, err)
	comp, err := state.Decode(data)
	require.NoError(t, err)
	return comp
}

func TestAutosaveWritesAfterDelay(t *testing.T) {
	mem := persist.NewMemory()
	e := newEngine(t, Options{Substrate: mem, AutosaveDelay: 10 * time.Millisecond})

	e.AddEmoji("🦁", fyne.NewPos(1, 2), 40)
	require.Eventually(t, func() bool {
		_, err := mem.Get(context.Background(), Key("doc-1"))
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, e.Composition().Equal(saved(t, mem, "doc-1")))
}

func TestAutosaveDebounces(t *testing.T) {
	w := &countingWriter{}
	e := newEngine(t, Options{Substrate: w, AutosaveDelay: 50 * time.Millisecond})

	for i := range 10 {
		e.AddEmoji("🦁", fyne.NewPos(float32(i), 0), 40)
	}
	require.Eventually(t, func() bool { return w.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, w.count())
}

func TestViewChangesAreNotSaved(t *testing.T) {
	w := &countingWriter{}
	e := newEngine(t, Options{Substrate: w, AutosaveDelay: time.Millisecond})

	e.UpdatePan(fyne.Delta{DX: 3})
	e.EndZoom(2)
	id, _ := e.AddEmoji("🦁", fyne.Position{}, 40)
	require.NoError(t, e.Flush(context.Background()))
	n := w.count()

	e.Select(id)
	e.UpdateMove(fyne.Delta{DX: 4})
	e.UpdateResize(3)
	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, n, w.count())
}

func TestFlushWritesPendingChange(t *testing.T) {
	mem := persist.NewMemory()
	e := newEngine(t, Options{Substrate: mem, AutosaveDelay: time.Hour})

	e.AddEmoji("🐸", fyne.Position{}, 40)
	_, err := mem.Get(context.Background(), Key("doc-1"))
	require.ErrorIs(t, err, persist.ErrNotFound)

	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, 1, saved(t, mem, "doc-1").Len())
}

func TestCloseFlushes(t *testing.T) {
	mem := persist.NewMemory()
	e := New("doc-2", nil, Options{Substrate: mem, AutosaveDelay: time.Hour, Logger: quiet})
	e.AddEmoji("🐤", fyne.Position{}, 40)
	require.NoError(t, e.Close(context.Background()))
	assert.Equal(t, 1, saved(t, mem, "doc-2").Len())
	assert.NoError(t, e.Close(context.Background()), "second close is a no-op")
}

func TestOrphanStopsWrites(t *testing.T) {
	w := &countingWriter{}
	e := newEngine(t, Options{Substrate: w, AutosaveDelay: 5 * time.Millisecond})

	e.AddEmoji("🦁", fyne.Position{}, 40)
	e.Orphan()
	e.AddEmoji("🐸", fyne.Position{}, 40)
	require.NoError(t, e.Flush(context.Background()))
	time.Sleep(30 * time.Millisecond)

	assert.Zero(t, w.count())
	assert.Equal(t, 2, e.Composition().Len(), "orphaned engine still edits in memory")
}

func TestFailedSaveIsRetriedByNextChange(t *testing.T) {
	w := &countingWriter{err: errors.New("read-only")}
	e := newEngine(t, Options{Substrate: w, AutosaveDelay: time.Hour})

	e.AddEmoji("🦁", fyne.Position{}, 40)
	assert.Error(t, e.Flush(context.Background()))

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	e.AddEmoji("🐸", fyne.Position{}, 40)
	require.NoError(t, e.Flush(context.Background()))

	comp, err := state.Decode(w.last)
	require.NoError(t, err)
	assert.Equal(t, 2, comp.Len())
}
