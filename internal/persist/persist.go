// Package persist provides the byte-oriented key/value substrate that
// documents and the document index are saved to.
//
// Three backends are available: Memory for tests and viewers, SQLite for
// the desktop app's data directory, and Preferences on top of the fyne app
// preferences.
package persist

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when a key holds no value.
var ErrNotFound = errors.New("persist: key not found")

// Reader reads values by key.
type Reader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Writer writes and deletes values by key. Deleting a missing key is not an
// error.
type Writer interface {
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Substrate is a complete key/value backend.
type Substrate interface {
	Reader
	Writer
}

// Mutation is one write in an atomic batch. Delete takes precedence over
// Value.
type Mutation struct {
	Key    string
	Value  []byte
	Delete bool
}

// Atomic is implemented by substrates that can apply several mutations as
// one unit.
type Atomic interface {
	Apply(ctx context.Context, muts ...Mutation) error
}

// Apply runs muts against s, atomically when s implements Atomic and in
// order otherwise.
func Apply(ctx context.Context, s Substrate, muts ...Mutation) error {
	if a, ok := s.(Atomic); ok {
		return a.Apply(ctx, muts...)
	}
	for _, m := range muts {
		var err error
		if m.Delete {
			err = s.Delete(ctx, m.Key)
		} else {
			err = s.Set(ctx, m.Key, m.Value)
		}
		if err != nil {
			return fmt.Errorf("persist: apply %q: %w", m.Key, err)
		}
	}
	return nil
}
