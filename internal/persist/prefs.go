package persist

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
)

// prefStore is the part of fyne.Preferences the adapter needs.
type prefStore interface {
	String(key string) string
	SetString(key string, value string)
	RemoveValue(key string)
}

const prefPrefix = "b64:"

// Preferences stores values in fyne app preferences, the desktop analogue
// of a user-defaults store. Values are base64 encoded.
type Preferences struct {
	prefs  prefStore
	logger *slog.Logger
}

// NewPreferences wraps p, typically fyne.CurrentApp().Preferences().
func NewPreferences(p prefStore, logger *slog.Logger) *Preferences {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preferences{prefs: p, logger: logger}
}

// Get treats a value this adapter did not write as absent, so callers
// fall back to defaults instead of failing.

func (p *Preferences) Get(_ context.Context, key string) ([]byte, error) {
	raw := p.prefs.String(key)
	if raw == "" {
		return nil, ErrNotFound
	}
	enc, ok := strings.CutPrefix(raw, prefPrefix)
	if !ok {
		p.logger.Warn("ignoring foreign preference value", "key", key)
		return nil, ErrNotFound
	}
	v, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		p.logger.Warn("ignoring undecodable preference value", "key", key, "error", err)
		return nil, ErrNotFound
	}
	return v, nil
}

func (p *Preferences) Set(_ context.Context, key string, value []byte) error {
	p.prefs.SetString(key, prefPrefix+base64.StdEncoding.EncodeToString(value))
	return nil
}

func (p *Preferences) Delete(_ context.Context, key string) error {
	p.prefs.RemoveValue(key)
	return nil
}
