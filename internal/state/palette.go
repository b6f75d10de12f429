package state

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rivo/uniseg"
)

// Palette is a named set of emojis offered for dragging onto a composition.
// Emojis holds each glyph once, in display order.
type Palette struct {
	Name   string `json:"name" yaml:"name" toml:"name"`
	Emojis string `json:"emojis" yaml:"emojis" toml:"emojis"`
}

// Glyphs splits the palette into its individual emojis.
func (p Palette) Glyphs() []string {
	return Glyphs(p.Emojis)
}

// Glyphs splits s into grapheme clusters, so a flag or a skin-toned face
// stays one glyph.
func Glyphs(s string) []string {
	var out []string
	state := -1
	for len(s) > 0 {
		var cluster string
		cluster, s, _, state = uniseg.FirstGraphemeClusterInString(s, state)
		out = append(out, cluster)
	}
	return out
}

// IsSingleGlyph reports whether s is exactly one grapheme cluster that is
// not whitespace.
func IsSingleGlyph(s string) bool {
	return uniseg.GraphemeClusterCount(s) == 1 && strings.TrimSpace(s) != ""
}

func uniqueGlyphs(s string) string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, g := range Glyphs(s) {
		if seen[g] || strings.TrimSpace(g) == "" {
			continue
		}
		seen[g] = true
		b.WriteString(g)
	}
	return b.String()
}

// DefaultPalettes returns the built-in palettes.
func DefaultPalettes() []Palette {
	return []Palette{
		{Name: "Favorites", Emojis: "🦁🐸🐤🍅🍎🎱🥎🏀💣🧨"},
		{Name: "Weather", Emojis: "⭐️⛈🌏🌈☀️❄️🌪🌊"},
		{Name: "Animals", Emojis: "🐶🐱🐹🐰🦊🐼🐨🐯🐸🐵🐞🦋🐢🐍🦖🦕"},
		{Name: "Food", Emojis: "🍏🍎🍐🍊🍋🍌🍉🍇🍓🍈🍒🍑🥭🍍🥥🥝🍅🥑🥦🥨"},
		{Name: "Faces", Emojis: "😀😃😄😁😆😅😂🤣😊😇🙂🙃😉😌😍🥰😘😙😚😋😛"},
		{Name: "Activities", Emojis: "⚽️🏀🏈⚾️🥎🎾🏐🏉🥏🏓🏸🥅⛳️"},
	}
}

// PaletteBook is the ordered list of palettes shared by all documents.
type PaletteBook struct {
	palettes []Palette
}

// NewPaletteBook builds a book from the given palettes, normalizing each
// palette's emojis. An empty list yields the defaults.
func NewPaletteBook(palettes []Palette) *PaletteBook {
	if len(palettes) == 0 {
		palettes = DefaultPalettes()
	}
	b := &PaletteBook{palettes: make([]Palette, 0, len(palettes))}
	for _, p := range palettes {
		p.Emojis = uniqueGlyphs(p.Emojis)
		b.palettes = append(b.palettes, p)
	}
	return b
}

// Len returns the number of palettes.
func (b *PaletteBook) Len() int { return len(b.palettes) }

// Palettes returns a copy of all palettes in order.
func (b *PaletteBook) Palettes() []Palette { return slices.Clone(b.palettes) }

// Palette returns the palette at index i.
func (b *PaletteBook) Palette(i int) (Palette, bool) {
	if i < 0 || i >= len(b.palettes) {
		return Palette{}, false
	}
	return b.palettes[i], true
}

// Next returns the index after i, wrapping to the first palette.
func (b *PaletteBook) Next(i int) int {
	if len(b.palettes) == 0 {
		return -1
	}
	if i < 0 || i >= len(b.palettes)-1 {
		return 0
	}
	return i + 1
}

// Prev returns the index before i, wrapping to the last palette.
func (b *PaletteBook) Prev(i int) int {
	if len(b.palettes) == 0 {
		return -1
	}
	if i <= 0 || i >= len(b.palettes) {
		return len(b.palettes) - 1
	}
	return i - 1
}

// Rename sets the name of palette i.
func (b *PaletteBook) Rename(i int, name string) bool {
	if i < 0 || i >= len(b.palettes) {
		return false
	}
	b.palettes[i].Name = name
	return true
}

// AddEmojis puts the glyphs of emojis at the front of palette i, dropping
// any the palette already has.
func (b *PaletteBook) AddEmojis(i int, emojis string) bool {
	if i < 0 || i >= len(b.palettes) {
		return false
	}
	b.palettes[i].Emojis = uniqueGlyphs(emojis + b.palettes[i].Emojis)
	return true
}

// RemoveEmoji drops every glyph of emojis from palette i.
func (b *PaletteBook) RemoveEmoji(i int, emojis string) bool {
	if i < 0 || i >= len(b.palettes) {
		return false
	}
	drop := make(map[string]bool)
	for _, g := range Glyphs(emojis) {
		drop[g] = true
	}
	var kept strings.Builder
	for _, g := range b.palettes[i].Glyphs() {
		if !drop[g] {
			kept.WriteString(g)
		}
	}
	b.palettes[i].Emojis = kept.String()
	return true
}

// Encode serializes the book as JSON.
func (b *PaletteBook) Encode() ([]byte, error) {
	data, err := json.Marshal(b.palettes)
	if err != nil {
		return nil, fmt.Errorf("state: encode palettes: %w", err)
	}
	return data, nil
}

// DecodePaletteBook parses data produced by Encode. Absent or corrupt data
// yields the default palettes; the error reports corruption only.
func DecodePaletteBook(data []byte) (*PaletteBook, error) {
	if len(data) == 0 {
		return NewPaletteBook(nil), nil
	}
	var palettes []Palette
	if err := json.Unmarshal(data, &palettes); err != nil {
		return NewPaletteBook(nil), fmt.Errorf("%w: palettes: %v", ErrCorrupt, err)
	}
	return NewPaletteBook(palettes), nil
}
