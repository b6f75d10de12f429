// Package state holds the durable emoji-art data: the composition (emoji
// list plus background locator), its identifier clock and JSON codec, and
// the emoji palettes offered for placement.
//
// A Composition is not safe for concurrent use; the document engine that
// owns it serializes access.
package state

import (
	"math"
	"slices"

	"github.com/google/uuid"
)

// Composition is a piece of emoji art: an optional background locator and
// an ordered list of emojis. Order is z-order, first drawn first.
type Composition struct {
	ID         string
	Background string
	emojis     []Emoji
	clock      Clock
}

// NewComposition returns an empty composition with a fresh identifier.
func NewComposition() *Composition {
	return NewCompositionWithID(uuid.NewString())
}

// NewCompositionWithID returns an empty composition with the given
// identifier.
func NewCompositionWithID(id string) *Composition {
	return &Composition{ID: id, emojis: []Emoji{}}
}

// AddEmoji appends an emoji and returns its id. Sizes below 1 are raised
// to 1. Empty text is rejected and reported as false.
func (c *Composition) AddEmoji(text string, x, y, size int) (int, bool) {
	if text == "" {
		return 0, false
	}
	id := c.clock.Tick()
	c.emojis = append(c.emojis, Emoji{
		ID:   id,
		Text: text,
		X:    x,
		Y:    y,
		Size: max(size, 1),
	})
	return id, true
}

// MoveEmoji shifts the emoji by (dx, dy). Unknown ids are ignored.
func (c *Composition) MoveEmoji(id, dx, dy int) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.emojis[i].X += dx
	c.emojis[i].Y += dy
	return true
}

// ScaleEmoji multiplies the emoji's size by factor, rounding half to even
// and never going below 1. Unknown ids and factors that are not finite
// positive numbers are ignored.
func (c *Composition) ScaleEmoji(id int, factor float64) bool {
	i := c.index(id)
	if i < 0 || !(factor > 0) || math.IsInf(factor, 0) {
		return false
	}
	c.emojis[i].Size = ScaledSize(c.emojis[i].Size, factor)
	return true
}

// ScaledSize is the size an emoji of the given size takes after scaling.
func ScaledSize(size int, factor float64) int {
	n := math.RoundToEven(float64(size) * factor)
	if n < 1 {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// RemoveEmoji deletes the emoji. Unknown ids are ignored. Callers holding a
// selection must drop the id from it themselves.
func (c *Composition) RemoveEmoji(id int) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.emojis = slices.Delete(c.emojis, i, i+1)
	return true
}

// SetBackground replaces the background locator; "" clears it.
func (c *Composition) SetBackground(locator string) {
	c.Background = locator
}

// Emoji returns the emoji with the given id.
func (c *Composition) Emoji(id int) (Emoji, bool) {
	i := c.index(id)
	if i < 0 {
		return Emoji{}, false
	}
	return c.emojis[i], true
}

// Contains reports whether an emoji with the given id exists.
func (c *Composition) Contains(id int) bool {
	return c.index(id) >= 0
}

// Emojis returns a copy of the emoji list in z-order.
func (c *Composition) Emojis() []Emoji {
	return slices.Clone(c.emojis)
}

// Len returns the number of emojis.
func (c *Composition) Len() int {
	return len(c.emojis)
}

// Clone returns a deep copy.
func (c *Composition) Clone() *Composition {
	cp := *c
	cp.emojis = slices.Clone(c.emojis)
	if cp.emojis == nil {
		cp.emojis = []Emoji{}
	}
	return &cp
}

// Equal reports whether two compositions have the same background and the
// same ordered emoji content. Identifiers of the compositions themselves
// are not compared.
func (c *Composition) Equal(o *Composition) bool {
	if c.Background != o.Background || len(c.emojis) != len(o.emojis) {
		return false
	}
	for i := range c.emojis {
		a, b := c.emojis[i], o.emojis[i]
		if a.Text != b.Text || a.X != b.X || a.Y != b.Y || a.Size != b.Size {
			return false
		}
	}
	return true
}

func (c *Composition) index(id int) int {
	return slices.IndexFunc(c.emojis, func(e Emoji) bool { return e.ID == id })
}
