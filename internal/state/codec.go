package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrCorrupt is reported by Decode when the input could not be parsed. The
// composition returned alongside it is empty and usable.
var ErrCorrupt = errors.New("state: corrupt composition data")

type compositionJSON struct {
	ID          string  `json:"id"`
	Background  string  `json:"backgroundURL,omitempty"`
	Emojis      []Emoji `json:"emojis"`
	NextEmojiID int     `json:"nextEmojiID"`
}

// Encode serializes the composition as indented JSON.
func (c *Composition) Encode() ([]byte, error) {
	emojis := c.emojis
	if emojis == nil {
		emojis = []Emoji{}
	}
	data, err := json.MarshalIndent(compositionJSON{
		ID:          c.ID,
		Background:  c.Background,
		Emojis:      emojis,
		NextEmojiID: c.clock.Peek(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("state: encode composition: %w", err)
	}
	return data, nil
}

// Decode parses data produced by Encode. It always returns a usable
// composition: absent input yields an empty one without error, corrupt
// input yields an empty one and an error wrapping ErrCorrupt. Duplicate or
// negative emoji ids are reassigned so that ids stay unique.
func Decode(data []byte) (*Composition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewComposition(), nil
	}
	var raw compositionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewComposition(), fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	id := raw.ID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	c := NewCompositionWithID(id)
	c.Background = raw.Background
	c.clock.Update(raw.NextEmojiID - 1)

	seen := make(map[int]bool, len(raw.Emojis))
	var reassign []int
	for _, e := range raw.Emojis {
		if e.Text == "" {
			continue
		}
		e.Size = max(e.Size, 1)
		if e.ID < 0 || seen[e.ID] {
			reassign = append(reassign, len(c.emojis))
		} else {
			seen[e.ID] = true
			c.clock.Update(e.ID)
		}
		c.emojis = append(c.emojis, e)
	}
	for _, i := range reassign {
		c.emojis[i].ID = c.clock.Tick()
	}
	return c, nil
}
