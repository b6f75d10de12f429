package state

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, c *Composition, text string, x, y, size int) int {
	t.Helper()
	id, ok := c.AddEmoji(text, x, y, size)
	require.True(t, ok)
	return id
}

func TestAddEmojiAllocatesIncreasingIDs(t *testing.T) {
	c := NewComposition()
	a := mustAdd(t, c, "🦁", 0, 0, 40)
	b := mustAdd(t, c, "🐸", 10, 10, 40)
	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)

	c.RemoveEmoji(b)
	d := mustAdd(t, c, "🐤", 5, 5, 40)
	assert.Equal(t, 2, d, "retired id must not be reused")
}

func TestAddEmojiRejectsEmptyText(t *testing.T) {
	c := NewComposition()
	_, ok := c.AddEmoji("", 1, 2, 3)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, mustAdd(t, c, "x", 1, 2, 3), "a rejected add must not consume an id")

	data, err := c.Encode()
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, c.Equal(got))
	assert.Equal(t, c.Emojis(), got.Emojis())
}

func TestAddEmojiClampsSize(t *testing.T) {
	c := NewComposition()
	id := mustAdd(t, c, "🍅", 0, 0, 0)
	e, ok := c.Emoji(id)
	require.True(t, ok)
	assert.Equal(t, 1, e.Size)
}

func TestIDsStayUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := NewComposition()
	var live []int
	for range 500 {
		if len(live) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(live))
			c.RemoveEmoji(live[i])
			live = append(live[:i], live[i+1:]...)
			continue
		}
		live = append(live, mustAdd(t, c, "🎱", rng.Intn(100), rng.Intn(100), 40))
	}

	seen := make(map[int]bool)
	for _, e := range c.Emojis() {
		require.False(t, seen[e.ID], "duplicate id %d", e.ID)
		seen[e.ID] = true
	}
	assert.Len(t, seen, len(live))
}

func TestMoveEmojiAccumulates(t *testing.T) {
	c := NewComposition()
	a := mustAdd(t, c, "🏀", 3, 4, 40)
	b := mustAdd(t, c, "🏀", 3, 4, 40)

	c.MoveEmoji(a, 5, -2)
	c.MoveEmoji(a, -1, 7)
	c.MoveEmoji(b, 4, 5)

	ea, _ := c.Emoji(a)
	eb, _ := c.Emoji(b)
	assert.Equal(t, eb.X, ea.X)
	assert.Equal(t, eb.Y, ea.Y)
	assert.Equal(t, 7, ea.X)
	assert.Equal(t, 9, ea.Y)
}

func TestMissingIDsAreNoOps(t *testing.T) {
	c := NewComposition()
	id := mustAdd(t, c, "💣", 1, 1, 10)
	before := c.Emojis()

	assert.False(t, c.MoveEmoji(id+1, 5, 5))
	assert.False(t, c.ScaleEmoji(id+1, 2))
	assert.False(t, c.RemoveEmoji(id+1))
	assert.Equal(t, before, c.Emojis())
}

func TestScaleEmojiRoundsHalfToEven(t *testing.T) {
	tests := []struct {
		size   int
		factor float64
		want   int
	}{
		{40, 1.5, 60},
		{5, 0.5, 2},    // 2.5 rounds to 2
		{7, 0.5, 4},    // 3.5 rounds to 4
		{10, 1.25, 12}, // 12.5 rounds to 12
		{40, 0.001, 1},
		{1, 1e-12, 1},
	}
	for _, tt := range tests {
		c := NewComposition()
		id := mustAdd(t, c, "🧨", 0, 0, tt.size)
		c.ScaleEmoji(id, tt.factor)
		e, _ := c.Emoji(id)
		assert.Equal(t, tt.want, e.Size, "size %d * %v", tt.size, tt.factor)
	}
}

func TestScaleEmojiNeverBelowOne(t *testing.T) {
	c := NewComposition()
	id := mustAdd(t, c, "🧨", 0, 0, 40)
	for f := 0.9; f > 1e-9; f /= 3 {
		c.ScaleEmoji(id, f)
		e, _ := c.Emoji(id)
		require.GreaterOrEqual(t, e.Size, 1)
	}
}

func TestScaleEmojiIgnoresInvalidFactors(t *testing.T) {
	c := NewComposition()
	id := mustAdd(t, c, "🧨", 0, 0, 40)
	for _, f := range []float64{0, -2, math.NaN(), math.Inf(1)} {
		assert.False(t, c.ScaleEmoji(id, f))
	}
	e, _ := c.Emoji(id)
	assert.Equal(t, 40, e.Size)
}

func TestRoundTrip(t *testing.T) {
	c := NewComposition()
	c.SetBackground("https://example.com/bg.jpg")
	c.AddEmoji("🦁", -20, 15, 40)
	c.AddEmoji("👍🏽", 100, -3, 12)
	c.AddEmoji("🇫🇷", 0, 0, 80)
	c.RemoveEmoji(1)

	data, err := c.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.True(t, c.Equal(got))
	assert.Equal(t, c.Emojis(), got.Emojis())

	// The clock survives, so the next id is still fresh.
	assert.Equal(t, 3, mustAdd(t, got, "🐸", 0, 0, 10))
}

func TestRoundTripEmpty(t *testing.T) {
	c := NewComposition()
	data, err := c.Encode()
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, c.Equal(got))
	assert.Empty(t, got.Background)
	assert.Equal(t, 0, got.Len())
}

func TestDecodeDegradesToEmpty(t *testing.T) {
	for _, in := range [][]byte{nil, []byte(""), []byte("   ")} {
		c, err := Decode(in)
		require.NoError(t, err)
		assert.Equal(t, 0, c.Len())
		_, perr := uuid.Parse(c.ID)
		assert.NoError(t, perr)
	}

	c, err := Decode([]byte(`{"emojis": [`))
	assert.ErrorIs(t, err, ErrCorrupt)
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
	assert.NotEmpty(t, c.ID)

	other, _ := Decode([]byte("garbage"))
	assert.NotEqual(t, c.ID, other.ID, "each degraded composition gets a fresh id")
}

func TestDecodeRepairsIDs(t *testing.T) {
	in := []byte(`{
		"id": "not-a-uuid",
		"emojis": [
			{"id": 4, "text": "🦁", "x": 1, "y": 2, "size": 40},
			{"id": 4, "text": "🐸", "x": 3, "y": 4, "size": 0},
			{"id": -1, "text": "🐤", "x": 5, "y": 6, "size": 10},
			{"id": 9, "text": "", "x": 0, "y": 0, "size": 10}
		]
	}`)
	c, err := Decode(in)
	require.NoError(t, err)
	_, perr := uuid.Parse(c.ID)
	assert.NoError(t, perr)

	emojis := c.Emojis()
	require.Len(t, emojis, 3)
	assert.Equal(t, []string{"🦁", "🐸", "🐤"}, []string{emojis[0].Text, emojis[1].Text, emojis[2].Text})
	assert.Equal(t, 4, emojis[0].ID)
	assert.Equal(t, 5, emojis[1].ID)
	assert.Equal(t, 6, emojis[2].ID)
	assert.Equal(t, 1, emojis[1].Size)
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewComposition()
	id := mustAdd(t, c, "🎱", 0, 0, 40)
	cp := c.Clone()
	c.MoveEmoji(id, 10, 10)

	e, _ := cp.Emoji(id)
	assert.Equal(t, 0, e.X)
	assert.Equal(t, c.ID, cp.ID)
}
