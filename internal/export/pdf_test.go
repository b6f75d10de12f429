package export

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EmojiArt/internal/state"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestPDF(t *testing.T) {
	tests := []struct {
		name string
		page Page
	}{
		{name: "empty", page: Page{}},
		{name: "emojis only", page: Page{Emojis: []state.Emoji{
			{ID: 0, Text: "🦁", X: -50, Y: 20, Size: 40},
			{ID: 1, Text: "🏳️‍🌈", X: 300, Y: -80, Size: 1},
		}}},
		{name: "background", page: Page{
			Background: jpegBytes(t, 64, 32),
			Emojis:     []state.Emoji{{ID: 3, Text: "🐸", X: 0, Y: 0, Size: 12}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := PDF(&buf, tt.page, Options{Title: "Beach", Created: time.Unix(0, 0)})
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
		})
	}
}

func TestPDFRejectsBrokenBackground(t *testing.T) {
	var buf bytes.Buffer
	err := PDF(&buf, Page{Background: []byte("not an image")}, Options{})
	assert.Error(t, err)
}

func TestPDFFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "art.pdf")
	require.NoError(t, PDFFile(path, Page{Emojis: []state.Emoji{{Text: "🍎", Size: 40}}}, Options{Orientation: "L"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestCodePoints(t *testing.T) {
	assert.Equal(t, "U+1F981", codePoints("🦁"))
	assert.Equal(t, "U+2600 U+FE0F", codePoints("☀️"))
}
