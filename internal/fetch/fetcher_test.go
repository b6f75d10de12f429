package fetch

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetchHTTP(t *testing.T) {
	body := pngBytes(t, 4, 2)
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "test-agent"})
	got, err := f.Fetch(context.Background(), srv.URL+"/bg.png")
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.Equal(t, "test-agent", gotUA)
}

func TestFetchHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	_, err := New(Config{MaxBytes: 16}).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := New(Config{}).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bg.png")
	body := pngBytes(t, 3, 3)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	got, err := New(Config{}).Fetch(context.Background(), "file://"+filepath.ToSlash(path))
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetchUnsupportedScheme(t *testing.T) {
	_, err := New(Config{}).Fetch(context.Background(), "ftp://example.com/a.png")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}

func TestInspect(t *testing.T) {
	info, err := Inspect(pngBytes(t, 200, 100))
	require.NoError(t, err)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, fyne.NewSize(200, 100), info.Size)

	_, err = Inspect([]byte("not an image"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestImageURL(t *testing.T) {
	tests := map[string]string{
		"https://example.com/cat.jpg":  "https://example.com/cat.jpg",
		"  https://example.com/a.png ": "https://example.com/a.png",
		"https://www.google.com/imgres?imgurl=https%3A%2F%2Fupload.example.org%2Fdog.png&imgrefurl=x": "https://upload.example.org/dog.png",
		"https://www.google.com/imgres?imgurl=relative.png": "https://www.google.com/imgres?imgurl=relative.png",
	}
	for in, want := range tests {
		assert.Equal(t, want, ImageURL(in), in)
	}
}
