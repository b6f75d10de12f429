package fetch

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strings"

	"fyne.io/fyne/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned by Inspect for bytes no registered decoder
// accepts.
var ErrNotImage = errors.New("fetch: data is not a supported image")

// ImageInfo describes decoded image bytes.
type ImageInfo struct {
	Format string
	Size   fyne.Size
}

// Inspect reads the image header in data.
func Inspect(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return ImageInfo{
		Format: format,
		Size:   fyne.NewSize(float32(cfg.Width), float32(cfg.Height)),
	}, nil
}

// Decode fully decodes data.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return img, format, nil
}

// ImageURL resolves a dropped or pasted locator to the image it points at.
// Image search result links carry the real image in an "imgurl" query
// parameter; other locators are returned trimmed and otherwise unchanged.
func ImageURL(locator string) string {
	locator = strings.TrimSpace(locator)
	u, err := url.Parse(locator)
	if err != nil {
		return locator
	}
	if inner := u.Query().Get("imgurl"); inner != "" {
		if iu, err := url.Parse(inner); err == nil && iu.IsAbs() {
			return iu.String()
		}
	}
	return locator
}
