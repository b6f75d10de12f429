// Package export renders a composition to PDF.
package export

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"EmojiArt/internal/fetch"
	"EmojiArt/internal/state"
)

const (
	pageMargin  = 10.0 // mm
	emptyExtent = 100.0
	bgImageName = "background"
)

// Options controls the page. Zero values pick A4 portrait.
type Options struct {
	PageSize    string
	Orientation string
	Title       string
	// FontFile is a UTF-8 TrueType font used to draw emoji glyphs. Without
	// one each emoji is drawn as a box labelled with its code points, since
	// the PDF core fonts have no emoji.
	FontFile string
	// Created fixes the document's creation date, mostly for tests.
	Created time.Time
}

// Page is what gets exported: the composition and, when loaded, the
// background image bytes in any supported format.
type Page struct {
	Emojis     []state.Emoji
	Background []byte
}

type bounds struct {
	minX, minY, maxX, maxY float64
	empty                  bool
}

func (b *bounds) add(x0, y0, x1, y1 float64) {
	if b.empty {
		*b = bounds{minX: x0, minY: y0, maxX: x1, maxY: y1}
		return
	}
	b.minX, b.minY = min(b.minX, x0), min(b.minY, y0)
	b.maxX, b.maxY = max(b.maxX, x1), max(b.maxY, y1)
}

// PDF writes page to w. Composition coordinates are centered on the
// origin; the page is laid out so that the background and every emoji fit
// inside the margins at a single uniform scale.
func PDF(w io.Writer, page Page, opts Options) error {
	if opts.PageSize == "" {
		opts.PageSize = "A4"
	}
	if opts.Orientation == "" {
		opts.Orientation = "P"
	}
	p := gofpdf.New(opts.Orientation, "mm", opts.PageSize, "")
	p.SetCreator("EmojiArt", false)
	if opts.Title != "" {
		p.SetTitle(opts.Title, true)
	}
	if !opts.Created.IsZero() {
		p.SetCreationDate(opts.Created)
	}
	p.AddPage()

	var bgPNG []byte
	var bgW, bgH float64
	if len(page.Background) > 0 {
		img, _, err := fetch.Decode(page.Background)
		if err != nil {
			return fmt.Errorf("export: background: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("export: background: %w", err)
		}
		bgPNG = buf.Bytes()
		r := img.Bounds()
		bgW, bgH = float64(r.Dx()), float64(r.Dy())
	}

	b := bounds{empty: true}
	if bgPNG != nil {
		b.add(-bgW/2, -bgH/2, bgW/2, bgH/2)
	}
	for _, e := range page.Emojis {
		half := float64(e.Size) / 2
		b.add(float64(e.X)-half, float64(e.Y)-half, float64(e.X)+half, float64(e.Y)+half)
	}
	if b.empty {
		b = bounds{minX: -emptyExtent / 2, minY: -emptyExtent / 2, maxX: emptyExtent / 2, maxY: emptyExtent / 2}
	}

	pw, ph := p.GetPageSize()
	availW, availH := pw-2*pageMargin, ph-2*pageMargin
	scale := min(availW/(b.maxX-b.minX), availH/(b.maxY-b.minY))
	offX := pageMargin + (availW-(b.maxX-b.minX)*scale)/2
	offY := pageMargin + (availH-(b.maxY-b.minY)*scale)/2
	toPage := func(x, y float64) (float64, float64) {
		return offX + (x-b.minX)*scale, offY + (y-b.minY)*scale
	}

	if bgPNG != nil {
		opt := gofpdf.ImageOptions{ImageType: "PNG", AllowNegativePosition: true}
		p.RegisterImageOptionsReader(bgImageName, opt, bytes.NewReader(bgPNG))
		x, y := toPage(-bgW/2, -bgH/2)
		p.ImageOptions(bgImageName, x, y, bgW*scale, bgH*scale, false, opt, 0, "")
	}

	glyphs := opts.FontFile != ""
	if glyphs {
		p.AddUTF8Font("emoji", "", opts.FontFile)
	}
	p.SetDrawColor(0, 0, 0)
	p.SetLineWidth(0.2)
	for _, e := range page.Emojis {
		size := float64(e.Size) * scale
		x, y := toPage(float64(e.X)-float64(e.Size)/2, float64(e.Y)-float64(e.Size)/2)
		if glyphs {
			p.SetFont("emoji", "", 12)
			p.SetFontUnitSize(size)
			p.Text(x, y+size*0.8, e.Text)
			continue
		}
		p.Rect(x, y, size, size, "D")
		p.SetFont("Helvetica", "", 6)
		p.Text(x, y+size+2, codePoints(e.Text))
	}

	if err := p.Error(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return p.Output(w)
}

// PDFFile writes page to a new file at path.
func PDFFile(path string, page Page, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := PDF(f, page, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func codePoints(s string) string {
	parts := make([]string, 0, len(s))
	for _, r := range s {
		parts = append(parts, fmt.Sprintf("%U", r))
	}
	return strings.Join(parts, " ")
}
