package ui

import (
	"context"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"EmojiArt/internal/document"
	"EmojiArt/internal/export"
	"EmojiArt/internal/state"
	"EmojiArt/internal/store"
)

// AppID identifies the application to fyne, which keys preferences by it.
const AppID = "io.emojiart.app"

// NewApp creates the fyne application. Its preferences can back a
// persist.Preferences substrate, so it is created before the store.
func NewApp() fyne.App {
	return app.NewWithID(AppID)
}

// Options configures the editor window.
type Options struct {
	Store     *store.Store
	Palettes  *state.PaletteBook
	EmojiSize float32
	Logger    *slog.Logger
	// ShareLink returns the share link for a document. Nil hides sharing.
	ShareLink func(id string) string
}

// Editor is the main window: the document chooser on the left and the open
// document with its palette bar on the right.
type Editor struct {
	opts    Options
	win     fyne.Window
	chooser *chooser
	bar     *PaletteBar
	bgEntry *widget.Entry
	body    *fyne.Container
	canvas  *CompositionCanvas
}

func NewEditor(a fyne.App, opts Options) *Editor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Palettes == nil {
		opts.Palettes = state.NewPaletteBook(nil)
	}
	ed := &Editor{opts: opts, win: a.NewWindow("Emoji Art")}
	ed.win.Resize(fyne.NewSize(1100, 768))

	ed.chooser = newChooser(opts.Store, ed.win, ed.open, ed.closed)
	ed.bar = NewPaletteBar(opts.Palettes, opts.EmojiSize, ed.addAtCenter, ed.dropAt)
	ed.bar.OnChange = ed.savePalettes

	ed.bgEntry = widget.NewEntry()
	ed.bgEntry.SetPlaceHolder("Background image URL")
	ed.bgEntry.OnSubmitted = ed.setBackground

	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.ZoomFitIcon(), func() { ed.withCanvas(func(c *CompositionCanvas) { c.ZoomToFit() }) }),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { ed.withEngine(func(e *document.Engine) { e.ZoomBy(wheelZoomStep) }) }),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { ed.withEngine(func(e *document.Engine) { e.ZoomBy(1 / wheelZoomStep) }) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DeleteIcon(), ed.deleteSelection),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), ed.exportPDF),
	)
	if opts.ShareLink != nil {
		tb.Append(widget.NewToolbarAction(theme.MailForwardIcon(), ed.copyShareLink))
	}

	top := container.NewBorder(nil, nil, tb, nil, ed.bgEntry)
	ed.body = container.NewStack(widget.NewLabel("Select or add a document"))
	right := container.NewBorder(container.NewVBox(top, ed.bar.Object()), nil, nil, nil, ed.body)

	split := container.NewHSplit(ed.chooser.root, right)
	split.Offset = 0.2
	ed.win.SetContent(split)
	ed.win.SetOnClosed(ed.shutdown)
	return ed
}

// ShowAndRun shows the window and runs the event loop.
func (ed *Editor) ShowAndRun() { ed.win.ShowAndRun() }

// SetPalettes replaces the palette book from any goroutine.
func (ed *Editor) SetPalettes(book *state.PaletteBook) {
	fyne.Do(func() { ed.bar.SetBook(book) })
}

func (ed *Editor) open(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	ed.release()
	e, err := ed.opts.Store.OpenDocument(ctx, id)
	if err != nil {
		dialog.ShowError(err, ed.win)
		return
	}
	ed.canvas = NewCompositionCanvas(e, ed.opts.EmojiSize, false)
	ed.bgEntry.SetText(e.Composition().Background)
	ed.body.Objects = []fyne.CanvasObject{ed.canvas}
	ed.body.Refresh()
	ed.win.Canvas().Focus(ed.canvas)
}

// closed is called after a document was removed from the store.
func (ed *Editor) closed(id string) {
	if ed.canvas != nil && ed.canvas.Engine().ID() == id {
		ed.canvas.Detach()
		ed.canvas = nil
		ed.bgEntry.SetText("")
		ed.body.Objects = []fyne.CanvasObject{widget.NewLabel("Select or add a document")}
		ed.body.Refresh()
	}
}

func (ed *Editor) release() {
	if ed.canvas == nil {
		return
	}
	id := ed.canvas.Engine().ID()
	ed.canvas.Detach()
	ed.canvas = nil
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := ed.opts.Store.Release(ctx, id); err != nil {
		ed.opts.Logger.Warn("release document", "document", id, "error", err)
	}
}

func (ed *Editor) shutdown() {
	ed.release()
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := ed.opts.Store.Close(ctx); err != nil {
		ed.opts.Logger.Warn("close store", "error", err)
	}
}

func (ed *Editor) withCanvas(fn func(*CompositionCanvas)) {
	if ed.canvas != nil {
		fn(ed.canvas)
	}
}

func (ed *Editor) withEngine(fn func(*document.Engine)) {
	ed.withCanvas(func(c *CompositionCanvas) { fn(c.Engine()) })
}

func (ed *Editor) addAtCenter(text string) {
	ed.withCanvas(func(c *CompositionCanvas) { c.AddAtCenter(text) })
}

func (ed *Editor) dropAt(text string, abs fyne.Position) {
	ed.withCanvas(func(c *CompositionCanvas) { c.DropAt(text, abs) })
}

func (ed *Editor) setBackground(locator string) {
	ed.withEngine(func(e *document.Engine) { e.SetBackground(locator) })
}

func (ed *Editor) deleteSelection() {
	ed.withEngine(func(e *document.Engine) {
		for _, id := range e.Selection() {
			e.RemoveEmoji(id)
		}
	})
}

func (ed *Editor) savePalettes(book *state.PaletteBook) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := ed.opts.Store.SavePalettes(ctx, book); err != nil {
		ed.opts.Logger.Warn("save palettes", "error", err)
	}
}

func (ed *Editor) copyShareLink() {
	ed.withEngine(func(e *document.Engine) {
		link := ed.opts.ShareLink(e.ID())
		ed.win.Clipboard().SetContent(link)
		dialog.ShowInformation("Share", fmt.Sprintf("Link copied:\n%s", link), ed.win)
	})
}

func (ed *Editor) exportPDF() {
	ed.withEngine(func(e *document.Engine) {
		dialog.ShowFileSave(func(w fyne.URIWriteCloser, err error) {
			if err != nil || w == nil {
				return
			}
			defer w.Close()
			snap := e.Snapshot()
			page := export.Page{Emojis: snap.Emojis}
			if snap.Background.Status == document.Loaded {
				page.Background = snap.Background.Data
			}
			if err := export.PDF(w, page, export.Options{Title: ed.opts.Store.Name(e.ID())}); err != nil {
				dialog.ShowError(err, ed.win)
			}
		}, ed.win)
	})
}

// RunViewer shows a read-only window following e, as used for share links.
func RunViewer(a fyne.App, e *document.Engine, title string, emojiSize float32) {
	w := a.NewWindow(title)
	w.Resize(fyne.NewSize(1024, 768))
	c := NewCompositionCanvas(e, emojiSize, true)
	w.SetContent(c)
	w.ShowAndRun()
}
