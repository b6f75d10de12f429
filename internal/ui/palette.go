package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"EmojiArt/internal/state"
)

// paletteItem is one emoji in the palette bar. Tapping it adds the emoji at
// the canvas center; dragging it onto the canvas drops it there.
type paletteItem struct {
	widget.BaseWidget
	text   string
	size   float32
	onTap  func(string)
	onDrop func(string, fyne.Position)
	last   fyne.Position
}

func newPaletteItem(text string, size float32, onTap func(string), onDrop func(string, fyne.Position)) *paletteItem {
	p := &paletteItem{text: text, size: size, onTap: onTap, onDrop: onDrop}
	p.ExtendBaseWidget(p)
	return p
}

func (p *paletteItem) CreateRenderer() fyne.WidgetRenderer {
	t := canvas.NewText(p.text, theme.Color(theme.ColorNameForeground))
	t.TextSize = p.size
	t.Alignment = fyne.TextAlignCenter
	return widget.NewSimpleRenderer(t)
}

func (p *paletteItem) Tapped(*fyne.PointEvent) {
	if p.onTap != nil {
		p.onTap(p.text)
	}
}

func (p *paletteItem) Dragged(ev *fyne.DragEvent) { p.last = ev.AbsolutePosition }

func (p *paletteItem) DragEnd() {
	if p.onDrop != nil {
		p.onDrop(p.text, p.last)
	}
}

// PaletteBar shows one palette of a book at a time with buttons to cycle
// through them, and lets the user add emojis to the current palette.
type PaletteBar struct {
	book    *state.PaletteBook
	current int
	size    float32

	onTap  func(string)
	onDrop func(string, fyne.Position)
	// OnChange is called after the book was edited.
	OnChange func(*state.PaletteBook)

	name  *widget.Label
	items *fyne.Container
	entry *widget.Entry
	root  fyne.CanvasObject
}

func NewPaletteBar(book *state.PaletteBook, size float32, onTap func(string), onDrop func(string, fyne.Position)) *PaletteBar {
	b := &PaletteBar{book: book, size: size, onTap: onTap, onDrop: onDrop}
	b.name = widget.NewLabel("")
	b.items = container.NewHBox()
	b.entry = widget.NewEntry()
	b.entry.SetPlaceHolder("Add emojis")
	b.entry.OnSubmitted = func(s string) { b.addEmojis(s) }

	prev := widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() { b.Show(b.book.Prev(b.current)) })
	next := widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() { b.Show(b.book.Next(b.current)) })
	add := widget.NewButtonWithIcon("", theme.ContentAddIcon(), func() { b.addEmojis(b.entry.Text) })
	entryBox := container.NewGridWrap(fyne.NewSize(140, 36), b.entry)

	b.root = container.NewBorder(nil, nil,
		container.NewHBox(prev, b.name, next),
		container.NewHBox(entryBox, add),
		container.NewHScroll(b.items),
	)
	b.Show(0)
	return b
}

// Object returns the bar's canvas object.
func (b *PaletteBar) Object() fyne.CanvasObject { return b.root }

// Book returns the palette book being shown.
func (b *PaletteBar) Book() *state.PaletteBook { return b.book }

// SetBook replaces the book, e.g. after a config reload.
func (b *PaletteBar) SetBook(book *state.PaletteBook) {
	b.book = book
	b.Show(b.current)
}

// Show switches to palette i.
func (b *PaletteBar) Show(i int) {
	p, ok := b.book.Palette(i)
	if !ok {
		i = 0
		p, _ = b.book.Palette(0)
	}
	b.current = i
	b.name.SetText(p.Name)

	objs := make([]fyne.CanvasObject, 0)
	for _, g := range p.Glyphs() {
		objs = append(objs, container.NewGridWrap(fyne.NewSize(b.size, b.size), newPaletteItem(g, b.size*0.8, b.onTap, b.onDrop)))
	}
	b.items.Objects = objs
	b.items.Refresh()
}

func (b *PaletteBar) addEmojis(s string) {
	if !b.book.AddEmojis(b.current, s) {
		return
	}
	b.entry.SetText("")
	b.Show(b.current)
	if b.OnChange != nil {
		b.OnChange(b.book)
	}
}
