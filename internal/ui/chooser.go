package ui

import (
	"context"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"EmojiArt/internal/store"
)

const storeTimeout = 5 * time.Second

// chooser lists the store's documents and edits the index: add, remove,
// rename. Selecting a row opens that document.
type chooser struct {
	store  *store.Store
	win    fyne.Window
	list   *widget.List
	docs   []store.Entry
	picked string
	onOpen func(id string)
	onGone func(id string)
	root   fyne.CanvasObject
}

func newChooser(st *store.Store, win fyne.Window, onOpen, onGone func(string)) *chooser {
	c := &chooser{store: st, win: win, onOpen: onOpen, onGone: onGone}
	c.docs = st.Documents()
	c.list = widget.NewList(
		func() int { return len(c.docs) },
		func() fyne.CanvasObject { return widget.NewLabel("Untitled 000") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(c.store.Name(c.docs[i].ID))
		},
	)
	c.list.OnSelected = func(i widget.ListItemID) {
		if i >= 0 && i < len(c.docs) {
			c.picked = c.docs[i].ID
			c.onOpen(c.picked)
		}
	}

	tb := widget.NewToolbar(
		widget.NewToolbarAction(theme.ContentAddIcon(), c.add),
		widget.NewToolbarAction(theme.DocumentCreateIcon(), c.rename),
		widget.NewToolbarAction(theme.DeleteIcon(), c.remove),
	)
	c.root = container.NewBorder(tb, nil, nil, nil, c.list)
	return c
}

func (c *chooser) reload() {
	c.docs = c.store.Documents()
	c.list.Refresh()
}

func (c *chooser) selected() (store.Entry, bool) {
	for _, d := range c.docs {
		if d.ID == c.picked {
			return d, true
		}
	}
	return store.Entry{}, false
}

func (c *chooser) add() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	id, err := c.store.AddDocument(ctx)
	if err != nil {
		dialog.ShowError(err, c.win)
		return
	}
	c.reload()
	for i, d := range c.docs {
		if d.ID == id {
			c.list.Select(i)
		}
	}
}

func (c *chooser) rename() {
	d, ok := c.selected()
	if !ok {
		return
	}
	entry := widget.NewEntry()
	entry.SetText(c.store.Name(d.ID))
	dialog.ShowForm("Rename document", "Rename", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Name", entry)},
		func(ok bool) {
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := c.store.SetName(ctx, entry.Text, d.ID); err != nil {
				dialog.ShowError(err, c.win)
			}
			c.reload()
		}, c.win)
}

func (c *chooser) remove() {
	d, ok := c.selected()
	if !ok {
		return
	}
	dialog.ShowConfirm("Delete document", "Delete \""+c.store.Name(d.ID)+"\"?", func(ok bool) {
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := c.store.RemoveDocument(ctx, d.ID); err != nil {
			dialog.ShowError(err, c.win)
			return
		}
		c.picked = ""
		c.list.UnselectAll()
		c.reload()
		c.onGone(d.ID)
	}, c.win)
}
