package net

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gorilla/websocket"

	"EmojiArt/internal/state"
)

// Replacer receives compositions from a shared document. A document engine
// satisfies it.
type Replacer interface {
	ReplaceComposition(*state.Composition)
}

// LiveURL returns the websocket address following document id on the share
// server at addr.
func LiveURL(addr, id string) string {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/documents/" + url.PathEscape(id) + "/live"}
	return u.String()
}

// Mirror follows the document behind a share link and hands every
// composition it receives to dst. Undecodable frames are logged and
// skipped. It returns when ctx is done or the server goes away.
func Mirror(ctx context.Context, link string, dst Replacer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	addr, id, err := ParseLink(link)
	if err != nil {
		return err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, LiveURL(addr, id), nil)
	if err != nil {
		return fmt.Errorf("net: connect %s: %w", addr, err)
	}
	defer conn.Close()
	logger = logger.With("document", id, "host", addr)
	logger.Info("mirroring shared document")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == websocket.CloseNormalClosure {
				return nil
			}
			return fmt.Errorf("net: mirror %s: %w", id, err)
		}
		comp, err := state.Decode(data)
		if err != nil {
			logger.Warn("skipping unreadable frame", "error", err)
			continue
		}
		dst.ReplaceComposition(comp)
	}
}
