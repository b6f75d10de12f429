package net

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

// viewer is one websocket watching one document. Frames are queued on send
// and written by the viewer's own goroutine.
type viewer struct {
	conn *websocket.Conn
	doc  string
	send chan []byte
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() { close(v.send) })
}

// Hub tracks live viewers per document and fans frames out to them.
type Hub struct {
	mu      sync.RWMutex
	viewers map[*viewer]bool
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{viewers: make(map[*viewer]bool), logger: logger}
}

func (h *Hub) add(conn *websocket.Conn, doc string) *viewer {
	v := &viewer{conn: conn, doc: doc, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.viewers[v] = true
	h.mu.Unlock()
	h.logger.Info("viewer connected", "document", doc, "remote", conn.RemoteAddr().String())
	go h.writeLoop(v)
	return v
}

// remove drops v and returns how many viewers its document still has.
func (h *Hub) remove(v *viewer) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.viewers[v] {
		delete(h.viewers, v)
		v.close()
		h.logger.Info("viewer disconnected", "document", v.doc, "remote", v.conn.RemoteAddr().String())
	}
	return h.countLocked(v.doc)
}

// Broadcast queues data for every viewer of doc. A viewer whose queue is
// full is disconnected rather than allowed to stall the others.
func (h *Hub) Broadcast(doc string, data []byte) {
	var slow []*viewer
	h.mu.RLock()
	for v := range h.viewers {
		if v.doc != doc {
			continue
		}
		select {
		case v.send <- data:
		default:
			slow = append(slow, v)
		}
	}
	h.mu.RUnlock()
	for _, v := range slow {
		h.logger.Warn("dropping slow viewer", "document", doc)
		h.remove(v)
	}
}

func (h *Hub) sendTo(v *viewer, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.viewers[v] {
		return
	}
	select {
	case v.send <- data:
	default:
	}
}

// Count returns the number of viewers watching doc.
func (h *Hub) Count(doc string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked(doc)
}

func (h *Hub) countLocked(doc string) int {
	n := 0
	for v := range h.viewers {
		if v.doc == doc {
			n++
		}
	}
	return n
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.viewers {
		delete(h.viewers, v)
		v.close()
	}
}

func (h *Hub) writeLoop(v *viewer) {
	defer v.conn.Close()
	for data := range v.send {
		v.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("viewer write failed", "document", v.doc, "error", err)
			h.remove(v)
			return
		}
	}
	v.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
