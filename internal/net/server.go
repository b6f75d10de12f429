package net

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"EmojiArt/internal/document"
	"EmojiArt/internal/export"
	"EmojiArt/internal/store"
)

// Server shares the documents of a store over HTTP. Viewers can list
// documents, fetch a composition or a PDF, and follow a document live over
// a websocket that receives the full composition after every edit.
type Server struct {
	store    *store.Store
	hub      *Hub
	logger   *slog.Logger
	router   *chi.Mux
	upgrader websocket.Upgrader

	mu       sync.Mutex
	watching map[string]watch
}

type watch struct {
	engine *document.Engine
	cancel func()
}

func NewServer(st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    st,
		hub:      NewHub(logger),
		logger:   logger,
		watching: make(map[string]watch),
		upgrader: websocket.Upgrader{
			// Share links are opened by native viewers, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleComposition)
			r.Get("/export.pdf", s.handleExport)
			r.Get("/live", s.handleLive)
		})
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the server's viewer hub.
func (s *Server) Hub() *Hub { return s.hub }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("net: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("share server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("net: serve: %w", err)
	}
	return nil
}

// Close disconnects all viewers and stops following documents.
func (s *Server) Close() {
	s.mu.Lock()
	for id, w := range s.watching {
		w.cancel()
		delete(s.watching, id)
	}
	s.mu.Unlock()
	s.hub.Close()
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs := s.store.Documents()
	if docs == nil {
		docs = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*document.Engine, bool) {
	id := chi.URLParam(r, "id")
	e, err := s.store.OpenDocument(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrUnknownDocument):
		writeError(w, http.StatusNotFound, err)
		return nil, false
	case err != nil:
		s.logger.Error("open document", "document", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return e, true
}

func (s *Server) handleComposition(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	data, err := e.Encode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	snap := e.Snapshot()
	page := export.Page{Emojis: snap.Emojis}
	if snap.Background.Status == document.Loaded {
		page.Background = snap.Background.Data
	}
	var buf bytes.Buffer
	if err := export.PDF(&buf, page, export.Options{Title: s.store.Name(snap.ID)}); err != nil {
		s.logger.Error("export", "document", snap.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(buf.Bytes())
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	id := e.ID()
	s.mu.Lock()
	v := s.hub.add(conn, id)
	s.followLocked(id, e)
	s.mu.Unlock()
	if data, err := e.Encode(); err == nil {
		s.hub.sendTo(v, data)
	}

	// Viewers never send frames; reading only notices the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.mu.Lock()
	if s.hub.remove(v) == 0 {
		s.unfollowLocked(id)
	}
	s.mu.Unlock()
}

// followLocked subscribes to e's changes unless already subscribed. A
// document that was released and reopened has a new engine, so the old
// subscription is replaced.
func (s *Server) followLocked(id string, e *document.Engine) {
	if w, ok := s.watching[id]; ok {
		if w.engine == e {
			return
		}
		w.cancel()
	}
	cancel := e.Subscribe(func(ev document.Event) {
		if ev.Kind != document.CompositionChanged {
			return
		}
		data, err := e.Encode()
		if err != nil {
			s.logger.Warn("encode for viewers", "document", id, "error", err)
			return
		}
		s.hub.Broadcast(id, data)
	})
	s.watching[id] = watch{engine: e, cancel: cancel}
}

func (s *Server) unfollowLocked(id string) {
	if w, ok := s.watching[id]; ok {
		w.cancel()
		delete(s.watching, id)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
