package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"golang.org/x/sync/errgroup"

	"EmojiArt/internal/config"
	"EmojiArt/internal/document"
	"EmojiArt/internal/export"
	"EmojiArt/internal/fetch"
	share "EmojiArt/internal/net"
	"EmojiArt/internal/persist"
	"EmojiArt/internal/state"
	"EmojiArt/internal/store"
	"EmojiArt/internal/ui"
)

type flags struct {
	config   string
	serve    bool
	discover bool
	export   string
	output   string
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "config file (.yaml, .yml or .toml)")
	flag.BoolVar(&f.serve, "serve", false, "run the share server without a window")
	flag.BoolVar(&f.discover, "discover", false, "list share servers on the local network and exit")
	flag.StringVar(&f.export, "export", "", "export the document with this id to PDF and exit")
	flag.StringVar(&f.output, "o", "emojiart.pdf", "output file for -export")
	flag.Parse()

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	level := new(slog.LevelVar)
	logger := cfg.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case flag.NArg() > 0 && strings.HasPrefix(flag.Arg(0), share.Scheme):
		err = runViewer(ctx, cfg, logger, flag.Arg(0))
	case f.discover:
		err = runDiscover(ctx)
	case f.export != "":
		err = runExport(ctx, cfg, logger, f.export, f.output)
	case f.serve:
		err = runServer(ctx, cfg, logger, level, f.config)
	default:
		err = runEditor(ctx, cfg, logger, level, f.config)
	}
	if err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

// openSubstrate opens the configured backend. prefs is only available when
// a window is shown.
func openSubstrate(cfg *config.Config, prefs fyne.Preferences, logger *slog.Logger) (persist.Substrate, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return persist.NewMemory(), func() {}, nil
	case config.BackendPreferences:
		if prefs == nil {
			return nil, nil, errors.New("preferences backend needs the desktop app")
		}
		return persist.NewPreferences(prefs, logger), func() {}, nil
	default:
		path, err := cfg.DatabasePath()
		if err != nil {
			return nil, nil, err
		}
		db, err := persist.OpenSQLite(path, persist.WithMkdirAll())
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, sub persist.Substrate) (*store.Store, error) {
	return store.Open(ctx, cfg.Store.Name, sub, store.Options{
		Logger: logger,
		Document: document.Options{
			Fetcher: fetch.New(fetch.Config{
				Timeout:   cfg.Fetch.Timeout.Std(),
				MaxBytes:  cfg.Fetch.MaxBytes,
				UserAgent: cfg.Fetch.UserAgent,
			}),
			AutosaveDelay: cfg.Editor.AutosaveDelay.Std(),
			KeepSelection: cfg.Editor.KeepSelection,
		},
	})
}

func palettes(ctx context.Context, cfg *config.Config, st *store.Store) *state.PaletteBook {
	if len(cfg.Palettes) > 0 {
		return state.NewPaletteBook(cfg.Palettes)
	}
	book, err := st.Palettes(ctx)
	if err != nil {
		return state.NewPaletteBook(nil)
	}
	return book
}

// watchConfig applies log level and palette changes from the config file.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, level *slog.LevelVar, onPalettes func(*state.PaletteBook)) error {
	if path == "" {
		<-ctx.Done()
		return nil
	}
	err := config.Watch(ctx, path, logger, func(c *config.Config) {
		if l, err := config.ParseLevel(c.Log.Level); err == nil {
			level.Set(l)
		}
		if onPalettes != nil && len(c.Palettes) > 0 {
			onPalettes(state.NewPaletteBook(c.Palettes))
		}
	})
	if err != nil {
		logger.Warn("config reload disabled", "error", err)
	}
	return nil
}

func advertise(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Share.Advertise {
		return nil
	}
	srv, err := share.Advertise(cfg.Share.Instance, cfg.Share.Port, logger)
	if err != nil {
		// Sharing by link still works without mDNS.
		logger.Warn("mdns unavailable", "error", err)
		return nil
	}
	<-ctx.Done()
	return srv.Shutdown()
}

func runEditor(ctx context.Context, cfg *config.Config, logger *slog.Logger, level *slog.LevelVar, cfgPath string) error {
	a := ui.NewApp()
	sub, closeSub, err := openSubstrate(cfg, a.Preferences(), logger)
	if err != nil {
		return err
	}
	defer closeSub()
	st, err := openStore(ctx, cfg, logger, sub)
	if err != nil {
		return err
	}

	host := share.OutgoingIP(logger)
	editor := ui.NewEditor(a, ui.Options{
		Store:     st,
		Palettes:  palettes(ctx, cfg, st),
		EmojiSize: float32(cfg.Editor.EmojiSize),
		Logger:    logger,
		ShareLink: func(id string) string { return share.Link(host, cfg.Share.Port, id) },
	})

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		// The editor stays usable when the port is taken.
		if err := share.NewServer(st, logger).ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.Share.Port)); err != nil {
			logger.Warn("sharing disabled", "error", err)
		}
		return nil
	})
	g.Go(func() error { return advertise(gctx, cfg, logger) })
	g.Go(func() error { return watchConfig(gctx, cfgPath, logger, level, editor.SetPalettes) })
	go func() {
		select {
		case <-ctx.Done():
			fyne.Do(a.Quit)
		case <-runCtx.Done():
		}
	}()

	editor.ShowAndRun()
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, level *slog.LevelVar, cfgPath string) error {
	sub, closeSub, err := openSubstrate(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeSub()
	st, err := openStore(ctx, cfg, logger, sub)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		st.Close(closeCtx)
	}()

	host := share.OutgoingIP(logger)
	for _, d := range st.Documents() {
		logger.Info("sharing", "name", d.Name, "link", share.Link(host, cfg.Share.Port, d.ID))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return share.NewServer(st, logger).ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.Share.Port))
	})
	g.Go(func() error { return advertise(gctx, cfg, logger) })
	g.Go(func() error { return watchConfig(gctx, cfgPath, logger, level, nil) })
	return g.Wait()
}

func runViewer(ctx context.Context, cfg *config.Config, logger *slog.Logger, link string) error {
	_, id, err := share.ParseLink(link)
	if err != nil {
		return err
	}
	a := ui.NewApp()
	e := document.New(id, nil, document.Options{
		Logger: logger,
		Fetcher: fetch.New(fetch.Config{
			Timeout:   cfg.Fetch.Timeout.Std(),
			MaxBytes:  cfg.Fetch.MaxBytes,
			UserAgent: cfg.Fetch.UserAgent,
		}),
	})
	defer e.Close(context.Background())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := share.Mirror(ctx, link, e, logger); err != nil {
			logger.Error("mirror stopped", "error", err)
		}
	}()
	ui.RunViewer(a, e, "Emoji Art (shared)", float32(cfg.Editor.EmojiSize))
	return nil
}

func runDiscover(ctx context.Context) error {
	return share.Browse(ctx, 3*time.Second, func(p share.Peer) {
		fmt.Printf("%s\t%s%s/\n", p.Instance, share.Scheme, p.Addr)
	})
}

func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger, id, out string) error {
	sub, closeSub, err := openSubstrate(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer closeSub()
	st, err := openStore(ctx, cfg, logger, sub)
	if err != nil {
		return err
	}
	e, err := st.OpenDocument(ctx, id)
	if err != nil {
		return err
	}
	defer st.Release(context.Background(), id)

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Fetch.Timeout.Std())
	defer cancel()
	if err := e.WaitBackground(waitCtx); err != nil {
		logger.Warn("exporting without background", "error", err)
	}
	snap := e.Snapshot()
	page := export.Page{Emojis: snap.Emojis}
	if snap.Background.Status == document.Loaded {
		page.Background = snap.Background.Data
	}
	if err := export.PDFFile(out, page, export.Options{Title: st.Name(id)}); err != nil {
		return err
	}
	logger.Info("exported", "document", id, "file", out)
	return nil
}
