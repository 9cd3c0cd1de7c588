// Package main is the entry point for the map editor server.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/mapeditor/internal/config"
	"github.com/Faultbox/mapeditor/internal/editor"
	"github.com/Faultbox/mapeditor/internal/logger"
	"github.com/Faultbox/mapeditor/internal/network"
	"github.com/Faultbox/mapeditor/internal/node"
	"github.com/Faultbox/mapeditor/internal/schematic"
	"github.com/Faultbox/mapeditor/internal/storage"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logOptions(cfg.Logging)); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Map Editor ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("server stopped normally")
}

func run(cfg *config.Config) error {
	store, err := storage.Open(cfg.Storage.AppName, logger.Named("storage"))
	if err != nil {
		return err
	}

	scene := node.NewScene()
	hub := network.NewHub(scene, network.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            logger.Named("network"),
	})

	ed := editor.New(editor.Config{
		Factory:            scene,
		Store:              store,
		Source:             schematic.NewDirSource(cfg.Editor.SchematicsDir, logger.Named("schematic")),
		BlockSpawnDelay:    cfg.Editor.SchematicBlockSpawnDelay,
		AnimationTolerance: cfg.Editor.AnimationTolerance,
		Log:                logger.Named("editor"),
	})

	if maps := cfg.Editor.AutoLoadMaps; len(maps) > 0 {
		name := maps[rand.IntN(len(maps))]
		if err := ed.LoadMap(name); err != nil {
			logger.Warn("loading startup map", zap.String("map", name), zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/editor/", http.StripPrefix("/editor", editor.NewHTTPHandler(ed)))
	mux.Handle("/log/level", logger.LevelHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return tickLoop(ctx, ed, cfg.TickInterval())
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// tickLoop drives the editor at a fixed rate until ctx is cancelled,
// then tears down the loaded map.
func tickLoop(ctx context.Context, ed *editor.Editor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			if err := ed.Close(); err != nil {
				logger.Warn("closing editor", zap.Error(err))
			}
			return nil
		case now := <-ticker.C:
			ed.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}

func logOptions(c config.LoggingConfig) logger.Options {
	opts := logger.Options{Level: c.Level, Format: c.Format, Console: true}
	if c.LogFile != "" {
		opts.File = logger.FileConfig{
			Path:       c.LogFile,
			MaxSizeMB:  c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAgeDays: c.MaxAgeDays,
			Compress:   c.Compress,
		}
	}
	return opts
}
