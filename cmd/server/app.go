package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hlstype/internal/backup"
	"hlstype/internal/config"
	"hlstype/internal/csscache"
	"hlstype/internal/fontkit"
	"hlstype/internal/handler"
	"hlstype/internal/ingest"
	"hlstype/internal/install"
	"hlstype/internal/metrics"
	"hlstype/internal/options"
	"hlstype/internal/preset"
	"hlstype/internal/settings"
	"hlstype/internal/storage"
	"hlstype/internal/transient"
)

// app wires the stores, caches and services shared by every command.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	fs        *storage.FileSystem
	db        *options.SQLStore
	opts      options.Store
	cache     *transient.Cache
	metrics   *metrics.Metrics
	kits      *fontkit.Store
	presets   *preset.Store
	settings  *settings.Store
	css       *csscache.Cache
	pipeline  *ingest.Pipeline
	backups   *backup.Service
	installer *install.Installer
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	fs, err := storage.NewFileSystem(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	log.Info("Using database", zap.String("path", cfg.DatabasePath()))
	db, err := options.OpenSQLStore(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open options database: %w", err)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		fs:      fs,
		db:      db,
		opts:    options.Memoize(db),
		cache:   transient.New(0),
		metrics: metrics.Default(),
	}

	a.installer = install.New(fs, a.opts, a.cache, log)
	fontsDir := a.installer.FontsDir()

	a.kits = fontkit.NewStore(a.opts, fs, fontsDir, log)
	a.presets = preset.NewStore(a.opts, log)
	a.settings = settings.NewStore(a.opts, log)
	a.css = csscache.New(a.kits, a.cache, a.metrics, log)
	a.kits.OnChange(a.css.Invalidate)
	a.presets.OnChange(a.css.Invalidate)

	limits := ingest.Limits{
		MaxCSSSize:      cfg.Upload.MaxCSSSize,
		MaxEntries:      cfg.Upload.MaxEntries,
		MaxUncompressed: cfg.Upload.MaxUncompressed,
	}
	a.pipeline = ingest.New(fs, fontsDir, cfg.UploadsURL()+"/hls/fonts", limits, log)
	a.backups = backup.New(fs, a.opts, a.installer.Dir(), a.metrics, log)
	return a, nil
}

func (a *app) handler() *handler.Handler {
	return handler.NewHandler(handler.Deps{
		Config:   a.cfg,
		FS:       a.fs,
		Kits:     a.kits,
		Presets:  a.presets,
		Settings: a.settings,
		CSS:      a.css,
		Pipeline: a.pipeline,
		Backups:  a.backups,
		Cache:    a.cache,
		Metrics:  a.metrics,
		Log:      a.log,
	})
}

func (a *app) Close() error {
	return a.db.Close()
}
