package handler

import (
	"time"

	"go.uber.org/zap"

	"hlstype/internal/backup"
	"hlstype/internal/config"
	"hlstype/internal/csscache"
	"hlstype/internal/fontkit"
	"hlstype/internal/ingest"
	"hlstype/internal/metrics"
	"hlstype/internal/preset"
	"hlstype/internal/settings"
	"hlstype/internal/storage"
	"hlstype/internal/transient"
)

// Deps collects what the handlers need.
type Deps struct {
	Config   *config.Config
	FS       *storage.FileSystem
	Kits     *fontkit.Store
	Presets  *preset.Store
	Settings *settings.Store
	CSS      *csscache.Cache
	Pipeline *ingest.Pipeline
	Backups  *backup.Service
	Cache    *transient.Cache
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

type Handler struct {
	cfg      *config.Config
	fs       *storage.FileSystem
	kits     *fontkit.Store
	presets  *preset.Store
	settings *settings.Store
	css      *csscache.Cache
	pipeline *ingest.Pipeline
	backups  *backup.Service
	cache    *transient.Cache
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg:      d.Config,
		fs:       d.FS,
		kits:     d.Kits,
		presets:  d.Presets,
		settings: d.Settings,
		css:      d.CSS,
		pipeline: d.Pipeline,
		backups:  d.Backups,
		cache:    d.Cache,
		metrics:  d.Metrics,
		log:      log.Named("handler"),
		now:      time.Now,
	}
}
