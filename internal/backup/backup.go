// Package backup snapshots the font kit directory and option records into a
// tar.gz archive and ships it to S3 or WebDAV, on demand or on a cron schedule.
package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"hlstype/internal/metrics"
	"hlstype/internal/options"
	"hlstype/internal/storage"
)

const filePrefix = "hlstype_backup_"

type Service struct {
	fs      *storage.FileSystem
	opts    options.Store
	root    string
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service archiving root (the plugin's uploads directory).
func New(fsys *storage.FileSystem, opts options.Store, root string, m *metrics.Metrics, log *zap.Logger, o ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		fs:      fsys,
		opts:    opts,
		root:    root,
		log:     log.Named("backup"),
		metrics: m,
		now:     time.Now,
	}
	for _, fn := range o {
		fn(s)
	}
	return s
}

// Run archives the current state and uploads it to t. It returns the name of
// the stored archive.
func (s *Service) Run(ctx context.Context, t Target) (name string, err error) {
	defer func() {
		s.metrics.RecordBackup(t.Name(), err)
	}()

	archive, err := s.createArchive(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	name = Filename(s.now())
	if err := t.Upload(ctx, name, archive.Bytes()); err != nil {
		return "", err
	}

	s.log.Info("backup stored",
		zap.String("target", t.Name()),
		zap.String("file", name),
		zap.Int("bytes", archive.Len()),
	)
	return name, nil
}

// Schedule runs a backup to t on every tick of spec until the returned
// scheduler is stopped.
func (s *Service) Schedule(spec string, t Target, timeout time.Duration) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := s.Run(ctx, t); err != nil {
			s.log.Error("scheduled backup failed", zap.String("target", t.Name()), zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", spec, err)
	}
	c.Start()
	s.log.Info("automatic backups enabled", zap.String("schedule", spec), zap.String("target", t.Name()))
	return c, nil
}
