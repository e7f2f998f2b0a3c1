// Package install prepares the font storage directory on activation and
// removes every trace of the plugin on uninstall.
package install

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hlstype/internal/options"
	"hlstype/internal/storage"
	"hlstype/internal/transient"
)

// TransientPrefix covers every transient the plugin writes.
const TransientPrefix = "hls_"

const (
	accessFile = ".htaccess"
	indexFile  = "index.php"

	accessRules = "# Prevent PHP execution\n" +
		"<FilesMatch \"\\.php$\">\n" +
		"    Deny from all\n" +
		"</FilesMatch>\n" +
		"# Prevent directory listing\n" +
		"Options -Indexes\n"
	indexBody = "<?php // Silence is golden"
)

type Installer struct {
	fs    *storage.FileSystem
	opts  options.Store
	cache *transient.Cache
	log   *zap.Logger
}

// New returns an Installer. cache may be nil when no transients are live in
// this process.
func New(fsys *storage.FileSystem, opts options.Store, cache *transient.Cache, log *zap.Logger) *Installer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Installer{fs: fsys, opts: opts, cache: cache, log: log.Named("install")}
}

// Dir is the plugin's uploads directory.
func (i *Installer) Dir() string {
	return i.fs.GetUploadsDir("hls")
}

// FontsDir holds one directory per font kit.
func (i *Installer) FontsDir() string {
	return filepath.Join(i.Dir(), "fonts")
}

// Activate creates the fonts directory with its access rules and index
// placeholder. Existing files are left alone.
func (i *Installer) Activate(_ context.Context) error {
	dir := i.FontsDir()
	if err := i.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create fonts directory: %w", err)
	}

	for name, body := range map[string]string{accessFile: accessRules, indexFile: indexBody} {
		path := filepath.Join(dir, name)
		exists, err := i.fs.Exists(path)
		if err != nil {
			return fmt.Errorf("failed to check %s: %w", name, err)
		}
		if exists {
			continue
		}
		if err := i.fs.WriteFile(path, []byte(body), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	i.log.Info("fonts directory ready", zap.String("dir", dir))
	return nil
}

// Uninstall deletes the option records, the plugin's transients and the
// uploads directory. It keeps going after a failure and reports every error.
func (i *Installer) Uninstall(ctx context.Context) error {
	var err error
	for _, key := range options.Keys {
		if derr := i.opts.Delete(ctx, key); derr != nil {
			err = multierr.Append(err, fmt.Errorf("failed to delete option %s: %w", key, derr))
		}
	}

	if i.cache != nil {
		n := i.cache.DeletePrefix(TransientPrefix)
		i.log.Debug("transients removed", zap.Int("count", n))
	}

	if rerr := i.fs.RemoveAll(i.Dir()); rerr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to remove %s: %w", i.Dir(), rerr))
	}

	if err != nil {
		i.log.Warn("uninstall incomplete", zap.Error(err))
		return err
	}
	i.log.Info("plugin data removed")
	return nil
}
