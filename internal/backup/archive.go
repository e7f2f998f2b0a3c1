package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"hlstype/internal/options"
)

// OptionsEntry is the archive member holding the option records.
const OptionsEntry = "options.json"

// createArchive writes a tar.gz holding the option records and every file
// below the plugin's uploads directory.
func (s *Service) createArchive(ctx context.Context) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	gzWriter := gzip.NewWriter(buf)
	tarWriter := tar.NewWriter(gzWriter)

	dump, err := s.dumpOptions(ctx)
	if err != nil {
		return nil, err
	}
	header := &tar.Header{
		Name:    OptionsEntry,
		Mode:    0644,
		Size:    int64(len(dump)),
		ModTime: s.now(),
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return nil, fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := tarWriter.Write(dump); err != nil {
		return nil, fmt.Errorf("failed to write options: %w", err)
	}

	// Helper function to add a file to tar archive
	addFile := func(path, name string, info os.FileInfo) (err error) {
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header: %w", err)
		}
		header.Name = filepath.ToSlash(name)

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}
		if info.IsDir() {
			return nil
		}

		file, err := s.fs.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer multierr.AppendInvoke(&err, multierr.Close(file))

		if _, err := io.Copy(tarWriter, file); err != nil {
			return fmt.Errorf("failed to copy file data: %w", err)
		}
		return nil
	}

	exists, _ := s.fs.Exists(s.root)
	if exists {
		base := filepath.Dir(s.root)
		err := afero.Walk(s.fs.GetFs(), s.root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !info.Mode().IsRegular() && !info.IsDir() {
				return nil
			}
			relPath, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}
			return addFile(path, relPath, info)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add uploads directory: %w", err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return nil, err
	}
	if err := gzWriter.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Service) dumpOptions(ctx context.Context) ([]byte, error) {
	records := make(map[string]json.RawMessage, len(options.Keys))
	for _, key := range options.Keys {
		raw, ok, err := s.opts.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read option %s: %w", key, err)
		}
		if ok && json.Valid(raw) {
			records[key] = raw
		}
	}
	return json.MarshalIndent(records, "", "  ")
}

// Filename names a backup taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("hlstype_backup_%s.tar.gz", t.Format("20060102_150405"))
}
