package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	fixzip "github.com/hidez8891/zip"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"hlstype/internal/storage"
)

// maxEntryDepth caps how many path segments an archive entry may have.
const maxEntryDepth = 16

var (
	allowedExt = map[string]bool{
		"css": true, "woff": true, "woff2": true, "ttf": true, "otf": true, "eot": true, "svg": true,
	}
	scriptExt = map[string]bool{
		"php": true, "php3": true, "php4": true, "php5": true, "php7": true, "phtml": true, "phps": true,
		"phar": true, "pl": true, "py": true, "cgi": true, "sh": true, "asp": true, "aspx": true, "jsp": true,
	}
	fontExt = map[string]bool{
		"woff": true, "woff2": true, "ttf": true, "otf": true, "eot": true,
	}
)

func extOf(p string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(p), "."))
}

// entryTarget maps an archive entry name onto a path below dir. Absolute
// names and names climbing out of dir are rejected.
func entryTarget(dir, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\x00") {
		return "", fmt.Errorf("illegal entry name %q", name)
	}
	if len(name) > 1 && name[1] == ':' {
		return "", fmt.Errorf("illegal entry name %q", name)
	}
	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("entry %q escapes the extraction directory", name)
	}
	if strings.Count(cleaned, "/")+1 > maxEntryDepth {
		return "", fmt.Errorf("entry %q is nested deeper than %d levels", name, maxEntryDepth)
	}
	target := filepath.Join(dir, filepath.FromSlash(cleaned))
	if !storage.Contains(dir, target) {
		return "", fmt.Errorf("entry %q escapes the extraction directory", name)
	}
	return target, nil
}

// extract unpacks archive into dir. Symbolic link entries are skipped. Every
// entry, directories included, counts against MaxEntries.
func (p *Pipeline) extract(ctx context.Context, archive []byte, dir string) error {
	zr, err := fixzip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("unable to read archive: %w", err)
	}
	if p.limits.MaxEntries > 0 && len(zr.File) > p.limits.MaxEntries {
		return fmt.Errorf("archive holds %d entries, more than %d", len(zr.File), p.limits.MaxEntries)
	}

	var written int64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := entryTarget(dir, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(f.Name, "/"):
			if err := p.fs.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		case mode&os.ModeSymlink != 0:
			p.log.Warn("skipping symbolic link in archive", zap.String("entry", f.Name))
			continue
		case !mode.IsRegular():
			p.log.Warn("skipping special file in archive", zap.String("entry", f.Name))
			continue
		}

		remaining := int64(0)
		if p.limits.MaxUncompressed > 0 {
			remaining = p.limits.MaxUncompressed - written
			if remaining <= 0 {
				return fmt.Errorf("archive expands beyond %d bytes", p.limits.MaxUncompressed)
			}
		}
		n, err := p.writeEntry(f, target, remaining)
		written += n
		if errors.Is(err, storage.ErrTooLarge) {
			return fmt.Errorf("archive expands beyond %d bytes", p.limits.MaxUncompressed)
		}
		if err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func (p *Pipeline) writeEntry(f *fixzip.File, target string, limit int64) (n int64, err error) {
	rc, err := f.Open()
	if err != nil {
		return 0, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(rc))
	return p.fs.SaveUploadedFile(rc, target, limit)
}

// filterTree deletes every file that may not stay in a kit directory:
// scripts, extensions outside the allow-list, links and anything whose
// resolved path leaves dir.
func (p *Pipeline) filterTree(dir string) error {
	realDir, err := p.fs.RealPath(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve kit directory: %w", err)
	}

	var removeErr error
	err = p.fs.WalkFiles(dir, func(file string, info os.FileInfo) error {
		reason := rejectReason(file, info)
		if reason == "" {
			real, err := p.fs.RealPath(file)
			if err != nil || !storage.Contains(realDir, real) {
				reason = "outside kit directory"
			}
		}
		if reason == "" {
			return nil
		}
		p.log.Debug("removing extracted file", zap.String("file", file), zap.String("reason", reason))
		multierr.AppendInto(&removeErr, p.fs.Remove(file))
		return nil
	})
	return multierr.Append(err, removeErr)
}

func rejectReason(file string, info os.FileInfo) string {
	ext := extOf(file)
	switch {
	case scriptExt[ext]:
		return "script"
	case !allowedExt[ext]:
		return "extension not allowed"
	case info.Mode()&os.ModeSymlink != 0:
		return "symbolic link"
	case !info.Mode().IsRegular():
		return "not a regular file"
	}
	return ""
}
