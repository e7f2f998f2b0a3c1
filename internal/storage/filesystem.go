package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"
	"github.com/spf13/afero"
)

// FileSystem provides an abstraction over file operations using afero
type FileSystem struct {
	fs      afero.Fs
	baseDir string
}

// NewFileSystem creates an OS backed FileSystem rooted at baseDir.
func NewFileSystem(baseDir string) (*FileSystem, error) {
	if baseDir == "" {
		baseDir = "data"
	}

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileSystem{
		fs:      osFs,
		baseDir: baseDir,
	}, nil
}

// NewMemoryFileSystem creates a FileSystem backed by memory (useful for testing)
func NewMemoryFileSystem() *FileSystem {
	return &FileSystem{
		fs:      afero.NewMemMapFs(),
		baseDir: "data",
	}
}

// GetDataDir returns the base data directory path
func (f *FileSystem) GetDataDir() string {
	return f.baseDir
}

// GetUploadsDir returns the uploads directory path for a specific subdirectory
func (f *FileSystem) GetUploadsDir(subdir string) string {
	return filepath.Join(f.baseDir, "uploads", subdir)
}

// WriteFile writes data to a file
func (f *FileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := f.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return afero.WriteFile(f.fs, path, data, perm)
}

// ReadFile reads data from a file
func (f *FileSystem) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(f.fs, path)
}

// Open opens a file for reading
func (f *FileSystem) Open(path string) (afero.File, error) {
	return f.fs.Open(path)
}

// Remove removes a file
func (f *FileSystem) Remove(path string) error {
	return f.fs.Remove(path)
}

// RemoveAll removes path and everything below it. A missing path is not an error.
func (f *FileSystem) RemoveAll(path string) error {
	return f.fs.RemoveAll(path)
}

// Exists checks if a file or directory exists
func (f *FileSystem) Exists(path string) (bool, error) {
	return afero.Exists(f.fs, path)
}

// Lstat returns file info without following a trailing symbolic link when the
// backing filesystem supports it.
func (f *FileSystem) Lstat(path string) (os.FileInfo, error) {
	if l, ok := f.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return f.fs.Stat(path)
}

// MkdirAll creates a directory and all parent directories
func (f *FileSystem) MkdirAll(path string, perm os.FileMode) error {
	return f.fs.MkdirAll(path, perm)
}

// SaveUploadedFile saves data from reader to path, refusing to write more
// than limit bytes when limit is positive. It returns the number of bytes written.
func (f *FileSystem) SaveUploadedFile(reader io.Reader, path string, limit int64) (int64, error) {
	dir := filepath.Dir(path)
	if err := f.fs.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := f.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	src := reader
	if limit > 0 {
		src = io.LimitReader(reader, limit+1)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		return n, fmt.Errorf("failed to save file: %w", err)
	}
	if limit > 0 && n > limit {
		return n, ErrTooLarge
	}
	return n, nil
}

// ErrTooLarge is returned by SaveUploadedFile when the source exceeds its limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// RealPath resolves symbolic links on OS backed filesystems and returns an
// absolute, cleaned path. Other filesystems have no links to resolve.
func (f *FileSystem) RealPath(path string) (string, error) {
	if _, ok := f.fs.(*afero.OsFs); ok {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", err
		}
		return filepath.Abs(resolved)
	}
	return filepath.Abs(filepath.Clean(path))
}

// Contains reports whether path lies inside root (or is root itself).
// Both arguments are compared lexically.
func Contains(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// WalkFunc is called by WalkFiles for every non-directory entry.
// Returning fs.SkipAll stops the walk without error.
type WalkFunc func(path string, info os.FileInfo) error

// WalkFiles visits every non-directory entry below root depth-first, ordering
// the entries of each directory naturally by name. Symbolic links are
// reported, never followed.
func (f *FileSystem) WalkFiles(root string, fn WalkFunc) error {
	err := f.walk(root, fn)
	if errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func (f *FileSystem) walk(dir string, fn WalkFunc) error {
	entries, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	byName := make(map[string]os.FileInfo, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	sort.Sort(natural.StringSlice(names))

	for _, name := range names {
		info := byName[name]
		p := filepath.Join(dir, name)
		if info.IsDir() {
			if err := f.walk(p, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, info); err != nil {
			return err
		}
	}
	return nil
}

// GetFs returns the underlying afero.Fs for advanced operations
func (f *FileSystem) GetFs() afero.Fs {
	return f.fs
}
