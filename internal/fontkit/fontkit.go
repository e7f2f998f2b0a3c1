// Package fontkit holds uploaded webfont kit records and their store.
package fontkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hlstype/internal/css"
	"hlstype/internal/options"
	"hlstype/internal/sanitize"
	"hlstype/internal/storage"
)

// DateLayout is the format of FontKit.UploadedDate.
const DateLayout = "2006-01-02 15:04:05"

// FontKit is one uploaded and processed kit.
type FontKit struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	CSSContent   string         `json:"css_content"`
	FontFaces    []css.FontFace `json:"font_faces"`
	UploadPath   string         `json:"upload_path"`
	UploadURL    string         `json:"upload_url"`
	FileCount    int            `json:"file_count"`
	UploadedDate string         `json:"uploaded_date"`
}

// Families returns the distinct font families declared by the kit.
func (k FontKit) Families() []string {
	seen := make(map[string]struct{}, len(k.FontFaces))
	var out []string
	for _, f := range k.FontFaces {
		if _, ok := seen[f.Family]; ok {
			continue
		}
		seen[f.Family] = struct{}{}
		out = append(out, f.Family)
	}
	return out
}

// HasFamily reports whether any face of the kit is in families.
func (k FontKit) HasFamily(families map[string]struct{}) bool {
	for _, f := range k.FontFaces {
		if _, ok := families[f.Family]; ok {
			return true
		}
	}
	return false
}

var ErrNotFound = errors.New("font kit not found")

// Store persists kits under the hls_custom_fonts option and owns their
// directories below root.
type Store struct {
	opts options.Store
	fs   *storage.FileSystem
	root string
	log  *zap.Logger

	mu    sync.RWMutex
	hooks []func(context.Context)
}

// NewStore creates a store. root is the directory kit directories live in;
// Remove refuses to delete anything outside it.
func NewStore(opts options.Store, fs *storage.FileSystem, root string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{opts: opts, fs: fs, root: root, log: log.Named("fontkit")}
}

// OnChange registers fn to run after every successful mutation.
func (s *Store) OnChange(fn func(context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) changed(ctx context.Context) {
	s.mu.RLock()
	hooks := append([]func(context.Context){}, s.hooks...)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

func (s *Store) List(ctx context.Context) ([]FontKit, error) {
	kits, err := options.GetJSON(ctx, s.opts, options.KeyCustomFonts, []FontKit{})
	if err != nil {
		return nil, err
	}
	if kits == nil {
		kits = []FontKit{}
	}
	return kits, nil
}

// Get returns the kit with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (FontKit, error) {
	kits, err := s.List(ctx)
	if err != nil {
		return FontKit{}, err
	}
	for _, k := range kits {
		if k.ID == id {
			return k, nil
		}
	}
	return FontKit{}, ErrNotFound
}

// Add appends kit after cleaning its text fields and css again.
func (s *Store) Add(ctx context.Context, kit FontKit) error {
	kit = clean(kit)
	if kit.ID == "" || kit.Name == "" {
		return fmt.Errorf("font kit needs an id and a name")
	}
	_, err := options.UpdateJSON(ctx, s.opts, options.KeyCustomFonts, []FontKit{}, func(kits []FontKit) ([]FontKit, error) {
		return append(kits, kit), nil
	})
	if err != nil {
		return fmt.Errorf("failed to save font kit: %w", err)
	}
	s.log.Info("font kit added", zap.String("id", kit.ID), zap.String("name", kit.Name), zap.Int("faces", len(kit.FontFaces)))
	s.changed(ctx)
	return nil
}

// Remove deletes the first kit with id and then its directory. A directory
// that is already gone is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	id = sanitize.Key(id)
	var removed FontKit
	_, err := options.UpdateJSON(ctx, s.opts, options.KeyCustomFonts, []FontKit{}, func(kits []FontKit) ([]FontKit, error) {
		for i, k := range kits {
			if k.ID == id {
				removed = k
				return append(kits[:i:i], kits[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return err
	}

	if removed.UploadPath != "" {
		if !storage.Contains(s.root, removed.UploadPath) || samePath(s.root, removed.UploadPath) {
			s.log.Warn("refusing to delete kit directory outside fonts root",
				zap.String("id", id), zap.String("path", removed.UploadPath))
		} else if err := s.fs.RemoveAll(removed.UploadPath); err != nil {
			s.log.Error("failed to delete kit directory", zap.String("id", id), zap.Error(err))
		}
	}

	s.log.Info("font kit removed", zap.String("id", id))
	s.changed(ctx)
	return nil
}

func samePath(a, b string) bool {
	return storage.Contains(a, b) && storage.Contains(b, a)
}

func clean(k FontKit) FontKit {
	k.ID = sanitize.Key(k.ID)
	k.Name = sanitize.Text(k.Name)
	k.CSSContent = css.Sanitize(k.CSSContent)
	k.UploadedDate = sanitize.Text(k.UploadedDate)
	if k.FileCount < 0 {
		k.FileCount = 0
	}
	if k.FontFaces == nil {
		k.FontFaces = []css.FontFace{}
	}
	return k
}
