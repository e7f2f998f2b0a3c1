// Package preset manages the saved OpenType feature combinations offered to
// editors, and the fixed feature catalog they draw from.
package preset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"hlstype/internal/options"
	"hlstype/internal/sanitize"
)

// Preset is a named feature combination.
type Preset struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Features    []string `json:"features"`
	Description string   `json:"description"`
	FontFamily  string   `json:"fontFamily,omitempty"`
}

var (
	ErrNotFound        = errors.New("preset not found")
	ErrNoValidFeatures = errors.New("preset has no valid features")
	ErrInvalid         = errors.New("invalid preset")
)

var defaults = []Preset{
	{ID: "elegant-script", Name: "Elegant Script", Features: []string{"calt", "ss02"}, Description: "Contextual alternates with stylistic set 2"},
	{ID: "wedding-style", Name: "Wedding Style", Features: []string{"calt", "ss02", "swsh"}, Description: "Perfect for wedding invitations with swashes"},
	{ID: "vintage-ornate", Name: "Vintage Ornate", Features: []string{"calt", "dlig", "ss01"}, Description: "Discretionary ligatures with stylistic alternates"},
	{ID: "modern-clean", Name: "Modern Clean", Features: []string{"liga", "calt"}, Description: "Standard ligatures with contextual alternates"},
	{ID: "full-swash", Name: "Full Swash", Features: []string{"calt", "swsh", "cswh", "salt"}, Description: "Maximum flourish with all swash features"},
}

// Defaults returns the presets used until the first one is saved.
func Defaults() []Preset {
	out := make([]Preset, len(defaults))
	for i, p := range defaults {
		p.Features = append([]string(nil), p.Features...)
		out[i] = p
	}
	return out
}

// Clean sanitises p: unknown features are dropped, text fields stripped and
// the id derived from the name when empty.
func Clean(p Preset) (Preset, error) {
	p.Name = sanitize.Text(p.Name)
	if p.Name == "" {
		return Preset{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	p.Features = FilterKnown(p.Features)
	if len(p.Features) == 0 {
		return Preset{}, ErrNoValidFeatures
	}
	p.ID = sanitize.Key(p.ID)
	if p.ID == "" {
		p.ID = sanitize.Key(slug.Make(p.Name))
	}
	if p.ID == "" {
		return Preset{}, fmt.Errorf("%w: id is required", ErrInvalid)
	}
	p.Description = sanitize.Text(p.Description)
	p.FontFamily = sanitize.Text(p.FontFamily)
	return p, nil
}

// Store keeps presets under the hls_presets option.
type Store struct {
	opts options.Store
	log  *zap.Logger

	mu    sync.RWMutex
	hooks []func(context.Context)
}

func NewStore(opts options.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{opts: opts, log: log.Named("preset")}
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

// List returns the saved presets, or the defaults when none were ever saved.
func (s *Store) List(ctx context.Context) ([]Preset, error) {
	presets, err := options.GetJSON(ctx, s.opts, options.KeyPresets, Defaults())
	if err != nil {
		return nil, err
	}
	if presets == nil {
		presets = []Preset{}
	}
	return presets, nil
}

// Add cleans p and appends it. Ids are not required to be unique.
func (s *Store) Add(ctx context.Context, p Preset) (Preset, error) {
	p, err := Clean(p)
	if err != nil {
		return Preset{}, err
	}
	_, err = options.UpdateJSON(ctx, s.opts, options.KeyPresets, Defaults(), func(presets []Preset) ([]Preset, error) {
		return append(presets, p), nil
	})
	if err != nil {
		return Preset{}, fmt.Errorf("failed to save preset: %w", err)
	}
	s.log.Info("preset added", zap.String("id", p.ID), zap.Strings("features", p.Features))
	s.changed(ctx)
	return p, nil
}

// Remove deletes the first preset with id.
func (s *Store) Remove(ctx context.Context, id string) error {
	id = sanitize.Key(id)
	_, err := options.UpdateJSON(ctx, s.opts, options.KeyPresets, Defaults(), func(presets []Preset) ([]Preset, error) {
		for i, p := range presets {
			if p.ID == id {
				return append(presets[:i:i], presets[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return err
	}
	s.log.Info("preset removed", zap.String("id", id))
	s.changed(ctx)
	return nil
}
