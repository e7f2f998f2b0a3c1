// Package options persists the service's named records (presets, font kits,
// global settings) as JSON values in a key-value store.
package options

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Record names.
const (
	KeyPresets        = "hls_presets"
	KeyCustomFonts    = "hls_custom_fonts"
	KeyGlobalSettings = "hls_global_settings"
)

// Keys lists every record the service owns.
var Keys = []string{KeyPresets, KeyCustomFonts, KeyGlobalSettings}

// UpdateFunc receives the current value (nil when absent) and returns the
// value to store.
type UpdateFunc func(current []byte, exists bool) ([]byte, error)

// Store is a persistent key-value settings store. Update must be atomic with
// respect to other Update calls on the same store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the record stored under key, returning def when absent.
func GetJSON[T any](ctx context.Context, s Store, key string, def T) (T, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("failed to read option %s: %w", key, err)
	}
	if !ok {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return def, fmt.Errorf("failed to decode option %s: %w", key, err)
	}
	return v, nil
}

// UpdateJSON runs a read-modify-write cycle over the record under key.
func UpdateJSON[T any](ctx context.Context, s Store, key string, def T, fn func(T) (T, error)) (T, error) {
	var result T
	err := s.Update(ctx, key, func(current []byte, exists bool) ([]byte, error) {
		v := def
		if exists {
			var decoded T
			if err := json.Unmarshal(current, &decoded); err != nil {
				return nil, fmt.Errorf("failed to decode option %s: %w", key, err)
			}
			v = decoded
		}
		next, err := fn(v)
		if err != nil {
			return nil, err
		}
		result = next
		return json.Marshal(next)
	})
	return result, err
}

// MemoryStore is an in-process Store, used by tests and as a fallback.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return clone(v), ok, nil
}

func (m *MemoryStore) Update(_ context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[key]
	next, err := fn(clone(cur), ok)
	if err != nil {
		return err
	}
	m.data[key] = clone(next)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
