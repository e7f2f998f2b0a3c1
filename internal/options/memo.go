package options

import (
	"context"
	"sync"
)

type memoKey struct{}

type memoEntry struct {
	value  []byte
	exists bool
}

type memo struct {
	mu      sync.Mutex
	entries map[string]memoEntry
}

// WithMemo attaches a request scoped read memo to ctx. Stores wrapped with
// Memoize answer repeated reads within that context from the memo.
func WithMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, memoKey{}, &memo{entries: make(map[string]memoEntry)})
}

func memoFrom(ctx context.Context) *memo {
	m, _ := ctx.Value(memoKey{}).(*memo)
	return m
}

func (m *memo) load(key string) (memoEntry, bool) {
	if m == nil {
		return memoEntry{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *memo) store(key string, value []byte, exists bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoEntry{value: clone(value), exists: exists}
}

// Memoized wraps a Store with the request memo.
type Memoized struct {
	next Store
}

func Memoize(next Store) *Memoized {
	return &Memoized{next: next}
}

func (m *Memoized) Get(ctx context.Context, key string) ([]byte, bool, error) {
	mm := memoFrom(ctx)
	if e, ok := mm.load(key); ok {
		return clone(e.value), e.exists, nil
	}
	v, ok, err := m.next.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	mm.store(key, v, ok)
	return v, ok, nil
}

func (m *Memoized) Update(ctx context.Context, key string, fn UpdateFunc) error {
	var written []byte
	err := m.next.Update(ctx, key, func(current []byte, exists bool) ([]byte, error) {
		next, err := fn(current, exists)
		written = next
		return next, err
	})
	if err != nil {
		return err
	}
	memoFrom(ctx).store(key, written, true)
	return nil
}

func (m *Memoized) Delete(ctx context.Context, key string) error {
	if err := m.next.Delete(ctx, key); err != nil {
		return err
	}
	memoFrom(ctx).store(key, nil, false)
	return nil
}
