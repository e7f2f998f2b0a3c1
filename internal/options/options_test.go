package options

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	Store
	mu   sync.Mutex
	gets int
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.Store.Get(ctx, key)
}

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "opts.db") + "?cache=shared&_pragma=foreign_keys(1)"
	s, err := OpenSQLStore(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLStore(t),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Update(ctx, "k", func(cur []byte, exists bool) ([]byte, error) {
				assert.False(t, exists)
				assert.Nil(t, cur)
				return []byte(`{"a":1}`), nil
			}))
			require.NoError(t, s.Update(ctx, "k", func(cur []byte, exists bool) ([]byte, error) {
				assert.True(t, exists)
				assert.JSONEq(t, `{"a":1}`, string(cur))
				return []byte(`{"a":2}`), nil
			}))

			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"a":2}`, string(v))

			require.NoError(t, s.Delete(ctx, "k"))
			_, ok, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestUpdateErrorLeavesValue(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := UpdateJSON(ctx, s, "list", []string{}, func(v []string) ([]string, error) {
				return append(v, "a"), nil
			})
			require.NoError(t, err)

			_, err = UpdateJSON(ctx, s, "list", []string{}, func(v []string) ([]string, error) {
				return nil, boom
			})
			assert.ErrorIs(t, err, boom)

			got, err := GetJSON(ctx, s, "list", []string{})
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, got)
		})
	}
}

func TestConcurrentUpdatesAreSerialised(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := UpdateJSON(ctx, s, "counter", 0, func(n int) (int, error) {
						return n + 1, nil
					})
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			n, err := GetJSON(ctx, s, "counter", 0)
			require.NoError(t, err)
			assert.Equal(t, 20, n)
		})
	}
}

func TestGetJSONDefaultAndDecodeError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v, err := GetJSON(ctx, s, "absent", map[string]int{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"x": 1}, v)

	require.NoError(t, s.Update(ctx, "bad", func([]byte, bool) ([]byte, error) {
		return []byte("not json"), nil
	}))
	_, err = GetJSON(ctx, s, "bad", 0)
	assert.Error(t, err)
}

func TestMemoizedReadsOncePerRequest(t *testing.T) {
	base := &countingStore{Store: NewMemoryStore()}
	s := Memoize(base)
	ctx := WithMemo(context.Background())

	for i := 0; i < 3; i++ {
		_, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, base.gets)

	require.NoError(t, s.Update(ctx, "k", func([]byte, bool) ([]byte, error) {
		return []byte("1"), nil
	}))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", string(v))
	assert.Equal(t, 1, base.gets)

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)

	// a fresh request sees the store again
	_, _, _ = s.Get(context.Background(), "k")
	_, _, _ = s.Get(context.Background(), "k")
	assert.Equal(t, 3, base.gets)
}
