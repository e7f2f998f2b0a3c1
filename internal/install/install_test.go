package install

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"

	"hlstype/internal/options"
	"hlstype/internal/storage"
	"hlstype/internal/transient"
)

func TestActivate(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewMemoryFileSystem()
	i := New(fs, options.NewMemoryStore(), nil, zaptest.NewLogger(t))

	require.NoError(t, i.Activate(ctx))

	rules, err := fs.ReadFile(filepath.Join(i.FontsDir(), ".htaccess"))
	require.NoError(t, err)
	assert.Contains(t, string(rules), "<FilesMatch \"\\.php$\">")
	assert.Contains(t, string(rules), "Options -Indexes")

	index, err := fs.ReadFile(filepath.Join(i.FontsDir(), "index.php"))
	require.NoError(t, err)
	assert.Equal(t, "<?php // Silence is golden", string(index))
}

func TestActivateKeepsExistingFiles(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewMemoryFileSystem()
	i := New(fs, options.NewMemoryStore(), nil, zaptest.NewLogger(t))

	custom := filepath.Join(i.FontsDir(), ".htaccess")
	require.NoError(t, fs.WriteFile(custom, []byte("custom"), 0644))
	require.NoError(t, i.Activate(ctx))
	require.NoError(t, i.Activate(ctx))

	rules, err := fs.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(rules))
}

func TestUninstall(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewMemoryFileSystem()
	opts := options.NewMemoryStore()
	cache := transient.New(64)
	i := New(fs, opts, cache, zaptest.NewLogger(t))

	require.NoError(t, i.Activate(ctx))
	require.NoError(t, fs.WriteFile(filepath.Join(i.FontsDir(), "kit-1", "style.css"), []byte("x"), 0644))
	other := filepath.Join(fs.GetUploadsDir("other"), "keep.txt")
	require.NoError(t, fs.WriteFile(other, []byte("x"), 0644))

	for _, key := range options.Keys {
		require.NoError(t, opts.Update(ctx, key, func([]byte, bool) ([]byte, error) { return []byte("[]"), nil }))
	}
	cache.Set("hls_combined_font_css", "css", time.Hour)
	cache.Set("hls_rate_limit_alice", 3, time.Minute)
	cache.Set("hls_editor_data_alice", "{}", time.Hour)
	cache.Set("unrelated", 1, time.Hour)

	require.NoError(t, i.Uninstall(ctx))

	for _, key := range options.Keys {
		_, ok, err := opts.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
	assert.Equal(t, 1, cache.Len())

	exists, err := fs.Exists(i.Dir())
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = fs.Exists(other)
	require.NoError(t, err)
	assert.True(t, exists)
}

type failingStore struct{ options.Store }

func (failingStore) Delete(context.Context, string) error { return errors.New("locked") }

func TestUninstallReportsEveryFailure(t *testing.T) {
	ctx := context.Background()
	fs := storage.NewMemoryFileSystem()
	i := New(fs, failingStore{options.NewMemoryStore()}, nil, zaptest.NewLogger(t))
	require.NoError(t, i.Activate(ctx))

	err := i.Uninstall(ctx)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), len(options.Keys))

	exists, _ := fs.Exists(i.Dir())
	assert.False(t, exists)
}
