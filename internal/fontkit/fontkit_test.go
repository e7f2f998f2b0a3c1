package fontkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"hlstype/internal/css"
	"hlstype/internal/options"
	"hlstype/internal/storage"
)

func newStore(t *testing.T) (*Store, *storage.FileSystem, string) {
	t.Helper()
	fs := storage.NewMemoryFileSystem()
	root := fs.GetUploadsDir("hls/fonts")
	return NewStore(options.NewMemoryStore(), fs, root, zaptest.NewLogger(t)), fs, root
}

func testKit(root, id string) FontKit {
	return FontKit{
		ID:         id,
		Name:       "Brand",
		CSSContent: `@font-face{font-family:"Brand";src:url('https://site/a.woff2')}`,
		FontFaces:  []css.FontFace{{Family: "Brand", Weight: "normal", Style: "normal"}},
		UploadPath: filepath.Join(root, id),
		UploadURL:  "https://site/uploads/hls/fonts/" + id,
		FileCount:  1,
	}
}

func TestAddListRemove(t *testing.T) {
	ctx := context.Background()
	s, fs, root := newStore(t)

	var changes int
	s.OnChange(func(context.Context) { changes++ })

	kit := testKit(root, "kit-1-abcdef12")
	require.NoError(t, fs.WriteFile(filepath.Join(kit.UploadPath, "style.css"), []byte("x"), 0644))
	require.NoError(t, s.Add(ctx, kit))
	require.NoError(t, s.Add(ctx, testKit(root, "kit-2-abcdef12")))

	kits, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, kits, 2)
	assert.Equal(t, "kit-1-abcdef12", kits[0].ID)

	require.NoError(t, s.Remove(ctx, "kit-1-abcdef12"))
	exists, err := fs.Exists(kit.UploadPath)
	require.NoError(t, err)
	assert.False(t, exists)

	kits, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, kits, 1)
	assert.Equal(t, "kit-2-abcdef12", kits[0].ID)
	assert.Equal(t, 3, changes)
}

func TestRemoveMissingLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s, _, root := newStore(t)
	require.NoError(t, s.Add(ctx, testKit(root, "kit-1-abcdef12")))

	var changes int
	s.OnChange(func(context.Context) { changes++ })

	err := s.Remove(ctx, "kit-404")
	assert.ErrorIs(t, err, ErrNotFound)
	kits, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, kits, 1)
	assert.Zero(t, changes)
}

func TestRemoveWithoutDirectory(t *testing.T) {
	ctx := context.Background()
	s, _, root := newStore(t)
	require.NoError(t, s.Add(ctx, testKit(root, "kit-1-abcdef12")))
	assert.NoError(t, s.Remove(ctx, "kit-1-abcdef12"))
}

func TestRemoveKeepsDirectoriesOutsideRoot(t *testing.T) {
	ctx := context.Background()
	s, fs, root := newStore(t)

	outside := filepath.Join(fs.GetDataDir(), "precious")
	require.NoError(t, fs.WriteFile(filepath.Join(outside, "keep.txt"), []byte("x"), 0644))

	kit := testKit(root, "kit-1-abcdef12")
	kit.UploadPath = outside
	require.NoError(t, s.Add(ctx, kit))
	require.NoError(t, s.Remove(ctx, kit.ID))

	exists, err := fs.Exists(filepath.Join(outside, "keep.txt"))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAddCleansFields(t *testing.T) {
	ctx := context.Background()
	s, _, root := newStore(t)

	kit := testKit(root, "Kit-1-ABCDEF12")
	kit.Name = "<b>Brand</b>  Kit"
	kit.CSSContent = `@import url(evil.css);@font-face{font-family:A;src:url(javascript:alert(1))}`
	require.NoError(t, s.Add(ctx, kit))

	got, err := s.Get(ctx, "kit-1-abcdef12")
	require.NoError(t, err)
	assert.Equal(t, "Brand Kit", got.Name)
	assert.NotContains(t, got.CSSContent, "@import")
	assert.NotContains(t, got.CSSContent, "javascript")

	assert.Error(t, s.Add(ctx, FontKit{Name: "no id"}))
}

func TestFamilies(t *testing.T) {
	kit := FontKit{FontFaces: []css.FontFace{{Family: "A"}, {Family: "B"}, {Family: "A"}}}
	assert.Equal(t, []string{"A", "B"}, kit.Families())
	assert.True(t, kit.HasFamily(map[string]struct{}{"B": {}}))
	assert.False(t, kit.HasFamily(map[string]struct{}{"C": {}}))
}
