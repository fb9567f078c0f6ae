package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/photophriend/internal/model"
)

func TestStore(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	data := []byte("hello, image data")

	n, err := fs.Store("photos/img-1/img-1.jpg", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	// Verify the file exists on disk at the expected path.
	path := filepath.Join(fs.basePath, "photos", "img-1", "img-1.jpg")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, content)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreOverwrites(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	_, err := fs.Store("a/b.jpg", bytes.NewReader([]byte("first")))
	require.NoError(t, err)
	_, err = fs.Store("a/b.jpg", bytes.NewReader([]byte("second")))
	require.NoError(t, err)

	rc, err := fs.Retrieve("a/b.jpg")
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestRetrieve(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	data := []byte("retrieve me")

	_, err := fs.Store("photos/thumb/img-2_thumb.jpg", bytes.NewReader(data))
	require.NoError(t, err)

	rc, err := fs.Retrieve("photos/thumb/img-2_thumb.jpg")
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRetrieveNotFound(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	_, err := fs.Retrieve("photos/nope/nope.jpg")
	require.Error(t, err)
	assert.True(t, model.ErrNotFound.Has(err))
}

func TestDelete(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	_, err := fs.Store("photos/img-3/img-3.jpg", bytes.NewReader([]byte("delete me")))
	require.NoError(t, err)
	_, err = fs.Store("photos/thumb/img-3_thumb.jpg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	_, err = fs.Store("photos/thumb/img-4_thumb.jpg", bytes.NewReader([]byte("y")))
	require.NoError(t, err)

	require.NoError(t, fs.Delete("photos/img-3/img-3.jpg"))
	require.NoError(t, fs.Delete("photos/thumb/img-3_thumb.jpg"))

	// The per-photo directory is gone; the shared one still holds img-4.
	_, err = os.Stat(filepath.Join(fs.basePath, "photos", "img-3"))
	assert.True(t, os.IsNotExist(err), "expected directory to be removed")
	ok, err := fs.Exists("photos/thumb/img-4_thumb.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	// The root itself survives.
	_, err = os.Stat(fs.basePath)
	assert.NoError(t, err)
}

func TestDeleteIdempotent(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	err := fs.Delete("photos/never/never.jpg")
	assert.NoError(t, err)
}

func TestExists(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	ok, err := fs.Exists("photos/x/x.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fs.Store("photos/x/x.png", bytes.NewReader([]byte("data")))
	require.NoError(t, err)

	ok, err = fs.Exists("photos/x/x.png")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRejectsEscapingKeys(t *testing.T) {
	fs := NewFileSystem(t.TempDir())

	for _, key := range []string{"", "../outside", "/etc/passwd", "photos/../../x"} {
		_, err := fs.Store(key, bytes.NewReader([]byte("x")))
		assert.True(t, model.ErrValidation.Has(err), key)
		_, err = fs.Retrieve(key)
		assert.True(t, model.ErrValidation.Has(err), key)
		assert.True(t, model.ErrValidation.Has(fs.Delete(key)), key)
	}
}

func TestLayout(t *testing.T) {
	assert.Equal(t, "photos/abc123/abc123_g1.jpg", OriginalKey("abc123", "g1", "jpg"))
	assert.Equal(t, "abc123_thumb.jpg", VersionName("abc123", model.VersionThumb, "jpg"))
	assert.Equal(t, "photos/minified/abc123_g1_minified.png", VersionKey("abc123", "g1", model.VersionMinified, "png"))

	a, b := NewGeneration(), NewGeneration()
	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, OriginalKey("abc123", a, "jpg"), OriginalKey("abc123", b, "jpg"))
}
