package sprites

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxhully/sprites/spritegen"
)

func TestDirStoreRoundTrip(t *testing.T) {
	store, err := NewDirStore(filepath.Join(t.TempDir(), "sprites"))
	require.NoError(t, err)
	rec, contents := generateTestSprite(t, "hello")

	require.NoError(t, store.Save(t.Context(), rec, contents))

	got, rc, err := store.Open(t.Context(), "hello")
	require.NoError(t, err)
	assert.Equal(t, contents, readAllAndClose(t, rc))
	assert.Equal(t, "image/png", got.ContentType)
	assert.Equal(t, "hello", got.Key)
}

func TestDirStoreEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirStore(filepath.Join(dir, "sprites"))
	require.NoError(t, err)
	rec, contents := generateTestSprite(t, "../escape")

	require.NoError(t, store.Save(t.Context(), rec, contents))

	_, err = os.Stat(filepath.Join(dir, "escape.png"))
	assert.True(t, os.IsNotExist(err), "sprite was written outside the store")
	_, rc, err := store.Open(t.Context(), "../escape")
	require.NoError(t, err)
	assert.Equal(t, contents, readAllAndClose(t, rc))
}

func TestDirStoreReplacesOtherFormat(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)
	rec, contents := generateTestSprite(t, "fmt")
	rec.ContentType = "image/svg+xml"
	require.NoError(t, store.Save(t.Context(), rec, []byte("<svg></svg>")))

	rec.ContentType = "image/png"
	require.NoError(t, store.Save(t.Context(), rec, contents))

	got, rc, err := store.Open(t.Context(), "fmt")
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "image/png", got.ContentType)

	entries, err := os.ReadDir(store.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "expected no leftover files")
}

func TestDirStoreErrors(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	_, _, err = store.Open(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec, contents := generateTestSprite(t, "x")
	rec.ContentType = "image/gif"
	assert.ErrorIs(t, store.Save(t.Context(), rec, contents), spritegen.ErrParameterRange)

	rec.Key = ""
	assert.ErrorIs(t, store.Save(t.Context(), rec, contents), ErrInvalidKey)
}

func TestDirStoreLongNonASCIIKey(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)
	key := strings.Repeat("é", maxKeyLength/2)
	require.NoError(t, validateKey(key))
	rec, contents := generateTestSprite(t, key)

	require.NoError(t, store.Save(t.Context(), rec, contents))
	got, rc, err := store.Open(t.Context(), key)
	require.NoError(t, err)
	assert.Equal(t, contents, readAllAndClose(t, rc))
	assert.Equal(t, key, got.Key)

	entries, err := os.ReadDir(store.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Name(), 64+len(".png"))
}
