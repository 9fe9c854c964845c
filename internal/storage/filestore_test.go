package storage

import (
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndOpen(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	name, size, err := store.Save(strings.NewReader("%PDF-1.4 fake"), ".pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(13), size)
	assert.Equal(t, ".pdf", filepath.Ext(name))
	assert.NotContains(t, name, string(filepath.Separator), "stored path stays inside the store dir")

	f, err := store.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestSaveUniqueNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	a, _, err := store.Save(strings.NewReader("one"), ".pdf")
	require.NoError(t, err)
	b, _, err := store.Save(strings.NewReader("two"), ".pdf")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRemove(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	name, _, err := store.Save(strings.NewReader("bytes"), ".pdf")
	require.NoError(t, err)

	require.NoError(t, store.Remove(name))
	_, err = store.Open(name)
	require.Error(t, err)

	assert.NoError(t, store.Remove(name), "removing twice is fine")
	assert.NoError(t, store.Remove(""), "empty path is a no-op")
}
