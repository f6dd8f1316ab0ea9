package mediastore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, "pdf", Extension("application/pdf", "Report.PDF"))
	assert.Equal(t, "jpeg", Extension("image/jpeg", ""))
	assert.Equal(t, "ogg", Extension("audio/ogg; codecs=opus", ""))
	assert.Equal(t, "svg_xml", Extension("image/svg+xml", ""))
	assert.Equal(t, "bin", Extension("", ""))
	assert.Equal(t, "webp", Extension("image/webp", "trailing."))
}

func TestSave_WritesUnderSessionDir(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	rel, err := store.Save("c1", "m1", "image/jpeg", "", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "c1/m1.jpeg", rel)
	assert.True(t, store.Exists(rel))

	data, err := os.ReadFile(filepath.Join(root, "c1", "m1.jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
}

func TestSave_SniffsMissingMime(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	rel, err := store.Save("c1", "m2", "", "", png)
	require.NoError(t, err)
	assert.Equal(t, "c1/m2.png", rel)
}

func TestSave_SanitizesIDs(t *testing.T) {
	root := t.TempDir()
	store, err := NewDiskStore(root)
	require.NoError(t, err)

	rel, err := store.Save("../evil", "../../m", "text/plain", "", []byte("x"))
	require.NoError(t, err)
	full, err := store.Resolve(rel)
	require.NoError(t, err)

	absRoot, _ := filepath.Abs(root)
	absFull, _ := filepath.Abs(full)
	assert.True(t, strings.HasPrefix(absFull, absRoot+string(filepath.Separator)))
}

func TestResolve_RejectsTraversal(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Resolve("../../etc/passwd")
	assert.Error(t, err)
	assert.False(t, store.Exists("../../etc/passwd"))
}

func TestRemoveAndRemoveSession(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.Save("c1", "a", "text/plain", "", []byte("a"))
	require.NoError(t, err)
	b, err := store.Save("c1", "b", "text/plain", "", []byte("b"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(a))
	require.NoError(t, store.Remove(a))
	assert.False(t, store.Exists(a))
	assert.True(t, store.Exists(b))

	require.NoError(t, store.RemoveSession("c1"))
	assert.False(t, store.Exists(b))
}
