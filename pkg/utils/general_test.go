package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "true_123_c.us_3EB0", SanitizeFilename("true_123@c.us_3EB0"))
	assert.Equal(t, "a_b.jpg", SanitizeFilename("a/b.jpg"))
	assert.Equal(t, "_passwd", SanitizeFilename("../passwd"))
	assert.Equal(t, "file", SanitizeFilename("   "))
}

func TestJoinWithin(t *testing.T) {
	root := t.TempDir()

	p, err := JoinWithin(root, "c1/m1.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "c1", "m1.jpg"), p)

	_, err = JoinWithin(root, "../outside")
	assert.Error(t, err)
}

func TestCreateFolder(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b")
	require.NoError(t, CreateFolder(dir, ""))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGenerateAPIKey(t *testing.T) {
	k1 := GenerateAPIKey()
	k2 := GenerateAPIKey()
	assert.Len(t, k1, 64)
	assert.NotEqual(t, k1, k2)
}
