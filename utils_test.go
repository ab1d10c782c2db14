package yolomerge

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFilePreservesMetadata(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	require.NoError(t, os.WriteFile(src, []byte("image bytes"), 0640))
	modTime := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, modTime, modTime))

	require.NoError(t, copyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(modTime))
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "sub", "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, moveFile(src, dst))
	assert.NoFileExists(t, src)
	assert.FileExists(t, dst)

	assert.Error(t, moveFile(src, dst))
}

func TestFilesByExtInDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "c.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.txt"), 0755))

	files, err := filesByExtInDir(dir, ".txt")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}, files)

	files, err = filesByExtInDir(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 3)

	_, err = filesByExtInDir(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "img", stem("/a/b/img.jpg"))
	assert.Equal(t, "img.rf.123", stem("img.rf.123.jpg"))
	assert.Equal(t, "noext", stem("noext"))
}
