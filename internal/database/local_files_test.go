package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	files, err := NewLocalFiles(dir)
	require.NoError(t, err)

	path, err := files.Save("cap-1.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cap-1.jpg"), path)

	data, err := files.Read(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	require.NoError(t, files.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, files.Remove(path), "already gone")
}

func TestLocalFiles_StaysInsideDirectory(t *testing.T) {
	dir := t.TempDir()
	files, err := NewLocalFiles(dir)
	require.NoError(t, err)

	path, err := files.Save("../../escape.jpg", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.jpg"), path)

	_, err = files.Read(filepath.Join(dir, "..", "other.jpg"))
	assert.Error(t, err)
	assert.Error(t, files.Remove("/etc/passwd"))
}
