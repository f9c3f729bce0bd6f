package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDirIfNotExist(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "uploads", "FAMTEST")

	require.NoError(t, CreateDirIfNotExist(nested))
	require.NoError(t, CreateDirIfNotExist(nested))

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	filePath := filepath.Join(root, "kinfolk.db")
	require.NoError(t, os.WriteFile(filePath, []byte("db"), 0600))
	assert.Error(t, CreateDirIfNotExist(filePath))
}

func TestFileExist(t *testing.T) {
	root := t.TempDir()
	filePath := filepath.Join(root, "kinfolk.db")

	assert.False(t, FileExist(filePath))
	assert.False(t, FileExist(root))

	require.NoError(t, os.WriteFile(filePath, []byte("db"), 0600))
	assert.True(t, FileExist(filePath))
}
