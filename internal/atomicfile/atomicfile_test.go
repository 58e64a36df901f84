package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_CreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "products.json")

	require.NoError(t, WriteFile(path, []byte(`[1]`), 0o644))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(data))

	require.NoError(t, WriteFile(path, []byte(`[1,2]`), 0o644))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))
}

func TestWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.json")

	for i := 0; i < 3; i++ {
		require.NoError(t, WriteFile(path, []byte(`[]`), 0o644))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "orders.json", entries[0].Name())
}

func TestWriteFile_FailureKeepsPreviousContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	require.NoError(t, WriteFile(path, []byte(`["old"]`), 0o644))

	// a directory at the target makes the rename fail
	target := filepath.Join(dir, "blocked")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "child"), 0o755))

	err := WriteFile(target, []byte(`["new"]`), 0o644)
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `["old"]`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
