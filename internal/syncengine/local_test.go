package syncengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLocalFiltersToYAMLAndTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("port: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.toml"), []byte("x = 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.yml"), []byte("y: 2\n"), 0o644))

	entries, err := IndexLocal(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byPath := map[string]LocalEntry{}
	for _, e := range entries {
		byPath[e.RelativePath] = e
	}
	assert.Contains(t, byPath, "a.yaml")
	assert.Contains(t, byPath, "b.toml")
	assert.Contains(t, byPath, "sub/c.yml")
	assert.NotEmpty(t, byPath["a.yaml"].Hash)
}

func TestMd5HexIsDeterministic(t *testing.T) {
	a := md5Hex([]byte("hello"))
	b := md5Hex([]byte("hello"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, md5Hex([]byte("world")))
}
