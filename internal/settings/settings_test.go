package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "settings.toml"), filepath.Join(dir, "settings.json"))
	require.NoError(t, err)

	got := s.Get()
	assert.True(t, got.UseBundledCore)
	assert.Equal(t, "zh-CN", got.Language)
	assert.Equal(t, "system", got.Theme)
	assert.Equal(t, 60, got.WebDAV.SyncIntervalMins)
	assert.FileExists(t, filepath.Join(dir, "settings.toml"))
}

func TestLoadMigratesLegacyJSON(t *testing.T) {
	dir := t.TempDir()
	legacy := AppSettings{Language: "en-US", Theme: "dark", UseBundledCore: false}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	legacyPath := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(legacyPath, data, 0o644))

	tomlPath := filepath.Join(dir, "settings.toml")
	s, err := Load(tomlPath, legacyPath)
	require.NoError(t, err)

	got := s.Get()
	assert.Equal(t, "en-US", got.Language)
	assert.Equal(t, "dark", got.Theme)
	assert.False(t, got.UseBundledCore)

	// legacy JSON is left in place
	assert.FileExists(t, legacyPath)
	assert.FileExists(t, tomlPath)
}

func TestPatchPersistsAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "settings.toml")
	s, err := Load(tomlPath, filepath.Join(dir, "settings.json"))
	require.NoError(t, err)

	_, err = s.Patch(func(a *AppSettings) {
		a.Theme = "dark"
		a.WebDAV.Enabled = true
		a.WebDAV.URL = "https://dav.example.com"
	})
	require.NoError(t, err)

	reloaded, err := Load(tomlPath, filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	got := reloaded.Get()
	assert.Equal(t, "dark", got.Theme)
	assert.True(t, got.WebDAV.Enabled)
	assert.Equal(t, "https://dav.example.com", got.WebDAV.URL)
	// untouched fields keep defaults: save . load == id
	assert.True(t, got.UseBundledCore)
}
