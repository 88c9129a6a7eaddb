// Package settings persists AppSettings as TOML via BurntSushi/toml,
// migrating a legacy JSON file to TOML on first load.
package settings

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
)

// WebDavConfig holds the WebDAV sync connection and cadence.
type WebDavConfig struct {
	Enabled          bool   `json:"enabled" toml:"enabled"`
	URL              string `json:"url" toml:"url"`
	Username         string `json:"username" toml:"username"`
	Password         string `json:"password" toml:"password"`
	SyncIntervalMins int    `json:"sync_interval_mins" toml:"sync_interval_mins"`
	SyncOnStartup    bool   `json:"sync_on_startup" toml:"sync_on_startup"`
}

// AppSettings is the persisted user settings document.
type AppSettings struct {
	OpenWebUIOnStartup bool         `json:"open_webui_on_startup" toml:"open_webui_on_startup"`
	EditorPath         string       `json:"editor_path,omitempty" toml:"editor_path,omitempty"`
	UseBundledCore     bool         `json:"use_bundled_core" toml:"use_bundled_core"`
	Language           string       `json:"language" toml:"language"`
	Theme              string       `json:"theme" toml:"theme"`
	WebDAV             WebDavConfig `json:"webdav" toml:"webdav"`
}

// Defaults is the document a fresh install starts from.
func Defaults() AppSettings {
	return AppSettings{
		UseBundledCore: true,
		Language:       "zh-CN",
		Theme:          "system",
		WebDAV: WebDavConfig{
			SyncIntervalMins: 60,
		},
	}
}

// Store guards AppSettings with a reader-writer lock: readers
// dominate, so every handler that merely displays settings takes
// RLock.
type Store struct {
	tomlPath   string
	legacyPath string

	mu       sync.RWMutex
	settings AppSettings
}

// Load opens (or migrates, or creates with defaults) the settings
// file at tomlPath. If tomlPath doesn't exist but legacyPath (the old
// JSON document) does, it is parsed and written out as TOML; the JSON
// file is left in place untouched.
func Load(tomlPath, legacyPath string) (*Store, error) {
	s := &Store{tomlPath: tomlPath, legacyPath: legacyPath, settings: Defaults()}

	if _, err := os.Stat(tomlPath); err == nil {
		if _, err := toml.DecodeFile(tomlPath, &s.settings); err != nil {
			return nil, err
		}
		return s, nil
	}

	if data, err := os.ReadFile(legacyPath); err == nil {
		legacy := Defaults()
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, err
		}
		s.settings = legacy
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) persistLocked() error {
	f, err := os.Create(s.tomlPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(s.settings)
}

// Get returns a copy of the current settings.
func (s *Store) Get() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Patch applies fn to a copy of the current settings and persists the
// result. Only fields the caller sets are changed, the rest are left
// as fn leaves them.
func (s *Store) Patch(fn func(*AppSettings)) (AppSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := s.settings
	fn(&updated)
	s.settings = updated
	if err := s.persistLocked(); err != nil {
		return AppSettings{}, err
	}
	return s.settings, nil
}
