package profile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// metadataFile holds everything about a profile that isn't the YAML
// body itself: subscription wiring and the active pointer live beside
// the library rather than inside any one profile's content, so that
// editing a profile's YAML by hand never has to know about them.
const metadataFileName = ".profiles.json"

type metadataEntry struct {
	SubscriptionURL     string     `json:"subscription_url,omitempty"`
	AutoUpdateEnabled   bool       `json:"auto_update_enabled"`
	UpdateIntervalHours int        `json:"update_interval_hours"`
	LastUpdated         *time.Time `json:"last_updated,omitempty"`
	NextUpdate          *time.Time `json:"next_update,omitempty"`
}

// Store is the on-disk collection of YAML profiles plus the active
// pointer: the file names under configs/ are exactly the names List
// returns.
type Store struct {
	dir     string
	current string // path to the "current" pointer file

	mu   sync.Mutex
	meta map[string]metadataEntry

	log *logrus.Entry
}

// New opens (creating if absent) the profile store rooted at dir.
func New(dir, currentFile string, log *logrus.Entry) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{dir: dir, current: currentFile, meta: map[string]metadataEntry{}, log: log}
	if err := s.loadMetadata(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) metadataPath() string { return filepath.Join(s.dir, metadataFileName) }

func (s *Store) loadMetadata() error {
	data, err := os.ReadFile(s.metadataPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.meta)
}

func (s *Store) saveMetadataLocked() error {
	data, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.metadataPath(), data, 0o644)
}

func (s *Store) profilePath(name string) string { return filepath.Join(s.dir, name+".yaml") }

func (s *Store) activeName() (string, bool) {
	data, err := os.ReadFile(s.current)
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", false
	}
	return name, true
}

// List returns every profile in the library, sorted by name, with the
// active flag and subscription metadata populated.
func (s *Store) List() ([]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	active, hasActive := s.activeName()

	var profiles []Profile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".yaml")
		profiles = append(profiles, s.toProfileLocked(name, hasActive && name == active))
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

func (s *Store) toProfileLocked(name string, active bool) Profile {
	m := s.meta[name]
	return Profile{
		Name:                name,
		Path:                s.profilePath(name),
		Active:              active,
		SubscriptionURL:     m.SubscriptionURL,
		AutoUpdateEnabled:   m.AutoUpdateEnabled,
		UpdateIntervalHours: m.UpdateIntervalHours,
		LastUpdated:         m.LastUpdated,
		NextUpdate:          m.NextUpdate,
	}
}

// Get returns a single profile's catalog entry (not its content).
func (s *Store) Get(name string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.profilePath(name)); err != nil {
		return Profile{}, errs.NotFound("profile %q not found", name)
	}
	active, hasActive := s.activeName()
	return s.toProfileLocked(name, hasActive && name == active), nil
}

// LoadContent reads a profile's raw YAML body.
func (s *Store) LoadContent(name string) (string, error) {
	data, err := os.ReadFile(s.profilePath(name))
	if os.IsNotExist(err) {
		return "", errs.NotFound("profile %q not found", name)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ValidateYAML checks content is non-empty and parses as a YAML
// mapping; the active profile must always satisfy this.
func ValidateYAML(content string) error {
	if strings.TrimSpace(content) == "" {
		return errs.Validation("profile content must not be empty")
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(content), &node); err != nil {
		return errs.Validation("profile content is not valid YAML: %v", err)
	}
	if len(node.Content) == 0 {
		return errs.Validation("profile content must not be empty")
	}
	if node.Content[0].Kind != yaml.MappingNode {
		return errs.Validation("profile content must be a YAML mapping")
	}
	return nil
}

// Save writes content for name, creating the profile if it doesn't
// already exist. It does not touch subscription metadata.
func (s *Store) Save(name, content string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateYAML(content); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.WriteFile(s.profilePath(name), []byte(content), 0o644)
}

// SetActive sets name as the sole active profile. Returns NotFound if
// it doesn't exist on disk.
func (s *Store) SetActive(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.profilePath(name)); err != nil {
		return errs.NotFound("profile %q not found", name)
	}
	return os.WriteFile(s.current, []byte(name), 0o644)
}

// ActiveProfilePath returns the file path of the active profile, or
// ok=false if none is set or the pointer is stale.
func (s *Store) ActiveProfilePath() (path string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, has := s.activeName()
	if !has {
		return "", false
	}
	p := s.profilePath(name)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// ActiveName returns the currently active profile's name, if any.
func (s *Store) ActiveName() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, has := s.activeName()
	if !has {
		return "", false
	}
	if _, err := os.Stat(s.profilePath(name)); err != nil {
		return "", false
	}
	return name, true
}

// Delete removes a profile. The active profile cannot be deleted.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, hasActive := s.activeName()
	if hasActive && active == name {
		return errs.Conflict("cannot delete the active profile %q", name)
	}
	if err := os.Remove(s.profilePath(name)); err != nil {
		if os.IsNotExist(err) {
			return errs.NotFound("profile %q not found", name)
		}
		return err
	}
	delete(s.meta, name)
	return s.saveMetadataLocked()
}

// ClearInactive deletes every profile except the active one.
func (s *Store) ClearInactive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	active, _ := s.activeName()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".yaml")
		if name == active {
			continue
		}
		if err := os.Remove(s.profilePath(name)); err != nil && !os.IsNotExist(err) {
			return err
		}
		delete(s.meta, name)
	}
	return s.saveMetadataLocked()
}

// AttachSubscription sets or updates a profile's subscription
// metadata, moving it from NoSubscription to Pending.
func (s *Store) AttachSubscription(name, url string, autoUpdate bool, intervalHours int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.profilePath(name)); err != nil {
		return errs.NotFound("profile %q not found", name)
	}
	s.meta[name] = metadataEntry{
		SubscriptionURL:     url,
		AutoUpdateEnabled:   autoUpdate,
		UpdateIntervalHours: NormalizeInterval(intervalHours),
		LastUpdated:         s.meta[name].LastUpdated,
		NextUpdate:          s.meta[name].NextUpdate,
	}
	return s.saveMetadataLocked()
}

// DetachSubscription clears a profile's subscription metadata.
func (s *Store) DetachSubscription(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meta, name)
	return s.saveMetadataLocked()
}

// MarkUpdated records a successful fetch-and-save, advancing
// next_update. Failed fetches never advance either timestamp.
func (s *Store) MarkUpdated(name string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.meta[name]
	next := now.Add(time.Duration(NormalizeInterval(m.UpdateIntervalHours)) * time.Hour)
	m.LastUpdated = &now
	m.NextUpdate = &next
	s.meta[name] = m
	return s.saveMetadataLocked()
}

// DueForAutoUpdate returns the names of profiles whose subscription is
// enabled and due.
func (s *Store) DueForAutoUpdate(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []string
	for name, m := range s.meta {
		if !m.AutoUpdateEnabled || m.SubscriptionURL == "" {
			continue
		}
		p := Profile{AutoUpdateEnabled: m.AutoUpdateEnabled, NextUpdate: m.NextUpdate}
		if p.Due(now) {
			due = append(due, name)
		}
	}
	sort.Strings(due)
	return due
}

// SubscriptionURL returns the subscription URL attached to name, if
// any.
func (s *Store) SubscriptionURL(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meta[name]
	if !ok || m.SubscriptionURL == "" {
		return "", false
	}
	return m.SubscriptionURL, true
}

// EnsureDefault creates a minimal default profile if the library is
// empty and activates it, so a rebuild always has a config to hand
// the core.
func (s *Store) EnsureDefault() error {
	profiles, err := s.List()
	if err != nil {
		return err
	}
	if len(profiles) > 0 {
		if _, ok := s.ActiveName(); ok {
			return nil
		}
		return s.SetActive(profiles[0].Name)
	}
	const name = "default"
	const content = "port: 7890\nsocks-port: 7891\nmode: rule\nlog-level: info\nexternal-controller: 127.0.0.1:9090\n"
	if err := s.Save(name, content); err != nil {
		return err
	}
	return s.SetActive(name)
}
