// Package approuting manages the per-app proxy routing document at
// <home>/app_routing.toml: which application packages get routed
// through the proxy. The document only describes the selection; the
// platform layer that enforces it (a VPN service on mobile, a system
// proxy shim on desktop) consumes it through the admin API.
package approuting

import (
	"os"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// Mode selects how the package list is interpreted.
type Mode string

const (
	// ModeProxyAll routes every app through the proxy; the package
	// list is ignored.
	ModeProxyAll Mode = "proxy_all"
	// ModeProxySelected routes only the listed packages.
	ModeProxySelected Mode = "proxy_selected"
	// ModeBypassSelected routes everything except the listed packages.
	ModeBypassSelected Mode = "bypass_selected"
)

// ParseMode validates a mode string from the wire.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeProxyAll, ModeProxySelected, ModeBypassSelected:
		return Mode(s), nil
	default:
		return "", errs.Validation("invalid app routing mode %q", s)
	}
}

// Config is the persisted routing selection.
type Config struct {
	Mode     Mode     `toml:"mode" json:"mode"`
	Packages []string `toml:"packages" json:"packages"`
}

// DefaultConfig routes everything through the proxy.
func DefaultConfig() Config {
	return Config{Mode: ModeProxyAll, Packages: []string{}}
}

func (c *Config) has(pkg string) bool {
	for _, p := range c.Packages {
		if p == pkg {
			return true
		}
	}
	return false
}

// ShouldProxy reports whether pkg gets routed through the proxy under
// this configuration.
func (c *Config) ShouldProxy(pkg string) bool {
	switch c.Mode {
	case ModeProxySelected:
		return c.has(pkg)
	case ModeBypassSelected:
		return !c.has(pkg)
	default:
		return true
	}
}

// AllowedPackages is the whitelist handed to a platform VPN builder:
// nil means "proxy everything". An empty selection in proxy_selected
// mode also falls back to everything rather than routing nothing.
func (c *Config) AllowedPackages() []string {
	if c.Mode != ModeProxySelected || len(c.Packages) == 0 {
		return nil
	}
	out := make([]string, len(c.Packages))
	copy(out, c.Packages)
	return out
}

// DisallowedPackages is the bypass list for bypass_selected mode; nil
// in every other mode.
func (c *Config) DisallowedPackages() []string {
	if c.Mode != ModeBypassSelected || len(c.Packages) == 0 {
		return nil
	}
	out := make([]string, len(c.Packages))
	copy(out, c.Packages)
	return out
}

// Store reads and writes the routing document. Single-writer: every
// mutation reloads, edits, and rewrites the whole file under one
// mutex.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the persisted configuration, or the default when the
// file does not exist yet.
func (s *Store) Load() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errs.Validation("parsing app routing config: %v", err)
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return Config{}, err
	}
	sort.Strings(cfg.Packages)
	return cfg, nil
}

// Save persists cfg, normalizing the package list to a sorted,
// deduplicated set.
func (s *Store) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

func (s *Store) saveLocked(cfg Config) error {
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return err
	}
	cfg.Packages = dedupe(cfg.Packages)
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// SetMode changes the routing mode, keeping the package list.
func (s *Store) SetMode(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.loadLocked()
	if err != nil {
		return err
	}
	cfg.Mode = mode
	return s.saveLocked(cfg)
}

// SetPackages replaces the whole selection.
func (s *Store) SetPackages(packages []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.loadLocked()
	if err != nil {
		return err
	}
	cfg.Packages = packages
	return s.saveLocked(cfg)
}

// AddPackage inserts pkg into the selection.
func (s *Store) AddPackage(pkg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.loadLocked()
	if err != nil {
		return err
	}
	cfg.Packages = append(cfg.Packages, pkg)
	return s.saveLocked(cfg)
}

// RemovePackage drops pkg from the selection.
func (s *Store) RemovePackage(pkg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.loadLocked()
	if err != nil {
		return err
	}
	kept := cfg.Packages[:0]
	for _, p := range cfg.Packages {
		if p != pkg {
			kept = append(kept, p)
		}
	}
	cfg.Packages = kept
	return s.saveLocked(cfg)
}

// TogglePackage flips pkg's membership and reports whether it is
// selected afterwards.
func (s *Store) TogglePackage(pkg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	if cfg.has(pkg) {
		kept := cfg.Packages[:0]
		for _, p := range cfg.Packages {
			if p != pkg {
				kept = append(kept, p)
			}
		}
		cfg.Packages = kept
		return false, s.saveLocked(cfg)
	}
	cfg.Packages = append(cfg.Packages, pkg)
	return true, s.saveLocked(cfg)
}

func dedupe(packages []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(packages))
	for _, p := range packages {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
