// Package platform collects the thin, pure-abstraction ports the rest
// of the system depends on instead of the OS directly: home
// directory resolution, process spawn/kill, and port probing. Nothing
// here knows about profiles, cores, or WebDAV; that separation is
// what keeps the supervisor and scheduler unit-testable.
package platform

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const homeEnvVar = "MIHOMO_HOME"

// Paths resolves every well-known location under the home root. It
// is constructed once at startup and passed down; nothing in the rest
// of the tree calls os.UserConfigDir or reads MIHOMO_HOME directly.
type Paths struct {
	home string
}

// NewPaths resolves the home root: an explicit override (e.g. a CLI
// --home flag) wins, then $MIHOMO_HOME, then the platform user config
// directory.
func NewPaths(override string) (*Paths, error) {
	home := override
	if home == "" {
		home = os.Getenv(homeEnvVar)
	}
	if home == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		home = filepath.Join(dir, "mihomo-ctl")
	}
	return &Paths{home: home}, nil
}

func (p *Paths) Home() string { return p.home }

func (p *Paths) ConfigsDir() string { return filepath.Join(p.home, "configs") }

func (p *Paths) ProfilePath(name string) string {
	return filepath.Join(p.ConfigsDir(), name+".yaml")
}

func (p *Paths) CurrentProfileFile() string { return filepath.Join(p.ConfigsDir(), "current") }

func (p *Paths) VersionsDir() string { return filepath.Join(p.home, "versions") }

func (p *Paths) VersionDir(version string) string { return filepath.Join(p.VersionsDir(), version) }

func (p *Paths) DefaultVersionFile() string { return filepath.Join(p.VersionsDir(), "default") }

func (p *Paths) PIDFile() string { return filepath.Join(p.home, "mihomo.pid") }

func (p *Paths) LogsDir() string { return filepath.Join(p.home, "logs") }

func (p *Paths) CoreLogFile() string { return filepath.Join(p.LogsDir(), "mihomo.log") }

func (p *Paths) SyncStateDB() string { return filepath.Join(p.home, "sync_state.db") }

func (p *Paths) AppRoutingFile() string { return filepath.Join(p.home, "app_routing.toml") }

// DataDir is the root for settings and the bundled-core copy.
// Platforms that keep config and data separate can resolve this
// differently; by default it is the same root as Home, matching a
// single-directory desktop install.
func (p *Paths) DataDir() string { return p.home }

func (p *Paths) SettingsFile() string { return filepath.Join(p.DataDir(), "settings.toml") }

func (p *Paths) LegacySettingsFile() string { return filepath.Join(p.DataDir(), "settings.json") }

func (p *Paths) BundledCoreDir() string { return filepath.Join(p.DataDir(), "mihomo") }

// AdminUIDir and StaticUIDir hold the two static web UIs' built
// assets. This system serves them; building them happens elsewhere.
func (p *Paths) AdminUIDir() string { return filepath.Join(p.DataDir(), "webui", "admin") }

func (p *Paths) StaticUIDir() string { return filepath.Join(p.DataDir(), "webui", "static") }

// EnsureDirs creates every directory the system writes into, so
// first-run never has to special-case a missing parent.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.ConfigsDir(), p.VersionsDir(), p.LogsDir(), p.DataDir(), p.BundledCoreDir(), p.AdminUIDir(), p.StaticUIDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// PortFree reports whether a TCP port is currently bindable on
// loopback. Used by the port auto-select scan and the supervisor's
// post-teardown wait.
func PortFree(port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// WaitPortFree polls PortFree until it is true or the deadline
// elapses, returning whether the port became free in time.
func WaitPortFree(port int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if PortFree(port) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// FindFreePort scans [start, start+span) for the first bindable port.
func FindFreePort(start, span int) (int, bool) {
	for p := start; p < start+span; p++ {
		if PortFree(p) {
			return p, true
		}
	}
	return 0, false
}
