// Package versionmgr implements the catalog of installed Mihomo core
// binaries, the "default" pointer, semver-aware ordering, and bundled
// -core resolution.
package versionmgr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	gosemver "github.com/coreos/go-semver/semver"
	"github.com/sirupsen/logrus"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// Channel is a release track to resolve the latest tag for.
type Channel string

const (
	ChannelStable  Channel = "stable"
	ChannelBeta    Channel = "beta"
	ChannelNightly Channel = "nightly"
)

// Entry is one installed core version.
type Entry struct {
	Version   string `json:"version"`
	Path      string `json:"path"`
	IsDefault bool   `json:"is_default"`
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "mihomo.exe"
	}
	return "mihomo"
}

// Manager owns <home>/versions.
type Manager struct {
	dir        string
	defaultPtr string
	// downloadClient has no client-side timeout of its own; Install
	// bounds each transfer with a context deadline instead, since a
	// whole-request timeout short enough for an API call would sever a
	// long archive download mid-body.
	downloadClient *http.Client
	log            *logrus.Entry
}

// New constructs a Manager rooted at versionsDir, with defaultPtr the
// path to the "default" pointer file.
func New(versionsDir, defaultPtr string, log *logrus.Entry) *Manager {
	return &Manager{
		dir:            versionsDir,
		defaultPtr:     defaultPtr,
		downloadClient: &http.Client{},
		log:            log,
	}
}

func (m *Manager) binaryPath(version string) string {
	return filepath.Join(m.dir, version, binaryName())
}

// ListInstalled enumerates <home>/versions/<v>/mihomo[.exe], newest
// first.
func (m *Manager) ListInstalled() ([]Entry, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	def, _ := m.GetDefault()

	var versions []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.dir, e.Name(), binaryName())); err != nil {
			continue
		}
		versions = append(versions, e.Name())
	}
	versions = SortDescending(versions)

	out := make([]Entry, len(versions))
	for i, v := range versions {
		out[i] = Entry{Version: v, Path: m.binaryPath(v), IsDefault: v == def}
	}
	return out, nil
}

// GetDefault reads the default pointer. ok is false if unset.
func (m *Manager) GetDefault() (string, bool) {
	data, err := os.ReadFile(m.defaultPtr)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", false
	}
	return v, true
}

// SetDefault requires v to already be installed.
func (m *Manager) SetDefault(v string) error {
	if _, err := os.Stat(m.binaryPath(v)); err != nil {
		return errs.NotFound("version %q is not installed", v)
	}
	return os.WriteFile(m.defaultPtr, []byte(v), 0o644)
}

// GetBinaryPath resolves v (or the default, if v is empty) to an
// installed binary path.
func (m *Manager) GetBinaryPath(v string) (string, error) {
	if v == "" {
		def, ok := m.GetDefault()
		if !ok {
			return "", errs.NotFound("no default version set")
		}
		v = def
	}
	path := m.binaryPath(v)
	if _, err := os.Stat(path); err != nil {
		return "", errs.NotFound("version %q is not installed", v)
	}
	return path, nil
}

// ResolveCoreBinary picks the binary the supervisor should spawn:
// the bundled copy, the default installed version, or the greatest
// installed version, in that order of preference.
func (m *Manager) ResolveCoreBinary(useBundled bool, bundledCandidates []string, bundledDest string) (string, error) {
	installed, err := m.ListInstalled()
	if err != nil {
		return "", err
	}

	copyBundled := func() (string, bool) {
		for _, c := range bundledCandidates {
			if _, err := os.Stat(c); err == nil {
				if err := copyExecutable(c, bundledDest); err == nil {
					return bundledDest, true
				}
			}
		}
		return "", false
	}

	if len(installed) == 0 {
		if path, ok := copyBundled(); ok {
			return path, nil
		}
		return "", errs.Fatal("no usable core: nothing installed and no bundled binary available")
	}

	if useBundled {
		if path, ok := copyBundled(); ok {
			return path, nil
		}
	}

	if def, ok := m.GetDefault(); ok {
		if path, err := m.GetBinaryPath(def); err == nil {
			return path, nil
		}
	}

	// default missing or unset: promote the greatest installed version.
	greatest := installed[0].Version
	if err := m.SetDefault(greatest); err != nil {
		return "", err
	}
	return m.binaryPath(greatest), nil
}

func copyExecutable(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// Install downloads and extracts the archive for version v from
// GitHub releases into <home>/versions/<v>/.
func (m *Manager) Install(ctx context.Context, v, downloadURL string) error {
	// A well-formed release tag is validated with go-semver before we
	// bother hitting the network: the display-side ordering tolerates
	// junk version strings, but install only ever receives tags GitHub
	// itself published.
	if _, err := gosemver.NewVersion(strings.TrimPrefix(v, "v")); err != nil {
		return errs.Validation("refusing to install %q: not a well-formed release version", v)
	}

	ctx, cancel := context.WithTimeout(ctx, 600*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return err
	}
	resp, err := m.downloadClient.Do(req)
	if err != nil {
		return errs.Transport("downloading core %s: %v", v, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.Transport("downloading core %s: HTTP %d", v, resp.StatusCode)
	}

	destDir := filepath.Join(m.dir, v)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	dest := filepath.Join(destDir, binaryName())
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := extractArchive(resp.Body, downloadURL, out); err != nil {
		return errs.Wrap(errs.KindProcess, fmt.Sprintf("extracting core archive for %s", v), err)
	}
	m.log.WithField("version", v).Info("installed core version")
	return nil
}

// InstallChannel resolves the latest tag for ch then installs it.
func (m *Manager) InstallChannel(ctx context.Context, ch Channel, resolve func(context.Context, Channel) (tag, downloadURL string, err error)) (string, error) {
	tag, url, err := resolve(ctx, ch)
	if err != nil {
		return "", errs.Transport("resolving %s channel: %v", ch, err)
	}
	if err := m.Install(ctx, tag, url); err != nil {
		return "", err
	}
	return tag, nil
}

// UpdateToLatest resolves the latest stable tag, installs it if it is
// not already present, and makes it the default. updated is false when
// the default already names the latest tag and nothing was touched.
func (m *Manager) UpdateToLatest(ctx context.Context, resolve func(context.Context, Channel) (tag, downloadURL string, err error)) (tag string, updated bool, err error) {
	tag, url, err := resolve(ctx, ChannelStable)
	if err != nil {
		return "", false, errs.Transport("resolving latest stable release: %v", err)
	}
	if def, ok := m.GetDefault(); ok && def == tag {
		return tag, false, nil
	}

	installed, err := m.ListInstalled()
	if err != nil {
		return "", false, err
	}
	have := false
	for _, e := range installed {
		if e.Version == tag {
			have = true
			break
		}
	}
	if !have {
		if err := m.Install(ctx, tag, url); err != nil {
			return "", false, err
		}
	}
	if err := m.SetDefault(tag); err != nil {
		return "", false, err
	}
	return tag, true, nil
}

// PruneOthers uninstalls every version except keep, logging failures
// and continuing: a stale directory is not worth failing an update
// over.
func (m *Manager) PruneOthers(keep string) {
	installed, err := m.ListInstalled()
	if err != nil {
		if m.log != nil {
			m.log.WithError(err).Warn("listing versions for prune")
		}
		return
	}
	for _, e := range installed {
		if e.Version == keep {
			continue
		}
		if err := m.Uninstall(e.Version); err != nil && m.log != nil {
			m.log.WithError(err).WithField("version", e.Version).Warn("pruning old core version")
		}
	}
}

// Uninstall removes an installed version's directory. Clears the
// default pointer if it named this version.
func (m *Manager) Uninstall(v string) error {
	if err := os.RemoveAll(filepath.Join(m.dir, v)); err != nil {
		return err
	}
	if def, ok := m.GetDefault(); ok && def == v {
		return os.Remove(m.defaultPtr)
	}
	return nil
}

var errUnsupportedArchive = fmt.Errorf("unsupported archive format")
