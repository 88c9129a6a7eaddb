// Package supervisor owns the core process and the two localhost
// HTTP servers, serializes rebuilds behind a single lock, and exposes
// a narrow Capability the admin HTTP handlers are given instead of
// the concrete type, so the handler package and this one don't import
// each other.
package supervisor

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
	"github.com/zhugenanbei181/music-frog-sub001/internal/platform"
	"github.com/zhugenanbei181/music-frog-sub001/internal/profile"
	"github.com/zhugenanbei181/music-frog-sub001/internal/settings"
	"github.com/zhugenanbei181/music-frog-sub001/internal/versionmgr"
)

const (
	staticPortBase = 4173
	staticPortSpan = 100
	adminPortBase  = 5210
	adminPortSpan  = 100

	coreStartupGrace = 500 * time.Millisecond
	portFreeTimeout  = 5 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Capability is the surface handlers are given: handlers never see
// *Supervisor itself.
type Capability interface {
	Rebuild(reason string) error
	FactoryReset() error
	CurrentPorts() (static, admin int)
	ShutdownAll() error
	Status() Snapshot

	SetUseBundledCore(use bool) error
	RefreshCoreVersionInfo(ctx context.Context) (map[versionmgr.Channel]string, error)

	EditorPath() string
	SetEditorPath(path string) error
	PickEditorPath() (string, error)
	OpenProfileInEditor(name string) error

	GetAppSettings() settings.AppSettings
	SaveAppSettings(patch func(*settings.AppSettings)) (settings.AppSettings, error)

	NotifySubscriptionUpdate(profileName string) error
}

// Supervisor implements Capability.
type Supervisor struct {
	paths    *platform.Paths
	versions *versionmgr.Manager
	profiles *profile.Store
	settings *settings.Store
	bus      *events.Bus
	resolver *versionmgr.GitHubResolver
	log      *logrus.Entry

	bundledCandidates []string
	staticPortPinned  int
	adminPortPinned   int

	rebuildMu sync.Mutex
	status    RebuildStatus

	mu          sync.Mutex
	core        *platform.ProcessHandle
	staticSrv   *http.Server
	adminSrv    *http.Server
	staticPort  int
	adminPort   int
	staticHndlr http.Handler
	adminHndlr  http.Handler
}

// Config bundles New's dependencies.
type Config struct {
	Paths             *platform.Paths
	Versions          *versionmgr.Manager
	Profiles          *profile.Store
	Settings          *settings.Store
	Bus               *events.Bus
	Resolver          *versionmgr.GitHubResolver
	Log               *logrus.Entry
	BundledCandidates []string
	// StaticPort/AdminPort pin a port; 0 means auto-select.
	StaticPort int
	AdminPort  int
}

func New(cfg Config) *Supervisor {
	return &Supervisor{
		paths:             cfg.Paths,
		versions:          cfg.Versions,
		profiles:          cfg.Profiles,
		settings:          cfg.Settings,
		bus:               cfg.Bus,
		resolver:          cfg.Resolver,
		log:               cfg.Log,
		bundledCandidates: cfg.BundledCandidates,
		staticPortPinned:  cfg.StaticPort,
		adminPortPinned:   cfg.AdminPort,
	}
}

// SetHandlers wires the static UI and admin API handlers. It must be
// called once before the first Rebuild; the admin handler is
// typically built from this same Supervisor's Capability view, which
// is why construction happens in two steps instead of one.
func (s *Supervisor) SetHandlers(static, admin http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staticHndlr = static
	s.adminHndlr = admin
}

func localBinaryName() string {
	if runtime.GOOS == "windows" {
		return "mihomo.exe"
	}
	return "mihomo"
}

// Status returns the current RebuildStatus snapshot.
func (s *Supervisor) Status() Snapshot { return s.status.Snapshot() }

// CurrentPorts returns the last-known bound ports for the two UIs (0
// if a server has never successfully bound).
func (s *Supervisor) CurrentPorts() (static, admin int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staticPort, s.adminPort
}

// Rebuild acquires the single rebuild lock, tears down and restarts
// the core and both servers, and publishes the terminal event.
// Concurrent callers serialize rather than fail fast.
func (s *Supervisor) Rebuild(reason string) error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	s.status.markStart(reason)
	s.bus.Publish(events.RebuildStarted, map[string]string{"reason": reason})

	if err := s.rebuildLocked(); err != nil {
		s.status.markError(err)
		s.bus.Publish(events.RebuildFailed, map[string]string{"reason": reason, "error": err.Error()})
		return err
	}

	s.status.markSuccess()
	s.bus.Publish(events.RebuildFinished, map[string]string{"reason": reason})
	s.bus.Publish(events.ProfilesChanged, nil)
	s.bus.Publish(events.CoreChanged, nil)
	return nil
}

func (s *Supervisor) rebuildLocked() error {
	s.mu.Lock()
	oldStatic, oldAdmin := s.staticPort, s.adminPort
	adminSrv, staticSrv, core := s.adminSrv, s.staticSrv, s.core
	s.adminSrv, s.staticSrv, s.core = nil, nil, nil
	staticHndlr, adminHndlr := s.staticHndlr, s.adminHndlr
	s.mu.Unlock()

	// Step 2: stop admin, static, core; ignore errors individually,
	// just log the first one. A teardown failure must not block the
	// rest of the rebuild.
	var firstTeardownErr error
	note := func(err error) {
		if err != nil && firstTeardownErr == nil {
			firstTeardownErr = err
		}
	}
	note(stopServer(adminSrv))
	note(stopServer(staticSrv))
	if core != nil {
		note(core.Kill())
		_ = platform.RemovePIDFile(s.paths.PIDFile())
	}
	if firstTeardownErr != nil && s.log != nil {
		s.log.WithError(firstTeardownErr).Warn("rebuild: teardown error (continuing)")
	}

	// Step 3: wait for old ports to free up.
	if oldStatic != 0 {
		platform.WaitPortFree(oldStatic, portFreeTimeout)
	}
	if oldAdmin != 0 {
		platform.WaitPortFree(oldAdmin, portFreeTimeout)
	}

	// Step 4: resolve the core binary.
	useBundled := s.settings.Get().UseBundledCore
	bundledDest := filepath.Join(s.paths.BundledCoreDir(), localBinaryName())
	binary, err := s.versions.ResolveCoreBinary(useBundled, s.bundledCandidates, bundledDest)
	if err != nil {
		return err
	}

	// Step 5: resolve the active profile, creating a default if none.
	if err := s.profiles.EnsureDefault(); err != nil {
		return err
	}
	configPath, ok := s.profiles.ActiveProfilePath()
	if !ok {
		return errs.Fatal("no active profile available after ensuring a default")
	}

	// Step 6: start the core process.
	args := []string{"-d", s.paths.ConfigsDir(), "-f", configPath}
	handle, err := platform.SpawnDetached(binary, args, s.paths.CoreLogFile())
	if err != nil {
		return errs.Wrap(errs.KindProcess, "failed to spawn core process", err)
	}
	if err := platform.WritePIDFile(s.paths.PIDFile(), handle.PID()); err != nil {
		_ = handle.Kill()
		return err
	}
	time.Sleep(coreStartupGrace)
	if !handle.Alive() {
		_ = platform.RemovePIDFile(s.paths.PIDFile())
		return errs.Process("Service failed to start")
	}
	s.mu.Lock()
	s.core = handle
	s.mu.Unlock()

	// Step 7: start the static server.
	staticLn, staticPort, err := listenPort(s.staticPortPinned, staticPortBase, staticPortSpan)
	if err != nil {
		return err
	}
	newStatic := &http.Server{Handler: staticHndlr}
	go func() { _ = newStatic.Serve(staticLn) }()
	s.mu.Lock()
	s.staticSrv, s.staticPort = newStatic, staticPort
	s.mu.Unlock()

	// Step 8: start the admin server.
	adminLn, adminPort, err := listenPort(s.adminPortPinned, adminPortBase, adminPortSpan)
	if err != nil {
		return err
	}
	newAdmin := &http.Server{Handler: adminHndlr}
	go func() { _ = newAdmin.Serve(adminLn) }()
	s.mu.Lock()
	s.adminSrv, s.adminPort = newAdmin, adminPort
	s.mu.Unlock()

	return nil
}

// FactoryReset wipes the home directory's state (profiles, installed
// versions, logs, sync state, PID file), resets settings to their
// defaults, and rebuilds from scratch. It holds the rebuild lock for
// the whole sequence and reports through the same status/event
// machinery as Rebuild, so the UIs see it as one rebuild cycle.
func (s *Supervisor) FactoryReset() error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	const reason = "factory-reset"
	s.status.markStart(reason)
	s.bus.Publish(events.RebuildStarted, map[string]string{"reason": reason})

	if err := s.factoryResetLocked(); err != nil {
		s.status.markError(err)
		s.bus.Publish(events.RebuildFailed, map[string]string{"reason": reason, "error": err.Error()})
		return err
	}

	s.status.markSuccess()
	s.bus.Publish(events.RebuildFinished, map[string]string{"reason": reason})
	s.bus.Publish(events.SettingsChanged, nil)
	s.bus.Publish(events.ProfilesChanged, nil)
	s.bus.Publish(events.CoreChanged, nil)
	return nil
}

func (s *Supervisor) factoryResetLocked() error {
	s.mu.Lock()
	oldStatic, oldAdmin := s.staticPort, s.adminPort
	s.mu.Unlock()

	if err := s.ShutdownAll(); err != nil && s.log != nil {
		s.log.WithError(err).Warn("factory reset: teardown error (continuing)")
	}
	if oldStatic != 0 {
		platform.WaitPortFree(oldStatic, portFreeTimeout)
	}
	if oldAdmin != 0 {
		platform.WaitPortFree(oldAdmin, portFreeTimeout)
	}

	for _, p := range []string{
		s.paths.ConfigsDir(),
		s.paths.VersionsDir(),
		s.paths.LogsDir(),
		s.paths.SyncStateDB(),
		s.paths.AppRoutingFile(),
		s.paths.PIDFile(),
	} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	if err := s.paths.EnsureDirs(); err != nil {
		return err
	}

	if _, err := s.settings.Patch(func(a *settings.AppSettings) { *a = settings.Defaults() }); err != nil {
		return err
	}

	// rebuildLocked recreates the default profile and brings the core
	// and both servers back up against the now-empty library.
	return s.rebuildLocked()
}

// ShutdownAll stops both servers and the core process. Idempotent.
func (s *Supervisor) ShutdownAll() error {
	s.mu.Lock()
	adminSrv, staticSrv, core := s.adminSrv, s.staticSrv, s.core
	s.adminSrv, s.staticSrv, s.core = nil, nil, nil
	s.mu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	note(stopServer(adminSrv))
	note(stopServer(staticSrv))
	if core != nil {
		note(core.Kill())
		_ = platform.RemovePIDFile(s.paths.PIDFile())
	}
	return firstErr
}

func stopServer(srv *http.Server) error {
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// listenPort binds preferred if nonzero, failing outright if it's
// taken (a pinned port is never scanned around), else scans
// [base, base+span) for the first bindable port.
func listenPort(preferred, base, span int) (net.Listener, int, error) {
	if preferred != 0 {
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(preferred)))
		if err != nil {
			return nil, 0, errs.Transport("port %d is not available: %v", preferred, err)
		}
		return ln, preferred, nil
	}
	for p := base; p < base+span; p++ {
		ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
		if err == nil {
			return ln, p, nil
		}
	}
	return nil, 0, errs.Transport("no free port available in [%d, %d)", base, base+span)
}

// SetUseBundledCore persists the setting; it does not itself trigger
// a rebuild; callers that need the running core to pick it up call
// Rebuild explicitly (e.g. via POST /core/activate, which disables it
// and rebuilds in one step).
func (s *Supervisor) SetUseBundledCore(use bool) error {
	_, err := s.settings.Patch(func(a *settings.AppSettings) { a.UseBundledCore = use })
	return err
}

// RefreshCoreVersionInfo resolves the latest tag for every release
// channel, warming the resolver's cache for the core/versions page.
func (s *Supervisor) RefreshCoreVersionInfo(ctx context.Context) (map[versionmgr.Channel]string, error) {
	if s.resolver == nil {
		return nil, errs.NotFound("no version resolver configured")
	}
	channels := []versionmgr.Channel{versionmgr.ChannelStable, versionmgr.ChannelBeta, versionmgr.ChannelNightly}
	out := make(map[versionmgr.Channel]string, len(channels))
	for _, ch := range channels {
		tag, _, err := s.resolver.Resolve(ctx, ch)
		if err != nil {
			if s.log != nil {
				s.log.WithError(err).WithField("channel", ch).Warn("refresh core version info")
			}
			continue
		}
		out[ch] = tag
	}
	if len(out) == 0 {
		return nil, errs.Transport("failed to resolve any release channel")
	}
	return out, nil
}

func (s *Supervisor) EditorPath() string { return s.settings.Get().EditorPath }

func (s *Supervisor) SetEditorPath(path string) error {
	_, err := s.settings.Patch(func(a *settings.AppSettings) { a.EditorPath = path })
	return err
}

// commonEditors is probed in order when no editor_path is configured
// and no native file-picker dependency is available in this build.
func commonEditors() []string {
	if runtime.GOOS == "windows" {
		return []string{"code.cmd", "notepad.exe"}
	}
	return []string{"code", "subl", "vim", "nano"}
}

// PickEditorPath probes a short list of common editors on PATH and
// returns the first hit. A native file-pick dialog belongs to the OS
// integration layer this build doesn't link.
func (s *Supervisor) PickEditorPath() (string, error) {
	for _, c := range commonEditors() {
		if p, err := exec.LookPath(c); err == nil {
			return p, nil
		}
	}
	return "", errs.NotFound("no editor found on PATH")
}

func (s *Supervisor) OpenProfileInEditor(name string) error {
	path := s.paths.ProfilePath(name)
	if _, err := os.Stat(path); err != nil {
		return errs.NotFound("profile %q not found", name)
	}
	return platform.OpenInEditor(s.EditorPath(), path)
}

func (s *Supervisor) GetAppSettings() settings.AppSettings { return s.settings.Get() }

func (s *Supervisor) SaveAppSettings(patch func(*settings.AppSettings)) (settings.AppSettings, error) {
	return s.settings.Patch(patch)
}

// NotifySubscriptionUpdate rebuilds only if the updated profile is
// the one currently active; refreshing an inactive profile never
// restarts the core.
func (s *Supervisor) NotifySubscriptionUpdate(profileName string) error {
	active, ok := s.profiles.ActiveName()
	if !ok || active != profileName {
		return nil
	}
	return s.Rebuild("subscription-update:" + profileName)
}
