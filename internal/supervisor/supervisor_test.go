package supervisor

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
	"github.com/zhugenanbei181/music-frog-sub001/internal/platform"
	"github.com/zhugenanbei181/music-frog-sub001/internal/profile"
	"github.com/zhugenanbei181/music-frog-sub001/internal/settings"
	"github.com/zhugenanbei181/music-frog-sub001/internal/versionmgr"
)

// fakeCoreScript writes a long-lived shell script standing in for the
// Mihomo binary: the rebuild algorithm only needs something it can
// spawn, PID-probe after 500ms, and kill on teardown.
func fakeCoreScript(t *testing.T, dir, version string) {
	t.Helper()
	binDir := filepath.Join(dir, version)
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	script := "#!/bin/sh\nsleep 30\n"
	path := filepath.Join(binDir, "mihomo")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
}

func newTestSupervisor(t *testing.T, mutate func(cfg *Config)) (*Supervisor, *platform.Paths) {
	t.Helper()
	home := t.TempDir()
	paths, err := platform.NewPaths(home)
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	fakeCoreScript(t, paths.VersionsDir(), "v1.0.0")

	log := logrus.NewEntry(logrus.New())

	profiles, err := profile.New(paths.ConfigsDir(), paths.CurrentProfileFile(), log)
	require.NoError(t, err)

	versions := versionmgr.New(paths.VersionsDir(), paths.DefaultVersionFile(), log)

	st, err := settings.Load(paths.SettingsFile(), paths.LegacySettingsFile())
	require.NoError(t, err)

	bus := events.New()

	cfg := Config{
		Paths:    paths,
		Versions: versions,
		Profiles: profiles,
		Settings: st,
		Bus:      bus,
		Log:      log,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	sup := New(cfg)
	sup.SetHandlers(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }),
	)
	t.Cleanup(func() { _ = sup.ShutdownAll() })
	return sup, paths
}

func TestRebuildStartsCoreAndServers(t *testing.T) {
	sup, paths := newTestSupervisor(t, nil)
	bus := sup.bus
	sub := bus.Subscribe()
	defer sub.Close()

	require.NoError(t, sup.Rebuild("initial"))

	staticPort, adminPort := sup.CurrentPorts()
	assert.NotZero(t, staticPort)
	assert.NotZero(t, adminPort)

	pid, err := platform.ReadPIDFile(paths.PIDFile())
	require.NoError(t, err)
	assert.True(t, platform.PIDAlive(pid))

	snap := sup.Status()
	assert.False(t, snap.InProgress)
	assert.Nil(t, snap.LastError)
	require.NotNil(t, snap.LastReason)
	assert.Equal(t, "initial", *snap.LastReason)

	kinds := drainKinds(t, sub, 4)
	assert.Contains(t, kinds, events.RebuildStarted)
	assert.Contains(t, kinds, events.RebuildFinished)
	assert.Contains(t, kinds, events.ProfilesChanged)
	assert.Contains(t, kinds, events.CoreChanged)
}

func drainKinds(t *testing.T, sub *events.Subscription, n int) []events.Kind {
	t.Helper()
	var kinds []events.Kind
	for i := 0; i < n; i++ {
		select {
		case ev := <-sub.Events():
			kinds = append(kinds, ev.Kind)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d/%d", i+1, n)
		}
	}
	return kinds
}

func TestRebuildFailsWhenNoCoreBinaryAvailable(t *testing.T) {
	home := t.TempDir()
	paths, err := platform.NewPaths(home)
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())
	log := logrus.NewEntry(logrus.New())

	profiles, err := profile.New(paths.ConfigsDir(), paths.CurrentProfileFile(), log)
	require.NoError(t, err)
	versions := versionmgr.New(paths.VersionsDir(), paths.DefaultVersionFile(), log)
	st, err := settings.Load(paths.SettingsFile(), paths.LegacySettingsFile())
	require.NoError(t, err)
	bus := events.New()

	sup := New(Config{Paths: paths, Versions: versions, Profiles: profiles, Settings: st, Bus: bus, Log: log})
	sup.SetHandlers(http.NotFoundHandler(), http.NotFoundHandler())

	err = sup.Rebuild("no-binary")
	require.Error(t, err)

	snap := sup.Status()
	assert.False(t, snap.InProgress)
	require.NotNil(t, snap.LastError)
}

func TestRebuildPinnedAdminPortConflictLeavesCoreAndStaticRunning(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()
	pinnedAdmin := blocker.Addr().(*net.TCPAddr).Port

	sup, _ := newTestSupervisor(t, func(cfg *Config) { cfg.AdminPort = pinnedAdmin })

	err = sup.Rebuild("pinned-conflict")
	require.Error(t, err)

	staticPort, adminPort := sup.CurrentPorts()
	assert.NotZero(t, staticPort, "static server should still have bound before the admin bind failed")
	assert.Zero(t, adminPort)

	sup.mu.Lock()
	core := sup.core
	sup.mu.Unlock()
	require.NotNil(t, core, "core process should be left running on partial failure")
	assert.True(t, core.Alive())
}

func TestNotifySubscriptionUpdateOnlyRebuildsActiveProfile(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)

	require.NoError(t, sup.profiles.Save("a", "port: 7890\n"))
	require.NoError(t, sup.profiles.Save("b", "port: 7891\n"))
	require.NoError(t, sup.profiles.SetActive("a"))

	require.NoError(t, sup.NotifySubscriptionUpdate("b"))
	snap := sup.Status()
	assert.Nil(t, snap.LastReason)

	require.NoError(t, sup.NotifySubscriptionUpdate("a"))
	snap = sup.Status()
	require.NotNil(t, snap.LastReason)
	assert.Contains(t, *snap.LastReason, "a")
}

func TestFactoryResetWipesStateAndRebuildsFromBundled(t *testing.T) {
	bundledDir := t.TempDir()
	bundled := filepath.Join(bundledDir, "mihomo")
	require.NoError(t, os.WriteFile(bundled, []byte("#!/bin/sh\nsleep 30\n"), 0o755))

	sup, paths := newTestSupervisor(t, func(cfg *Config) {
		cfg.BundledCandidates = []string{bundled}
	})
	require.NoError(t, sup.Rebuild("initial"))

	require.NoError(t, sup.profiles.Save("extra", "port: 9\n"))
	_, err := sup.SaveAppSettings(func(a *settings.AppSettings) { a.Theme = "dark" })
	require.NoError(t, err)

	require.NoError(t, sup.FactoryReset())

	assert.Equal(t, settings.Defaults().Theme, sup.GetAppSettings().Theme)
	assert.True(t, sup.GetAppSettings().UseBundledCore)

	profiles, err := sup.profiles.List()
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "default", profiles[0].Name)

	versions, err := sup.versions.ListInstalled()
	require.NoError(t, err)
	assert.Empty(t, versions)

	pid, err := platform.ReadPIDFile(paths.PIDFile())
	require.NoError(t, err)
	assert.True(t, platform.PIDAlive(pid))

	snap := sup.Status()
	require.NotNil(t, snap.LastReason)
	assert.Equal(t, "factory-reset", *snap.LastReason)
}

func TestSetUseBundledCoreDoesNotRebuild(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	require.NoError(t, sup.SetUseBundledCore(false))
	assert.False(t, sup.GetAppSettings().UseBundledCore)
	assert.Nil(t, sup.Status().LastReason)
}

func TestEditorPathRoundTrip(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	assert.Equal(t, "", sup.EditorPath())
	require.NoError(t, sup.SetEditorPath("/usr/bin/vim"))
	assert.Equal(t, "/usr/bin/vim", sup.EditorPath())
}

func TestPickEditorPathFindsExecutableOnPATH(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)

	dir := t.TempDir()
	fake := filepath.Join(dir, "vim")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755))
	t.Setenv("PATH", dir)

	got, err := sup.PickEditorPath()
	require.NoError(t, err)
	assert.Equal(t, fake, got)
}

func TestPickEditorPathNoneFoundErrors(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	t.Setenv("PATH", t.TempDir())

	_, err := sup.PickEditorPath()
	assert.Error(t, err)
}

func TestSaveAndGetAppSettingsRoundTrip(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	updated, err := sup.SaveAppSettings(func(a *settings.AppSettings) { a.Theme = "dark" })
	require.NoError(t, err)
	assert.Equal(t, "dark", updated.Theme)
	assert.Equal(t, "dark", sup.GetAppSettings().Theme)
}

func TestRefreshCoreVersionInfoWithoutResolverErrors(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	_, err := sup.RefreshCoreVersionInfo(context.Background())
	assert.Error(t, err)
}

func TestListenPortPinnedConflictErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	_, _, err = listenPort(port, 0, 0)
	assert.Error(t, err)
}

func TestListenPortAutoScanFindsFreePort(t *testing.T) {
	ln, port, err := listenPort(0, 21000, 50)
	require.NoError(t, err)
	defer ln.Close()
	assert.GreaterOrEqual(t, port, 21000)
	assert.Less(t, port, 21050)
}

func TestShutdownAllIsIdempotent(t *testing.T) {
	sup, _ := newTestSupervisor(t, nil)
	require.NoError(t, sup.Rebuild("initial"))
	require.NoError(t, sup.ShutdownAll())
	require.NoError(t, sup.ShutdownAll())
}
