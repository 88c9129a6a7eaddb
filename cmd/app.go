package cmd

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/zhugenanbei181/music-frog-sub001/internal/logging"
	"github.com/zhugenanbei181/music-frog-sub001/internal/platform"
	"github.com/zhugenanbei181/music-frog-sub001/internal/profile"
	"github.com/zhugenanbei181/music-frog-sub001/internal/settings"
	"github.com/zhugenanbei181/music-frog-sub001/internal/versionmgr"
)

// bootstrap holds the dependencies shared by the short-lived CLI
// subcommands (core, profile, doctor). serve builds a larger graph of
// its own, since it also needs the supervisor, scheduler, and bus.
type bootstrap struct {
	log      *logrus.Entry
	paths    *platform.Paths
	profiles *profile.Store
	versions *versionmgr.Manager
	settings *settings.Store
}

func newBootstrap(component string) (*bootstrap, error) {
	paths, err := platform.NewPaths(homeOverride)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}

	rootLog := logging.New(parsedLogLevel())
	log := logging.Component(rootLog, component)

	profiles, err := profile.New(paths.ConfigsDir(), paths.CurrentProfileFile(), logging.Component(rootLog, "profile"))
	if err != nil {
		return nil, err
	}
	versions := versionmgr.New(paths.VersionsDir(), paths.DefaultVersionFile(), logging.Component(rootLog, "versionmgr"))

	st, err := settings.Load(paths.SettingsFile(), paths.LegacySettingsFile())
	if err != nil {
		return nil, err
	}

	return &bootstrap{
		log:      log,
		paths:    paths,
		profiles: profiles,
		versions: versions,
		settings: st,
	}, nil
}

// bundledCoreCandidates lists the places a bundled core binary might
// ship alongside this executable, searched in order by
// versionmgr.ResolveCoreBinary.
func bundledCoreCandidates(paths *platform.Paths) []string {
	name := "mihomo"
	if runtime.GOOS == "windows" {
		name = "mihomo.exe"
	}
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, name),
			filepath.Join(dir, "resources", name),
		)
	}
	candidates = append(candidates, filepath.Join(paths.DataDir(), "bundled", name))
	return candidates
}
