package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhugenanbei181/music-frog-sub001/internal/adminapi"
	"github.com/zhugenanbei181/music-frog-sub001/internal/approuting"
	"github.com/zhugenanbei181/music-frog-sub001/internal/configpatch"
	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
	"github.com/zhugenanbei181/music-frog-sub001/internal/logging"
	"github.com/zhugenanbei181/music-frog-sub001/internal/platform"
	"github.com/zhugenanbei181/music-frog-sub001/internal/profile"
	"github.com/zhugenanbei181/music-frog-sub001/internal/scheduler"
	"github.com/zhugenanbei181/music-frog-sub001/internal/settings"
	"github.com/zhugenanbei181/music-frog-sub001/internal/subscription"
	"github.com/zhugenanbei181/music-frog-sub001/internal/supervisor"
	"github.com/zhugenanbei181/music-frog-sub001/internal/syncstate"
	"github.com/zhugenanbei181/music-frog-sub001/internal/versionmgr"
	"github.com/zhugenanbei181/music-frog-sub001/internal/webui"
)

const fetcherTimeout = 30 * time.Second

var (
	staticPort int
	adminPort  int
	coreRepo   string
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor, scheduler, and admin API in the foreground",
		RunE:  runServe,
		// Launchers (tray shims, older installers) pass flags this
		// build may not know; tolerate them instead of refusing to
		// start.
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	}
	f := cmd.Flags()
	f.IntVar(&staticPort, "static-port", 0, "pin the static UI port (0 = auto-select)")
	f.IntVar(&adminPort, "admin-port", 0, "pin the admin API port (0 = auto-select)")
	f.StringVar(&coreRepo, "core-repo", "MetaCubeX/mihomo", "GitHub owner/repo the version resolver checks for releases")
	return cmd
}

// runServe builds the full dependency graph and blocks until SIGINT
// or SIGTERM cancels the root context. Construction happens in two steps because the supervisor
// and the admin API each hold a reference to the other: the
// supervisor is built first against the
// narrow Capability interface it implements, then handed to the admin
// server, then wired back with SetHandlers.
func runServe(cmd *cobra.Command, _ []string) error {
	paths, err := platform.NewPaths(homeOverride)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirs(); err != nil {
		return err
	}

	rootLog := logging.New(parsedLogLevel())
	log := logging.Component(rootLog, "main")

	bus := events.New()

	profiles, err := profile.New(paths.ConfigsDir(), paths.CurrentProfileFile(), logging.Component(rootLog, "profile"))
	if err != nil {
		return err
	}
	versions := versionmgr.New(paths.VersionsDir(), paths.DefaultVersionFile(), logging.Component(rootLog, "versionmgr"))
	resolver := versionmgr.NewGitHubResolver(coreRepo)

	st, err := settings.Load(paths.SettingsFile(), paths.LegacySettingsFile())
	if err != nil {
		return err
	}

	syncDB, err := syncstate.Open(paths.SyncStateDB())
	if err != nil {
		return err
	}
	defer syncDB.Close()

	fetcher := subscription.New(fetcherTimeout)

	sup := supervisor.New(supervisor.Config{
		Paths:             paths,
		Versions:          versions,
		Profiles:          profiles,
		Settings:          st,
		Bus:               bus,
		Resolver:          resolver,
		Log:               logging.Component(rootLog, "supervisor"),
		BundledCandidates: bundledCoreCandidates(paths),
		StaticPort:        staticPort,
		AdminPort:         adminPort,
	})

	sched := scheduler.New(scheduler.Config{
		Paths:      paths,
		Profiles:   profiles,
		Settings:   st,
		SyncState:  syncDB,
		Supervisor: sup,
		Bus:        bus,
		Fetcher:    fetcher,
		Log:        logging.Component(rootLog, "scheduler"),
	})

	patcher := &configpatch.Patcher{Profiles: profiles, Bus: bus, Paths: paths}
	routing := approuting.NewStore(paths.AppRoutingFile())

	admin := &adminapi.Server{
		Paths:      paths,
		Profiles:   profiles,
		Versions:   versions,
		Supervisor: sup,
		Bus:        bus,
		Fetcher:    fetcher,
		Scheduler:  sched,
		Patcher:    patcher,
		AppRouting: routing,
		Resolver:   resolver,
		Log:        logging.Component(rootLog, "adminapi"),
	}

	staticHandler := webui.SPAHandler(paths.StaticUIDir())
	adminHandler := webui.AdminMux(admin.Router(), paths.AdminUIDir())
	sup.SetHandlers(staticHandler, adminHandler)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := sup.Rebuild("startup"); err != nil {
		log.WithError(err).Error("initial rebuild failed; continuing with the scheduler and admin API up")
	}

	go sched.Run(ctx)

	log.Info("mihomo-ctl is up")
	<-ctx.Done()

	log.Info("shutting down")
	return sup.ShutdownAll()
}
