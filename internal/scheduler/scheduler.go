// Package scheduler runs the single background task of the system:
// one 60-second tick driving two independent cadences
// (subscription auto-update, WebDAV sync) behind a single
// overlap-prevention mutex.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
	"github.com/zhugenanbei181/music-frog-sub001/internal/platform"
	"github.com/zhugenanbei181/music-frog-sub001/internal/profile"
	"github.com/zhugenanbei181/music-frog-sub001/internal/settings"
	"github.com/zhugenanbei181/music-frog-sub001/internal/subscription"
	"github.com/zhugenanbei181/music-frog-sub001/internal/supervisor"
	"github.com/zhugenanbei181/music-frog-sub001/internal/syncengine"
	"github.com/zhugenanbei181/music-frog-sub001/internal/syncstate"
	"github.com/zhugenanbei181/music-frog-sub001/internal/webdavclient"
)

const (
	tickInterval    = 60 * time.Second
	subTickInterval = 3600 * time.Second
)

// Config bundles New's dependencies.
type Config struct {
	Paths      *platform.Paths
	Profiles   *profile.Store
	Settings   *settings.Store
	SyncState  *syncstate.Store
	Supervisor supervisor.Capability
	Bus        *events.Bus
	Fetcher    *subscription.Fetcher
	Log        *logrus.Entry
}

// Scheduler is the single long-lived background task.
type Scheduler struct {
	paths      *platform.Paths
	profiles   *profile.Store
	settings   *settings.Store
	syncState  *syncstate.Store
	supervisor supervisor.Capability
	bus        *events.Bus
	fetcher    *subscription.Fetcher
	log        *logrus.Entry

	now          func() time.Time
	tickInterval time.Duration

	overlapMu sync.Mutex

	nextSubTick  time.Time
	nextSyncTick time.Time
	forceSub     bool
	forceSync    bool
}

func New(cfg Config) *Scheduler {
	return &Scheduler{
		paths:        cfg.Paths,
		profiles:     cfg.Profiles,
		settings:     cfg.Settings,
		syncState:    cfg.SyncState,
		supervisor:   cfg.Supervisor,
		bus:          cfg.Bus,
		fetcher:      cfg.Fetcher,
		log:          cfg.Log,
		now:          time.Now,
		tickInterval: tickInterval,
		// Startup backfill: force an immediate subscription
		// tick and, if WebDAV is enabled, an immediate sync tick, rather
		// than computing a synthetic "due since" instant by subtracting
		// an hour from the clock base, since that arithmetic is exactly the
		// kind of thing that underflows near a zero/epoch clock in
		// tests or fresh containers. Explicit flags sidestep it.
		forceSub:  true,
		forceSync: true,
	}
}

// Run blocks, ticking every 60 s, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.runTick(ctx)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

// runTick implements the per-tick algorithm. try_lock: a tick that
// finds the mutex already held (a prior tick still running) skips
// entirely rather than queuing.
func (s *Scheduler) runTick(ctx context.Context) {
	if !s.overlapMu.TryLock() {
		if s.log != nil {
			s.log.Debug("scheduler: tick skipped, previous tick still in flight")
		}
		return
	}
	defer s.overlapMu.Unlock()

	now := s.now()
	snap := s.settings.Get()

	if s.forceSub || !now.Before(s.nextSubTick) {
		s.runSubscriptionPhase(ctx, now)
		s.forceSub = false
		s.nextSubTick = now.Add(subTickInterval)
	}

	if snap.WebDAV.Enabled && (s.forceSync || !now.Before(s.nextSyncTick)) {
		s.runWebDAVPhase(ctx, snap.WebDAV)
		s.forceSync = false
		interval := time.Duration(snap.WebDAV.SyncIntervalMins) * time.Minute
		if interval <= 0 {
			interval = subTickInterval
		}
		s.nextSyncTick = now.Add(interval)
	}
}

func (s *Scheduler) runSubscriptionPhase(ctx context.Context, now time.Time) {
	due := s.profiles.DueForAutoUpdate(now)
	if len(due) == 0 {
		return
	}

	activeName, hasActive := s.profiles.ActiveName()
	activeChanged := false

	for _, name := range due {
		url, ok := s.profiles.SubscriptionURL(name)
		if !ok {
			continue
		}
		content, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			s.logWarn(err, "subscription fetch failed", name, url)
			continue
		}
		if err := profile.ValidateYAML(content); err != nil {
			s.logWarn(err, "fetched subscription is not valid YAML", name, url)
			continue
		}
		if err := s.profiles.Save(name, content); err != nil {
			s.logWarn(err, "failed to save fetched subscription", name, url)
			continue
		}
		if err := s.profiles.MarkUpdated(name, now); err != nil {
			s.logWarn(err, "failed to record subscription update", name, url)
		}
		if hasActive && name == activeName {
			activeChanged = true
		}
	}

	s.bus.Publish(events.ProfilesChanged, nil)

	if activeChanged && s.supervisor != nil {
		if err := s.supervisor.Rebuild("subscription-auto-update"); err != nil && s.log != nil {
			s.log.WithError(err).Warn("scheduler: rebuild after subscription update failed")
		}
	}
}

func (s *Scheduler) logWarn(err error, msg, profileName, url string) {
	if s.log == nil {
		return
	}
	s.log.WithError(err).
		WithField("profile", profileName).
		WithField("url", subscription.MaskSubscriptionURL(url)).
		Warn(msg)
}

func (s *Scheduler) runWebDAVPhase(ctx context.Context, wd settings.WebDavConfig) {
	res, err := s.syncWebDAV(ctx, wd)
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).Warn("scheduler: webdav sync failed")
		}
		return
	}
	s.bus.Publish(events.WebDAVSynced, map[string]int{
		"success_count": res.SuccessCount,
		"failed_count":  res.FailedCount,
	})
}

// syncWebDAV runs one full index-plan-execute pass against wd,
// independent of whether it was triggered by the tick or an on-demand
// request.
func (s *Scheduler) syncWebDAV(ctx context.Context, wd settings.WebDavConfig) (syncengine.Result, error) {
	client, err := webdavclient.New(wd.URL, wd.Username, wd.Password)
	if err != nil {
		return syncengine.Result{}, err
	}

	locals, err := syncengine.IndexLocal(s.paths.ConfigsDir())
	if err != nil {
		return syncengine.Result{}, err
	}
	remotes, err := syncengine.IndexRemote(ctx, client, "/")
	if err != nil {
		return syncengine.Result{}, err
	}
	state, err := s.syncState.All()
	if err != nil {
		return syncengine.Result{}, err
	}

	items := syncengine.Plan(locals, remotes, state)
	exec := &syncengine.Executor{
		Client:     client,
		State:      s.syncState,
		LocalRoot:  s.paths.ConfigsDir(),
		RemoteRoot: "/",
		Log:        s.log,
	}
	return exec.Execute(ctx, items), nil
}

// SyncNow runs a WebDAV sync immediately, outside the normal 60 s
// cadence, for the admin API's POST /webdav/sync. It
// shares the scheduler's overlap mutex so it never runs alongside a
// scheduled tick.
func (s *Scheduler) SyncNow(ctx context.Context) (syncengine.Result, error) {
	if !s.overlapMu.TryLock() {
		return syncengine.Result{}, errs.Conflict("a sync or subscription tick is already running")
	}
	defer s.overlapMu.Unlock()

	snap := s.settings.Get()
	if !snap.WebDAV.Enabled {
		return syncengine.Result{}, errs.Validation("webdav is not enabled")
	}

	res, err := s.syncWebDAV(ctx, snap.WebDAV)
	if err != nil {
		return syncengine.Result{}, err
	}

	s.forceSync = false
	now := s.now()
	interval := time.Duration(snap.WebDAV.SyncIntervalMins) * time.Minute
	if interval <= 0 {
		interval = subTickInterval
	}
	s.nextSyncTick = now.Add(interval)

	s.bus.Publish(events.WebDAVSynced, map[string]int{
		"success_count": res.SuccessCount,
		"failed_count":  res.FailedCount,
	})
	return res, nil
}
