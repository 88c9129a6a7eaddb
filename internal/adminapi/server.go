// Package adminapi is the chi router mounted at /admin/api that every
// web UI drives. Handlers depend on supervisor.Capability rather than
// *supervisor.Supervisor, so this package can be constructed and
// handed back to supervisor.SetHandlers without an import cycle.
package adminapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/zhugenanbei181/music-frog-sub001/internal/approuting"
	"github.com/zhugenanbei181/music-frog-sub001/internal/configpatch"
	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
	"github.com/zhugenanbei181/music-frog-sub001/internal/platform"
	"github.com/zhugenanbei181/music-frog-sub001/internal/profile"
	"github.com/zhugenanbei181/music-frog-sub001/internal/scheduler"
	"github.com/zhugenanbei181/music-frog-sub001/internal/subscription"
	"github.com/zhugenanbei181/music-frog-sub001/internal/supervisor"
	"github.com/zhugenanbei181/music-frog-sub001/internal/versionmgr"
)

// Server bundles every dependency the admin handlers need.
type Server struct {
	Paths      *platform.Paths
	Profiles   *profile.Store
	Versions   *versionmgr.Manager
	Supervisor supervisor.Capability
	Bus        *events.Bus
	Fetcher    *subscription.Fetcher
	Scheduler  *scheduler.Scheduler
	Patcher    *configpatch.Patcher
	AppRouting *approuting.Store
	Resolver   *versionmgr.GitHubResolver
	Log        *logrus.Entry
}

// Router builds the /admin/api mux. The returned handler is what
// gets passed to supervisor.SetHandlers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(s.Log))
	r.Use(requestLogger(s.Log))

	r.Route("/admin/api", func(r chi.Router) {
		r.Get("/profiles", s.listProfiles)
		r.Get("/profiles/{name}", s.getProfile)
		r.Delete("/profiles/{name}", s.deleteProfile)
		r.Post("/profiles/switch", s.switchProfile)
		r.Post("/profiles/save", s.saveProfile)
		r.Post("/profiles/import", s.importProfile)
		r.Post("/profiles/clear", s.clearProfiles)
		r.Post("/profiles/open", s.openProfile)
		r.Post("/profiles/{name}/subscription", s.attachSubscription)
		r.Delete("/profiles/{name}/subscription", s.detachSubscription)
		r.Post("/profiles/{name}/update-now", s.updateProfileNow)

		r.Post("/profile/fake-ip", s.patchFakeIP)
		r.Post("/profile/tun", s.patchTun)
		r.Post("/profile/fake-ip-cache/clear", s.clearFakeIPCache)

		r.Get("/app-routing", s.getAppRouting)
		r.Post("/app-routing", s.saveAppRouting)
		r.Post("/app-routing/toggle", s.toggleAppRoutingPackage)

		r.Get("/editor", s.getEditor)
		r.Post("/editor", s.setEditor)
		r.Post("/editor/pick", s.pickEditor)

		r.Get("/settings", s.getSettings)
		r.Post("/settings", s.saveSettings)

		r.Post("/webdav/sync", s.webdavSync)
		r.Post("/webdav/test", s.webdavTest)

		r.Get("/rebuild/status", s.rebuildStatus)

		r.Get("/core/versions", s.listCoreVersions)
		r.Post("/core/activate", s.activateCoreVersion)
		r.Post("/core/update", s.updateCore)
		r.Get("/core/proxies", s.coreProxies)
		r.Post("/core/proxies/switch", s.switchCoreProxy)
		r.Get("/core/proxies/{name}/delay", s.coreProxyDelay)
		r.Get("/core/connections", s.coreConnections)
		r.Delete("/core/connections", s.closeCoreConnections)
		r.Get("/core/logs", s.coreLogs)

		r.Post("/factory-reset", s.factoryReset)

		r.Get("/events", s.streamEvents)
	})
	return r
}

const sseKeepAlive = 15 * time.Second
