package adminapi

import (
	"net/http"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
)

func (s *Server) listCoreVersions(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Versions.ListInstalled()
	if err != nil {
		writeError(w, err)
		return
	}
	def, _ := s.Versions.GetDefault()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": entries,
		"default":  def,
	})
}

type activateCoreVersionRequest struct {
	Version string `json:"version"`
}

// activateCoreVersion sets the default version, disables the bundled
// core, and rebuilds.
func (s *Server) activateCoreVersion(w http.ResponseWriter, r *http.Request) {
	var req activateCoreVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Versions.SetDefault(req.Version); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Supervisor.SetUseBundledCore(false); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Supervisor.Rebuild("core-activate:" + req.Version); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// updateCore brings the installed core to the latest stable release:
// resolve, install if missing, make default, disable the bundled
// fallback, rebuild, then prune every other installed version.
func (s *Server) updateCore(w http.ResponseWriter, r *http.Request) {
	if s.Resolver == nil {
		writeError(w, errs.NotFound("no release resolver configured"))
		return
	}
	tag, updated, err := s.Versions.UpdateToLatest(r.Context(), s.Resolver.Resolve)
	if err != nil {
		writeError(w, err)
		return
	}
	if updated {
		if err := s.Supervisor.SetUseBundledCore(false); err != nil {
			writeError(w, err)
			return
		}
		if err := s.Supervisor.Rebuild("core-update:" + tag); err != nil {
			writeError(w, err)
			return
		}
		s.Versions.PruneOthers(tag)
		s.Bus.Publish(events.CoreChanged, nil)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": tag,
		"updated": updated,
	})
}
