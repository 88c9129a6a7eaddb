package adminapi

import "net/http"

// factoryReset wipes profiles, installed versions, logs and sync
// state, resets settings to defaults, and rebuilds the runtime from
// the bundled core.
func (s *Server) factoryReset(w http.ResponseWriter, r *http.Request) {
	if err := s.Supervisor.FactoryReset(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
