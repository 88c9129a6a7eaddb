package adminapi

import (
	"net/http"

	"github.com/zhugenanbei181/music-frog-sub001/internal/webdavclient"
)

// webdavSync runs a sync now and returns its summary, sharing the
// scheduler's overlap mutex so it never races a scheduled tick.
func (s *Server) webdavSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.Scheduler.SyncNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"success_count": res.SuccessCount,
		"failed_count":  res.FailedCount,
	})
}

// webdavTest issues PROPFIND "/" against the configured server and
// reports ok/error.
func (s *Server) webdavTest(w http.ResponseWriter, r *http.Request) {
	wd := s.Supervisor.GetAppSettings().WebDAV
	client, err := webdavclient.New(wd.URL, wd.Username, wd.Password)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	if _, err := client.List(r.Context(), "/"); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}
