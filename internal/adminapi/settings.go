package adminapi

import (
	"net/http"

	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
	"github.com/zhugenanbei181/music-frog-sub001/internal/settings"
)

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Supervisor.GetAppSettings())
}

// settingsPatchRequest mirrors settings.AppSettings with every field
// a pointer, so a write only touches the fields present in the body.
type settingsPatchRequest struct {
	OpenWebUIOnStartup *bool               `json:"open_webui_on_startup,omitempty"`
	EditorPath         *string             `json:"editor_path,omitempty"`
	UseBundledCore     *bool               `json:"use_bundled_core,omitempty"`
	Language           *string             `json:"language,omitempty"`
	Theme              *string             `json:"theme,omitempty"`
	WebDAV             *webDAVPatchRequest `json:"webdav,omitempty"`
}

type webDAVPatchRequest struct {
	Enabled          *bool   `json:"enabled,omitempty"`
	URL              *string `json:"url,omitempty"`
	Username         *string `json:"username,omitempty"`
	Password         *string `json:"password,omitempty"`
	SyncIntervalMins *int    `json:"sync_interval_mins,omitempty"`
	SyncOnStartup    *bool   `json:"sync_on_startup,omitempty"`
}

func (req settingsPatchRequest) apply(a *settings.AppSettings) {
	if req.OpenWebUIOnStartup != nil {
		a.OpenWebUIOnStartup = *req.OpenWebUIOnStartup
	}
	if req.EditorPath != nil {
		a.EditorPath = *req.EditorPath
	}
	if req.UseBundledCore != nil {
		a.UseBundledCore = *req.UseBundledCore
	}
	if req.Language != nil {
		a.Language = *req.Language
	}
	if req.Theme != nil {
		a.Theme = *req.Theme
	}
	if wd := req.WebDAV; wd != nil {
		if wd.Enabled != nil {
			a.WebDAV.Enabled = *wd.Enabled
		}
		if wd.URL != nil {
			a.WebDAV.URL = *wd.URL
		}
		if wd.Username != nil {
			a.WebDAV.Username = *wd.Username
		}
		if wd.Password != nil {
			a.WebDAV.Password = *wd.Password
		}
		if wd.SyncIntervalMins != nil {
			a.WebDAV.SyncIntervalMins = *wd.SyncIntervalMins
		}
		if wd.SyncOnStartup != nil {
			a.WebDAV.SyncOnStartup = *wd.SyncOnStartup
		}
	}
}

func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	saved, err := s.Supervisor.SaveAppSettings(req.apply)
	if err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(events.SettingsChanged, nil)
	writeJSON(w, http.StatusOK, saved)
}
