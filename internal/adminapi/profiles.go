package adminapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
	"github.com/zhugenanbei181/music-frog-sub001/internal/profile"
)

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.Profiles.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	content, err := s.Profiles.LoadContent(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "content": content})
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Profiles.Delete(name); err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(events.ProfilesChanged, nil)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type switchProfileRequest struct {
	Name string `json:"name"`
}

func (s *Server) switchProfile(w http.ResponseWriter, r *http.Request) {
	var req switchProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Profiles.SetActive(req.Name); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Supervisor.Rebuild("profile-switch:" + req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type saveProfileRequest struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	Activate bool   `json:"activate,omitempty"`
}

func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req saveProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := profile.ValidateName(req.Name); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Profiles.Save(req.Name, req.Content); err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(events.ProfilesChanged, nil)

	if req.Activate {
		if err := s.Profiles.SetActive(req.Name); err != nil {
			writeError(w, err)
			return
		}
		if err := s.Supervisor.Rebuild("profile-save:" + req.Name); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type importProfileRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Activate bool   `json:"activate,omitempty"`
}

func (s *Server) importProfile(w http.ResponseWriter, r *http.Request) {
	var req importProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := profile.ValidateName(req.Name); err != nil {
		writeError(w, err)
		return
	}
	content, err := s.Fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Profiles.Save(req.Name, content); err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(events.ProfilesChanged, nil)

	if req.Activate {
		if err := s.Profiles.SetActive(req.Name); err != nil {
			writeError(w, err)
			return
		}
		if err := s.Supervisor.Rebuild("import-activate"); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) clearProfiles(w http.ResponseWriter, r *http.Request) {
	if err := s.Profiles.ClearInactive(); err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(events.ProfilesChanged, nil)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type openProfileRequest struct {
	Name string `json:"name"`
}

func (s *Server) openProfile(w http.ResponseWriter, r *http.Request) {
	var req openProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Supervisor.OpenProfileInEditor(req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type attachSubscriptionRequest struct {
	URL                 string `json:"url"`
	AutoUpdateEnabled   bool   `json:"auto_update_enabled"`
	UpdateIntervalHours int    `json:"update_interval_hours,omitempty"`
}

func (s *Server) attachSubscription(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req attachSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.URL == "" {
		writeError(w, errs.Validation("url must not be empty"))
		return
	}
	if err := s.Profiles.AttachSubscription(name, req.URL, req.AutoUpdateEnabled, req.UpdateIntervalHours); err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(events.ProfilesChanged, nil)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) detachSubscription(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.Profiles.DetachSubscription(name); err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(events.ProfilesChanged, nil)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// updateProfileNow force-fetches and saves the subscription directly
// rather than waiting for the scheduler's next tick, rebuilding if
// the profile is active.
func (s *Server) updateProfileNow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	url, ok := s.Profiles.SubscriptionURL(name)
	if !ok {
		writeError(w, errs.NotFound("profile %q has no subscription attached", name))
		return
	}
	content, err := s.Fetcher.Fetch(r.Context(), url)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := profile.ValidateYAML(content); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Profiles.Save(name, content); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Profiles.MarkUpdated(name, time.Now()); err != nil {
		writeError(w, err)
		return
	}
	s.Bus.Publish(events.ProfilesChanged, nil)

	if err := s.Supervisor.NotifySubscriptionUpdate(name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
