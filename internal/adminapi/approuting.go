package adminapi

import (
	"net/http"

	"github.com/zhugenanbei181/music-frog-sub001/internal/approuting"
	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

func (s *Server) getAppRouting(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.AppRouting.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// appRoutingPatchRequest mirrors approuting.Config with pointer
// fields, so a write only touches what the body carries.
type appRoutingPatchRequest struct {
	Mode     *string   `json:"mode,omitempty"`
	Packages *[]string `json:"packages,omitempty"`
}

func (s *Server) saveAppRouting(w http.ResponseWriter, r *http.Request) {
	var req appRoutingPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cfg, err := s.AppRouting.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Mode != nil {
		mode, err := approuting.ParseMode(*req.Mode)
		if err != nil {
			writeError(w, err)
			return
		}
		cfg.Mode = mode
	}
	if req.Packages != nil {
		cfg.Packages = *req.Packages
	}
	if err := s.AppRouting.Save(cfg); err != nil {
		writeError(w, err)
		return
	}
	saved, err := s.AppRouting.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type toggleAppRoutingRequest struct {
	Package string `json:"package"`
}

func (s *Server) toggleAppRoutingPackage(w http.ResponseWriter, r *http.Request) {
	var req toggleAppRoutingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Package == "" {
		writeError(w, errs.Validation("package must not be empty"))
		return
	}
	selected, err := s.AppRouting.TogglePackage(req.Package)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"selected": selected})
}
