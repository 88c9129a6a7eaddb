package adminapi

import (
	"net/http"

	"github.com/zhugenanbei181/music-frog-sub001/internal/configpatch"
)

type fakeIPPatchRequest struct {
	FakeIPRange  *string   `json:"fake_ip_range,omitempty"`
	FakeIPFilter *[]string `json:"fake_ip_filter,omitempty"`
	StoreFakeIP  *bool     `json:"store_fake_ip,omitempty"`
}

func (p fakeIPPatchRequest) toDomain() configpatch.FakeIPPatch {
	return configpatch.FakeIPPatch{
		FakeIPRange:  p.FakeIPRange,
		FakeIPFilter: p.FakeIPFilter,
		StoreFakeIP:  p.StoreFakeIP,
	}
}

type tunPatchRequest struct {
	Enable              *bool     `json:"enable,omitempty"`
	Stack               *string   `json:"stack,omitempty"`
	DNSHijack           *[]string `json:"dns_hijack,omitempty"`
	AutoRoute           *bool     `json:"auto_route,omitempty"`
	AutoDetectInterface *bool     `json:"auto_detect_interface,omitempty"`
	MTU                 *int      `json:"mtu,omitempty"`
	StrictRoute         *bool     `json:"strict_route,omitempty"`
}

func (p tunPatchRequest) toDomain() configpatch.TunPatch {
	return configpatch.TunPatch{
		Enable:              p.Enable,
		Stack:               p.Stack,
		DNSHijack:           p.DNSHijack,
		AutoRoute:           p.AutoRoute,
		AutoDetectInterface: p.AutoDetectInterface,
		MTU:                 p.MTU,
		StrictRoute:         p.StrictRoute,
	}
}

func (s *Server) patchFakeIP(w http.ResponseWriter, r *http.Request) {
	var patch fakeIPPatchRequest
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Patcher.PatchFakeIP(patch.toDomain()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) patchTun(w http.ResponseWriter, r *http.Request) {
	var patch tunPatchRequest
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Patcher.PatchTun(patch.toDomain()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) clearFakeIPCache(w http.ResponseWriter, r *http.Request) {
	if err := s.Patcher.ClearFakeIPCache(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
