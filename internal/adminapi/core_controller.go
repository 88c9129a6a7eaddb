package adminapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhugenanbei181/music-frog-sub001/internal/corectl"
	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// coreClient resolves the running core's external controller from
// the active profile's external-controller field.
func (s *Server) coreClient() (*corectl.Client, error) {
	name, ok := s.Profiles.ActiveName()
	if !ok {
		return nil, errs.NotFound("no active profile")
	}
	content, err := s.Profiles.LoadContent(name)
	if err != nil {
		return nil, err
	}
	addr, secret, ok := corectl.ParseExternalController(content)
	if !ok {
		return nil, errs.NotFound("active profile has no external-controller configured")
	}
	return corectl.New(addr, secret), nil
}

func (s *Server) coreProxies(w http.ResponseWriter, r *http.Request) {
	client, err := s.coreClient()
	if err != nil {
		writeError(w, err)
		return
	}
	proxies, err := client.Proxies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proxies)
}

func (s *Server) coreConnections(w http.ResponseWriter, r *http.Request) {
	client, err := s.coreClient()
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := client.Connections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type switchProxyRequest struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

func (s *Server) switchCoreProxy(w http.ResponseWriter, r *http.Request) {
	var req switchProxyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Group == "" || req.Name == "" {
		writeError(w, errs.Validation("group and name must not be empty"))
		return
	}
	client, err := s.coreClient()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := client.SwitchProxy(r.Context(), req.Group, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

const (
	defaultDelayTestURL   = "https://www.gstatic.com/generate_204"
	defaultDelayTimeoutMS = 5000
)

func (s *Server) coreProxyDelay(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	client, err := s.coreClient()
	if err != nil {
		writeError(w, err)
		return
	}
	testURL := r.URL.Query().Get("url")
	if testURL == "" {
		testURL = defaultDelayTestURL
	}
	timeoutMS := defaultDelayTimeoutMS
	if v := r.URL.Query().Get("timeout"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, errs.Validation("timeout must be a positive integer"))
			return
		}
		timeoutMS = n
	}
	delay, err := client.ProxyDelay(r.Context(), name, testURL, timeoutMS)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"delay": delay})
}

func (s *Server) closeCoreConnections(w http.ResponseWriter, r *http.Request) {
	client, err := s.coreClient()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := client.CloseAllConnections(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

var coreLogsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// coreLogs relays the core's own /logs WebSocket stream to the
// browser.
func (s *Server) coreLogs(w http.ResponseWriter, r *http.Request) {
	client, err := s.coreClient()
	if err != nil {
		writeError(w, err)
		return
	}

	browser, err := coreLogsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.Log != nil {
			s.Log.WithError(err).Warn("admin api: upgrading core log stream failed")
		}
		return
	}
	defer browser.Close()

	level := r.URL.Query().Get("level")
	_ = client.TailLogs(r.Context(), level, func(entry corectl.LogEntry) error {
		return browser.WriteJSON(entry)
	})
}
