package adminapi

import "net/http"

func (s *Server) getEditor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"editor_path": s.Supervisor.EditorPath()})
}

type setEditorRequest struct {
	EditorPath string `json:"editor_path"`
}

func (s *Server) setEditor(w http.ResponseWriter, r *http.Request) {
	var req setEditorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Supervisor.SetEditorPath(req.EditorPath); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) pickEditor(w http.ResponseWriter, r *http.Request) {
	path, err := s.Supervisor.PickEditorPath()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Supervisor.SetEditorPath(path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"editor_path": path})
}
