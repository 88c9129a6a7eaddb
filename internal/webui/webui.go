// Package webui serves the two prebuilt static web UIs. This package
// never builds their assets, only serves whatever the host has placed under each UI's directory,
// falling back to index.html for client-side routes.
package webui

import (
	"net/http"
	"os"
	"path/filepath"
)

// SPAHandler serves dir as a single-page app: any request whose path
// doesn't resolve to a real file under dir gets index.html instead of
// a 404, so the UI's own router can take over.
func SPAHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		full := filepath.Join(dir, filepath.Clean(r.URL.Path))
		if info, err := os.Stat(full); err == nil && !info.IsDir() {
			fs.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}

// AdminMux combines the chi-routed admin API with the admin UI's
// static assets under one handler: "/" redirects
// to "/admin/", "/admin/api/*" goes to api, everything else under
// "/admin/" falls through to the SPA handler rooted at uiDir.
func AdminMux(api http.Handler, uiDir string) http.Handler {
	spa := http.StripPrefix("/admin", SPAHandler(uiDir))
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/admin/", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})
	mux.Handle("/admin/api/", api)
	mux.Handle("/admin/", spa)
	return mux
}
